package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kozaktomas/face-orienter/internal/constants"
	"github.com/kozaktomas/face-orienter/internal/orienter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Fix the orientation of every image in a directory",
	Long: `Fix every image directly inside a directory. Upright copies are written
to the output directory (default: the input directory) as <name>_fixed<ext>.`,
	Example: `  face-orienter batch ./scans -o ./upright --concurrency 8`,
	Args:    cobra.ExactArgs(1),
	RunE:    runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringP("output", "o", "", "Output directory (default: input directory)")
	batchCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of images processed in parallel")
	batchCmd.Flags().Bool("json", false, "Output as JSON")
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Success       bool           `json:"success"`
	Images        int            `json:"images"`
	Rotated       int            `json:"rotated"`
	NoFace        int            `json:"no_face"`
	Errors        int            `json:"errors"`
	ByOrientation map[string]int `json:"by_orientation"`
	DurationMs    int64          `json:"duration_ms"`
	DurationHuman string         `json:"duration,omitempty"`
}

// batchCounts is updated concurrently by the workers.
type batchCounts struct {
	rotated atomic.Int64
	noFace  atomic.Int64
	errors  atomic.Int64

	mu            sync.Mutex
	byOrientation map[string]int
}

func (c *batchCounts) add(p orienter.Prediction) {
	if p.Orientation.Rotations() != 0 {
		c.rotated.Add(1)
	}
	if !p.Confident {
		c.noFace.Add(1)
	}
	c.mu.Lock()
	c.byOrientation[p.Orientation.String()]++
	c.mu.Unlock()
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	outDir := mustGetString(cmd, "output")
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)
	jsonOutput := mustGetBool(cmd, "json")

	all, err := listImages(dir)
	if err != nil {
		return err
	}
	paths := slices.DeleteFunc(all, isFixedCopy)
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !jsonOutput {
		fmt.Fprintf(cmd.OutOrStdout(), "Fixing %d images with %d workers\n", len(paths), concurrency)
	}

	startTime := time.Now()
	bar := newProgressBar(len(paths), "Fixing", jsonOutput)
	counts := fixAll(ctx, rt, paths, outDir, concurrency, bar)
	if bar != nil {
		fmt.Println()
	}

	duration := time.Since(startTime)
	result := BatchResult{
		Success:       counts.errors.Load() == 0,
		Images:        len(paths),
		Rotated:       int(counts.rotated.Load()),
		NoFace:        int(counts.noFace.Load()),
		Errors:        int(counts.errors.Load()),
		ByOrientation: counts.byOrientation,
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}

	if jsonOutput {
		result.DurationHuman = ""
		return outputJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nBatch complete!")
	fmt.Fprintf(out, "  Images:   %d\n", result.Images)
	fmt.Fprintf(out, "  Rotated:  %d\n", result.Rotated)
	if result.NoFace > 0 {
		fmt.Fprintf(out, "  No face:  %d\n", result.NoFace)
	}
	for _, o := range orienter.All() {
		if n := result.ByOrientation[o.String()]; n > 0 {
			fmt.Fprintf(out, "  %-8s  %d\n", label(o.String())+":", n)
		}
	}
	if result.Errors > 0 {
		fmt.Fprintf(out, "  Errors:   %d\n", result.Errors)
	}
	fmt.Fprintf(out, "  Duration: %s\n", result.DurationHuman)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// fixAll fixes paths with a bounded number of workers. bar may be nil.
func fixAll(ctx context.Context, rt *runtime, paths []string, outDir string, concurrency int, bar *progressbar.ProgressBar) *batchCounts {
	counts := &batchCounts{byOrientation: make(map[string]int)}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range paths {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				counts.errors.Add(1)
				return
			}

			p, err := fixFile(ctx, rt, src, fixedPath(src, outDir))
			if err != nil {
				counts.errors.Add(1)
				rt.logger.Warn("failed to fix image", zap.String("path", src), zap.Error(err))
			} else {
				counts.add(p)
			}

			if bar != nil {
				bar.Add(1)
			}
		}(path)
	}

	wg.Wait()
	return counts
}

func fixFile(ctx context.Context, rt *runtime, src, dst string) (orienter.Prediction, error) {
	fo, err := orienter.Open(ctx, src, rt.models, rt.options()...)
	if err != nil {
		return orienter.Prediction{}, err
	}
	if err := fo.FixOrientation(ctx, dst); err != nil {
		return orienter.Prediction{}, err
	}
	return fo.Predict(ctx), nil
}
