package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-orienter/internal/constants"
	"github.com/kozaktomas/face-orienter/internal/imageutil"
	"github.com/kozaktomas/face-orienter/internal/orienter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy <dir>",
	Short: "Measure prediction accuracy on a directory of upright faces",
	Long: `Measure how often predictions are right.

Every image in the directory must be upright. For each one the command
writes copies rotated by 90, 180 and 270 degrees clockwise into a temporary
directory, predicts all four versions and prints a confusion matrix of
expected against predicted orientation.`,
	Example: `  face-orienter accuracy ./testset --concurrency 8`,
	Args:    cobra.ExactArgs(1),
	RunE:    runAccuracy,
}

func init() {
	rootCmd.AddCommand(accuracyCmd)
	accuracyCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of images processed in parallel")
	accuracyCmd.Flags().Bool("keep", false, "Keep the directory with the rotated copies")
	accuracyCmd.Flags().Bool("json", false, "Output as JSON")
}

// sample is a rotated copy of an upright image and the label it should get.
type sample struct {
	path     string
	expected orienter.Orientation
}

// rotationLabels maps the clockwise rotation applied to an upright image to
// the orientation the predictor should report.
var rotationLabels = []struct {
	angle float64
	label orienter.Orientation
}{
	{0, orienter.Down},
	{90, orienter.Left},
	{180, orienter.Up},
	{270, orienter.Right},
}

// confusionMatrix counts predictions indexed by [expected][predicted]
// rotation count.
type confusionMatrix [4][4]int

func (m *confusionMatrix) add(expected, predicted orienter.Orientation) {
	m[expected.Rotations()][predicted.Rotations()]++
}

func (m *confusionMatrix) total() int {
	n := 0
	for _, row := range m {
		for _, v := range row {
			n += v
		}
	}
	return n
}

func (m *confusionMatrix) correct() int {
	n := 0
	for i := range m {
		n += m[i][i]
	}
	return n
}

func (m *confusionMatrix) accuracy() float64 {
	total := m.total()
	if total == 0 {
		return 0
	}
	return float64(m.correct()) / float64(total)
}

// render prints the matrix with expected labels as rows.
func (m *confusionMatrix) render(w io.Writer) {
	labels := orienter.All()
	fmt.Fprintf(w, "%-18s", "expected \\ got")
	for _, o := range labels {
		fmt.Fprintf(w, "%8s", label(o.String()))
	}
	fmt.Fprintln(w)
	for _, expected := range labels {
		fmt.Fprintf(w, "%-18s", label(expected.String()))
		for _, predicted := range labels {
			fmt.Fprintf(w, "%8d", m[expected.Rotations()][predicted.Rotations()])
		}
		fmt.Fprintln(w)
	}
}

// matrixJSON converts the matrix to nested maps keyed by label.
func (m *confusionMatrix) matrixJSON() map[string]map[string]int {
	out := make(map[string]map[string]int, 4)
	for _, expected := range orienter.All() {
		row := make(map[string]int, 4)
		for _, predicted := range orienter.All() {
			row[predicted.String()] = m[expected.Rotations()][predicted.Rotations()]
		}
		out[expected.String()] = row
	}
	return out
}

// AccuracyResult is the JSON output of the accuracy command.
type AccuracyResult struct {
	Images     int                       `json:"images"`
	Samples    int                       `json:"samples"`
	Correct    int                       `json:"correct"`
	NoFace     int                       `json:"no_face"`
	Errors     int                       `json:"errors"`
	Accuracy   float64                   `json:"accuracy"`
	Matrix     map[string]map[string]int `json:"matrix"`
	SamplesDir string                    `json:"samples_dir,omitempty"`
	DurationMs int64                     `json:"duration_ms"`
}

func runAccuracy(cmd *cobra.Command, args []string) error {
	dir := args[0]
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)
	keep := mustGetBool(cmd, "keep")
	jsonOutput := mustGetBool(cmd, "json")

	paths, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tmpDir, err := os.MkdirTemp("", "face-orienter-accuracy-")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	if !keep {
		defer os.RemoveAll(tmpDir)
	}

	startTime := time.Now()
	bar := newProgressBar(len(paths), "Rotating", jsonOutput)
	samples, prepErrors := prepareSamples(paths, tmpDir, bar)
	if bar != nil {
		fmt.Println()
	}
	for _, err := range prepErrors {
		rt.logger.Warn("skipping image", zap.Error(err))
	}

	bar = newProgressBar(len(samples), "Predicting", jsonOutput)
	matrix, noFace, predErrors := evaluate(ctx, rt, samples, concurrency, bar)
	if bar != nil {
		fmt.Println()
	}

	result := AccuracyResult{
		Images:     len(paths),
		Samples:    matrix.total(),
		Correct:    matrix.correct(),
		NoFace:     noFace,
		Errors:     len(prepErrors) + predErrors,
		Accuracy:   matrix.accuracy(),
		Matrix:     matrix.matrixJSON(),
		DurationMs: time.Since(startTime).Milliseconds(),
	}
	if keep {
		result.SamplesDir = tmpDir
	}

	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	matrix.render(out)
	fmt.Fprintf(out, "\nAccuracy: %.2f%% (%d/%d)\n", result.Accuracy*100, result.Correct, result.Samples)
	if result.NoFace > 0 {
		fmt.Fprintf(out, "No face:  %d (guessed)\n", result.NoFace)
	}
	if result.Errors > 0 {
		fmt.Fprintf(out, "Errors:   %d\n", result.Errors)
	}
	if keep {
		fmt.Fprintf(out, "Samples:  %s\n", tmpDir)
	}
	fmt.Fprintf(out, "Duration: %s\n", formatDuration(time.Since(startTime)))
	return ctx.Err()
}

// prepareSamples writes the four rotations of every upright image into
// dir under random names, so the file name carries no hint of the label.
func prepareSamples(paths []string, dir string, bar *progressbar.ProgressBar) ([]sample, []error) {
	var samples []sample
	var errs []error

	for _, path := range paths {
		img, err := imageutil.Load(path)
		if err != nil {
			errs = append(errs, err)
		} else {
			ext := strings.ToLower(filepath.Ext(path))
			for _, r := range rotationLabels {
				rotated, err := imageutil.Rotate(img, r.angle)
				if err != nil {
					errs = append(errs, fmt.Errorf("rotating %s: %w", path, err))
					continue
				}
				dst := filepath.Join(dir, uuid.NewString()+ext)
				if err := imageutil.Save(rotated, dst); err != nil {
					errs = append(errs, fmt.Errorf("saving %s: %w", dst, err))
					continue
				}
				samples = append(samples, sample{path: dst, expected: r.label})
			}
		}

		if bar != nil {
			bar.Add(1)
		}
	}
	return samples, errs
}

// evaluate predicts every sample with a bounded number of workers.
func evaluate(ctx context.Context, rt *runtime, samples []sample, concurrency int, bar *progressbar.ProgressBar) (*confusionMatrix, int, int) {
	var matrix confusionMatrix
	var mu sync.Mutex
	var noFace, errorCount atomic.Int64

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, s := range samples {
		wg.Add(1)
		go func(s sample) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			fo, err := orienter.Open(ctx, s.path, rt.models, rt.options()...)
			if err != nil {
				errorCount.Add(1)
				rt.logger.Warn("prediction failed", zap.String("path", s.path), zap.Error(err))
			} else {
				p := fo.Predict(ctx)
				if !p.Confident {
					noFace.Add(1)
				}
				mu.Lock()
				matrix.add(s.expected, p.Orientation)
				mu.Unlock()
			}

			if bar != nil {
				bar.Add(1)
			}
		}(s)
	}

	wg.Wait()
	return &matrix, int(noFace.Load()), int(errorCount.Load())
}
