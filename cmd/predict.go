package cmd

import (
	"fmt"
	"image"

	"github.com/kozaktomas/face-orienter/internal/orienter"
	"github.com/spf13/cobra"
)

var predictCmd = &cobra.Command{
	Use:   "predict <image>...",
	Short: "Predict the orientation of images",
	Long: `Predict which way each image is rotated.

The label names where the top of the face points relative to upright:
down means the image is already upright, up means it is upside down,
left and right mean it lies on its side. Images without a detectable face
get a fallback guess, reported as not confident.`,
	Example: `  face-orienter predict portrait.jpg
  face-orienter predict --json a.png b.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().Bool("json", false, "Output as JSON")
}

// PredictResult is one image's prediction.
type PredictResult struct {
	Path        string               `json:"path"`
	Orientation orienter.Orientation `json:"orientation,omitempty"`
	Confident   bool                 `json:"confident"`
	Source      string               `json:"source,omitempty"`
	Rotations   int                  `json:"rotations"`
	Landmarks   [][2]int             `json:"landmarks,omitempty"`
	Error       string               `json:"error,omitempty"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	results := make([]PredictResult, 0, len(args))
	failed := 0
	for _, path := range args {
		result := predictFile(cmd, rt, path)
		if result.Error != "" {
			failed++
		}
		results = append(results, result)
	}

	if jsonOutput {
		if err := outputJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, r := range results {
			switch {
			case r.Error != "":
				fmt.Fprintf(out, "%s: error: %s\n", r.Path, r.Error)
			case r.Confident:
				fmt.Fprintf(out, "%s: %s\n", r.Path, label(string(r.Orientation)))
			default:
				fmt.Fprintf(out, "%s: %s (no face found, guessed by %s)\n", r.Path, label(string(r.Orientation)), r.Source)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}

func predictFile(cmd *cobra.Command, rt *runtime, path string) PredictResult {
	ctx := cmd.Context()
	fo, err := orienter.Open(ctx, path, rt.models, rt.options()...)
	if err != nil {
		return PredictResult{Path: path, Error: err.Error()}
	}

	p := fo.Predict(ctx)
	return PredictResult{
		Path:        path,
		Orientation: p.Orientation,
		Confident:   p.Confident,
		Source:      p.Source,
		Rotations:   p.Rotations,
		Landmarks:   pointPairs(fo.Landmarks()),
	}
}

func pointPairs(points []image.Point) [][2]int {
	if len(points) == 0 {
		return nil
	}
	pairs := make([][2]int, len(points))
	for i, p := range points {
		pairs[i] = [2]int{p.X, p.Y}
	}
	return pairs
}
