package cmd

import (
	"fmt"

	"github.com/kozaktomas/face-orienter/internal/orienter"
	"github.com/spf13/cobra"
)

var fixCmd = &cobra.Command{
	Use:   "fix <image>",
	Short: "Write an upright copy of an image",
	Long: `Predict the orientation of an image and write a copy rotated upright.
The output format follows the output file's extension. Without -o the copy
is written next to the input as <name>_fixed<ext>.`,
	Example: `  face-orienter fix photo.jpg
  face-orienter fix photo.jpg -o upright.png`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().StringP("output", "o", "", "Output file (default <name>_fixed<ext>)")
}

func runFix(cmd *cobra.Command, args []string) error {
	src := args[0]
	dst := mustGetString(cmd, "output")
	if dst == "" {
		dst = fixedPath(src, "")
	}

	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	fo, err := orienter.Open(ctx, src, rt.models, rt.options()...)
	if err != nil {
		return err
	}
	if err := fo.FixOrientation(ctx, dst); err != nil {
		return err
	}

	p := fo.Predict(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (was %s", src, dst, label(string(p.Orientation)))
	if !p.Confident {
		fmt.Fprintf(cmd.OutOrStdout(), ", guessed by %s", p.Source)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ")")
	return nil
}
