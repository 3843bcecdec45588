package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-orienter",
	Short: "Detect and fix the orientation of face photos",
	Long: `Face Orienter finds a face in a photo, works out which way the photo
is rotated from the positions of the eyes and nose, and writes an upright
copy. It runs as a CLI or as a small HTTP service.

Detectors and the no-face fallback are configured through environment
variables (a .env file in the working directory is loaded if present).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("detector", "", "Face detector backend: pigo, remote (overrides DETECTOR)")
	rootCmd.PersistentFlags().String("fallback", "", "Orientation guess when no face is found: random, openai, gemini (overrides FALLBACK)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
