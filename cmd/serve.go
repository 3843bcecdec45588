package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-orienter/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Orienter web server.

POST an image as the multipart field "image" to /orient and the upright
image comes back in the same format. The prediction is reported in the
X-Orientation, X-Orientation-Confident and X-Orientation-Source headers.
/health and /metrics serve liveness and Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 5000)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		rt.cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		rt.cfg.Server.Host = host
	}

	server := web.NewServer(rt.cfg, rt.models, rt.fallback, rt.logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			rt.logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting Face Orienter on http://%s\n", rt.cfg.Server.Addr())
	fmt.Printf("Detector: %s, fallback: %s\n", rt.cfg.Detector.Backend, rt.cfg.Fallback.Strategy)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
