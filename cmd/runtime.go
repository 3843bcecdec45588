package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-orienter/internal/ai"
	"github.com/kozaktomas/face-orienter/internal/config"
	"github.com/kozaktomas/face-orienter/internal/detector/pigo"
	"github.com/kozaktomas/face-orienter/internal/detector/remote"
	"github.com/kozaktomas/face-orienter/internal/logging"
	"github.com/kozaktomas/face-orienter/internal/orienter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runtime holds what every command needs: configuration, the shared
// detector models and the optional fallback.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	models   orienter.Models
	fallback orienter.Fallback
}

// setup loads configuration, applies the persistent flag overrides and
// builds the models. Models are loaded once per process.
func setup(cmd *cobra.Command) (*runtime, error) {
	cfg := config.Load()
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	models, err := loadModels(cfg)
	if err != nil {
		return nil, err
	}

	fallback, err := newFallback(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug("runtime ready",
		zap.String("detector", cfg.Detector.Backend),
		zap.String("fallback", cfg.Fallback.Strategy),
	)
	return &runtime{cfg: cfg, logger: logger, models: models, fallback: fallback}, nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v := mustGetString(cmd, "detector"); v != "" {
		cfg.Detector.Backend = strings.ToLower(v)
	}
	if v := mustGetString(cmd, "fallback"); v != "" {
		cfg.Fallback.Strategy = strings.ToLower(v)
	}
	if v := mustGetString(cmd, "log-level"); v != "" {
		cfg.Log.Level = v
	}
}

// loadModels builds the configured detector backend. Both backends detect
// faces and landmarks.
func loadModels(cfg *config.Config) (orienter.Models, error) {
	switch cfg.Detector.Backend {
	case config.BackendPigo:
		d, err := pigo.Load(cfg.Detector.ModelDir, cfg.Pigo)
		if err != nil {
			return orienter.Models{}, fmt.Errorf("failed to load pigo cascades from %s: %w", cfg.Detector.ModelDir, err)
		}
		return orienter.Models{Faces: d, Landmarks: d}, nil
	case config.BackendRemote:
		c, err := remote.New(cfg.Remote)
		if err != nil {
			return orienter.Models{}, fmt.Errorf("failed to create face service client: %w", err)
		}
		return orienter.Models{Faces: c, Landmarks: c}, nil
	}
	return orienter.Models{}, fmt.Errorf("unknown detector %q", cfg.Detector.Backend)
}

// newFallback returns nil for the random strategy.
func newFallback(ctx context.Context, cfg *config.Config) (orienter.Fallback, error) {
	fb := cfg.Fallback
	switch fb.Strategy {
	case config.FallbackOpenAI:
		return ai.NewOpenAIProvider(cfg.OpenAI.Token, fb.OpenAIModel, fb.MaxImageSize), nil
	case config.FallbackGemini:
		p, err := ai.NewGeminiProvider(ctx, cfg.Gemini.APIKey, fb.GeminiModel, "", fb.MaxImageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
		}
		return p, nil
	case config.FallbackOllama:
		return ai.NewOllamaProvider(fb.OllamaURL, fb.OllamaModel, fb.MaxImageSize), nil
	}
	return nil, nil
}

// options returns the orienter options shared by all commands.
func (rt *runtime) options() []orienter.Option {
	opts := []orienter.Option{orienter.WithLogger(rt.logger)}
	if rt.fallback != nil {
		opts = append(opts, orienter.WithFallback(rt.fallback))
	}
	return opts
}

func (rt *runtime) close() {
	_ = rt.logger.Sync()
}
