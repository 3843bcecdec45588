package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Detector backends.
const (
	BackendPigo   = "pigo"
	BackendRemote = "remote"
)

// Fallback strategies for images without a detectable face.
const (
	FallbackRandom = "random"
	FallbackOpenAI = "openai"
	FallbackGemini = "gemini"
	FallbackOllama = "ollama"
)

type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Pigo     PigoConfig     `yaml:"pigo"`
	Remote   RemoteConfig   `yaml:"remote"`
	Server   ServerConfig   `yaml:"server"`
	Fallback FallbackConfig `yaml:"fallback"`
	OpenAI   OpenAIConfig   `yaml:"-"`
	Gemini   GeminiConfig   `yaml:"-"`
	Log      LogConfig      `yaml:"log"`
}

type DetectorConfig struct {
	Backend  string `yaml:"backend"`   // pigo or remote
	ModelDir string `yaml:"model_dir"` // cascade files for the pigo backend
}

// PigoConfig tunes the pure Go cascade detector.
type PigoConfig struct {
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"`
	ShiftFactor  float64 `yaml:"shift_factor"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	IoUThreshold float64 `yaml:"iou_threshold"` // clustering of overlapping detections
	MinQuality   float64 `yaml:"min_quality"`   // detections scoring below are dropped
	Perturbs     int     `yaml:"perturbs"`
	NoseCascade  string  `yaml:"nose_cascade"` // file name under <model_dir>/lps
}

type RemoteConfig struct {
	URL       string        `yaml:"url"`
	CacheSize int           `yaml:"cache_size"`
	Timeout   time.Duration `yaml:"timeout"`
	MinIoU    float64       `yaml:"min_iou"`
}

type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

type FallbackConfig struct {
	Strategy     string `yaml:"strategy"`
	OpenAIModel  string `yaml:"openai_model"`
	GeminiModel  string `yaml:"gemini_model"`
	OllamaURL    string `yaml:"ollama_url"`
	OllamaModel  string `yaml:"ollama_model"`
	MaxImageSize int    `yaml:"max_image_size"` // longest side sent to the vision model
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or console
	File       string `yaml:"file"`   // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString returns the env var value, or defaultVal when it is unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg.Detector.Backend = strings.ToLower(envString("DETECTOR", cfg.Detector.Backend))
	cfg.Detector.ModelDir = envString("MODEL_DIR", cfg.Detector.ModelDir)
	cfg.Remote.URL = envString("FACE_SERVICE_URL", cfg.Remote.URL)
	cfg.Remote.CacheSize = envInt("FACE_SERVICE_CACHE_SIZE", cfg.Remote.CacheSize)

	cfg.Server.Host = envString("WEB_HOST", cfg.Server.Host)
	cfg.Server.Port = envInt("WEB_PORT", cfg.Server.Port)
	cfg.Server.MaxUploadSize = int64(envInt("MAX_UPLOAD_SIZE", int(cfg.Server.MaxUploadSize)))

	cfg.Fallback.Strategy = strings.ToLower(envString("FALLBACK", cfg.Fallback.Strategy))
	cfg.OpenAI.Token = os.Getenv("OPENAI_TOKEN")
	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Fallback.OllamaURL = envString("OLLAMA_URL", cfg.Fallback.OllamaURL)
	cfg.Fallback.OllamaModel = envString("OLLAMA_MODEL", cfg.Fallback.OllamaModel)

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = envString("LOG_FILE", cfg.Log.File)

	return &cfg
}

// Validate checks the values that cannot be defaulted silently.
func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case BackendPigo:
		if c.Detector.ModelDir == "" {
			return fmt.Errorf("MODEL_DIR is required for the %s detector", BackendPigo)
		}
	case BackendRemote:
		if c.Remote.URL == "" {
			return fmt.Errorf("FACE_SERVICE_URL is required for the %s detector", BackendRemote)
		}
	default:
		return fmt.Errorf("unknown detector %q (expected %s or %s)", c.Detector.Backend, BackendPigo, BackendRemote)
	}

	switch c.Fallback.Strategy {
	case FallbackRandom:
	case FallbackOpenAI:
		if c.OpenAI.Token == "" {
			return fmt.Errorf("OPENAI_TOKEN is required for the %s fallback", FallbackOpenAI)
		}
	case FallbackGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the %s fallback", FallbackGemini)
		}
	case FallbackOllama:
		if c.Fallback.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required for the %s fallback", FallbackOllama)
		}
	default:
		return fmt.Errorf("unknown fallback %q (expected one of %s, %s, %s, %s)",
			c.Fallback.Strategy, FallbackRandom, FallbackOpenAI, FallbackGemini, FallbackOllama)
	}

	if c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// Addr returns the listen address of the web server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
