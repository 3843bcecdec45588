package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DETECTOR", "MODEL_DIR", "FACE_SERVICE_URL", "WEB_HOST", "WEB_PORT", "MAX_UPLOAD_SIZE", "FALLBACK", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Detector.Backend != BackendPigo {
		t.Errorf("expected backend %q, got %q", BackendPigo, cfg.Detector.Backend)
	}
	if cfg.Detector.ModelDir != "./model" {
		t.Errorf("expected model dir ./model, got %q", cfg.Detector.ModelDir)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 5000 {
		t.Errorf("expected 0.0.0.0:5000, got %s", cfg.Server.Addr())
	}
	if cfg.Server.MaxUploadSize != 100<<20 {
		t.Errorf("expected 100MB upload limit, got %d", cfg.Server.MaxUploadSize)
	}
	if cfg.Fallback.Strategy != FallbackRandom {
		t.Errorf("expected %q fallback, got %q", FallbackRandom, cfg.Fallback.Strategy)
	}
	if cfg.Remote.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Remote.Timeout)
	}
	if cfg.Pigo.NoseCascade != "lp93" {
		t.Errorf("expected nose cascade lp93, got %q", cfg.Pigo.NoseCascade)
	}
	if cfg.Pigo.MinSize <= 0 || cfg.Pigo.MaxSize < cfg.Pigo.MinSize {
		t.Errorf("unexpected pigo size range %d..%d", cfg.Pigo.MinSize, cfg.Pigo.MaxSize)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info log level, got %q", cfg.Log.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DETECTOR", "Remote")
	t.Setenv("MODEL_DIR", "/srv/models")
	t.Setenv("FACE_SERVICE_URL", "http://faces:9000")
	t.Setenv("WEB_HOST", "127.0.0.1")
	t.Setenv("WEB_PORT", "8080")
	t.Setenv("MAX_UPLOAD_SIZE", "1024")
	t.Setenv("FALLBACK", "GEMINI")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("LOG_FORMAT", "console")

	cfg := Load()

	if cfg.Detector.Backend != BackendRemote {
		t.Errorf("expected backend %q, got %q", BackendRemote, cfg.Detector.Backend)
	}
	if cfg.Detector.ModelDir != "/srv/models" {
		t.Errorf("expected /srv/models, got %q", cfg.Detector.ModelDir)
	}
	if cfg.Remote.URL != "http://faces:9000" {
		t.Errorf("expected face service URL override, got %q", cfg.Remote.URL)
	}
	if got := cfg.Server.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("expected 127.0.0.1:8080, got %s", got)
	}
	if cfg.Server.MaxUploadSize != 1024 {
		t.Errorf("expected upload limit 1024, got %d", cfg.Server.MaxUploadSize)
	}
	if cfg.Fallback.Strategy != FallbackGemini {
		t.Errorf("expected %q fallback, got %q", FallbackGemini, cfg.Fallback.Strategy)
	}
	if cfg.Gemini.APIKey != "key" {
		t.Errorf("expected Gemini key, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("expected console log format, got %q", cfg.Log.Format)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{name: "unset", value: "", expected: 7},
		{name: "valid", value: "42", expected: 42},
		{name: "not a number", value: "abc", expected: 7},
		{name: "zero", value: "0", expected: 7},
		{name: "negative", value: "-3", expected: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			if got := envInt("TEST_ENV_INT", 7); got != tt.expected {
				t.Errorf("envInt() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Detector: DetectorConfig{Backend: BackendPigo, ModelDir: "./model"},
			Remote:   RemoteConfig{URL: "http://localhost:8000"},
			Server:   ServerConfig{Port: 5000},
			Fallback: FallbackConfig{Strategy: FallbackRandom},
		}
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "unknown detector", modify: func(c *Config) { c.Detector.Backend = "dlib" }, wantErr: true},
		{name: "pigo without model dir", modify: func(c *Config) { c.Detector.ModelDir = "" }, wantErr: true},
		{name: "remote without url", modify: func(c *Config) {
			c.Detector.Backend = BackendRemote
			c.Remote.URL = ""
		}, wantErr: true},
		{name: "openai without token", modify: func(c *Config) { c.Fallback.Strategy = FallbackOpenAI }, wantErr: true},
		{name: "openai with token", modify: func(c *Config) {
			c.Fallback.Strategy = FallbackOpenAI
			c.OpenAI.Token = "sk-test"
		}},
		{name: "gemini without key", modify: func(c *Config) { c.Fallback.Strategy = FallbackGemini }, wantErr: true},
		{name: "ollama with url", modify: func(c *Config) {
			c.Fallback.Strategy = FallbackOllama
			c.Fallback.OllamaURL = "http://localhost:11434"
		}},
		{name: "ollama without url", modify: func(c *Config) { c.Fallback.Strategy = FallbackOllama }, wantErr: true},
		{name: "unknown fallback", modify: func(c *Config) { c.Fallback.Strategy = "coin" }, wantErr: true},
		{name: "port out of range", modify: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
