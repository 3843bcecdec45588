package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-orienter/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orienter.log")

	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Debug("predicted", zap.String("orientation", "left"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, line)
	}
	if entry["msg"] != "predicted" {
		t.Errorf("expected msg 'predicted', got %v", entry["msg"])
	}
	if entry["orientation"] != "left" {
		t.Errorf("expected orientation field, got %v", entry["orientation"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("expected timestamp key")
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")

	logger, err := NewLogger(config.LogConfig{Level: "warn", File: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("expected warn entry in log file")
	}
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
	}{
		{name: "unknown level", cfg: config.LogConfig{Level: "loud"}},
		{name: "unknown format", cfg: config.LogConfig{Format: "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLogger(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWithOperation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	WithOperation(logger, "orient", "req-1").Info("done")
	WithOperation(logger, "orient", "").Info("done")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first["operation"] != "orient" || first["request_id"] != "req-1" {
		t.Errorf("unexpected fields: %v", first)
	}
	if _, ok := entries[1].ContextMap()["request_id"]; ok {
		t.Error("empty request ID should not be logged")
	}
}

func TestOperationError(t *testing.T) {
	base := errors.New("decode failed")

	err := NewOperationError("orient", "req-1", base)
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to match")
	}
	if got := err.Error(); got != "orient (request_id=req-1): decode failed" {
		t.Errorf("unexpected message: %q", got)
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "orient" {
		t.Errorf("expected OperationError, got %T", err)
	}

	if got := NewOperationError("fix", "", base).Error(); got != "fix: decode failed" {
		t.Errorf("unexpected message: %q", got)
	}
	if NewOperationError("fix", "", nil) != nil {
		t.Error("nil error should stay nil")
	}
}
