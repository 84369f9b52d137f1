package logging

import (
	"log/slog"
	"testing"
)

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := levelFromEnv(tt.input); got != tt.want {
			t.Errorf("levelFromEnv(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_TextFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "text")
	logger := New()
	if logger == nil {
		t.Fatal("expected a logger")
	}
	if !logger.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("expected info to be enabled by default")
	}
}

func TestNew_LevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	logger := New()
	if logger.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("expected info to be disabled at error level")
	}
	if !logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("expected error to be enabled")
	}
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger := SetDefault()
	if slog.Default() != logger {
		t.Error("SetDefault did not install the returned logger")
	}
}
