package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		logger := New(config.LoggingConfig{Level: "info", Format: format, Output: "stdout"}, "1.0.0")
		if logger == nil {
			t.Fatalf("New(format=%q) returned nil", format)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogger_ComponentAndDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test-version", &buf)

	logger.Component("channel").Info("connected", "attempts", 0)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	want := map[string]any{
		"msg":       "connected",
		"service":   "sentinel",
		"version":   "test-version",
		"component": "channel",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Errorf("entry[%q] = %v, want %v", key, entry[key], value)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "test", &buf)

	logger.Info("should be dropped")
	logger.Warn("should be kept")

	output := buf.String()
	if strings.Contains(output, "should be dropped") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(output, "should be kept") {
		t.Error("warn entry missing")
	}
}

func TestDiscardAndDefault(t *testing.T) {
	if Discard() == nil {
		t.Fatal("Discard() returned nil")
	}
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
