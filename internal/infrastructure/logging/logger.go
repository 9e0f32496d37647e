package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-sentinel/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "sentinel"

// Logger wraps slog.Logger with Sentinel-specific helpers.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the logging configuration.
//
// JSON is the default format; "text" selects the human-readable handler.
// Every entry carries service and version attributes.
func New(cfg config.LoggingConfig, version string) *Logger {
	return NewWithWriter(cfg, version, outputFor(cfg.Output))
}

// NewWithWriter is New with an explicit destination. Tests use it to
// capture output.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// outputFor maps the configured output name to a writer.
func outputFor(name string) io.Writer {
	switch strings.ToLower(name) {
	case "stderr":
		return os.Stderr
	case "discard":
		return io.Discard
	default:
		return os.Stdout
	}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Component returns a child logger tagged with component=name.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}
