package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/pgunit/config"
)

// ParseLevel maps a configured level name (case-insensitive) to a
// slog.Level. The second result is false for unknown names, in which case
// the level is info.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup creates a JSON logger on stderr at the configured level and sets it
// as the default logger. Stdout stays reserved for command output.
func Setup(cfg config.LogConfig) (*slog.Logger, error) {
	logger := New(os.Stderr, cfg.Level)
	slog.SetDefault(logger)
	return logger, nil
}

// New creates a JSON logger writing to out. An unknown level falls back to
// info with a warning.
func New(out io.Writer, level string) *slog.Logger {
	parsed, ok := ParseLevel(level)

	var handler slog.Handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parsed})
	if attrs := ciAttrs(); len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	logger := slog.New(handler)

	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", level,
			"default_level", "info")
	}
	return logger
}
