// Package logger configures log/slog for the API process.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs a JSON slog logger with source locations as the default
// logger and returns it.
func Setup(level slog.Level) *slog.Logger {
	return setup(os.Stdout, level)
}

func setup(w io.Writer, level slog.Level) *slog.Logger {
	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
	slog.SetDefault(l)
	return l
}

// ParseLevel converts "debug", "info", "warn" or "error" to a slog.Level.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
