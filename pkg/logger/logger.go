// Package logger provides logging utilities for the tzresolve service.
// It includes structured logging setup and configuration.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a new structured logger writing JSON to stdout at the
// level named by LOG_LEVEL, and installs it as the default logger
func NewLogger() *slog.Logger {
	return NewLoggerWithLevel(os.Getenv("LOG_LEVEL"), os.Stdout)
}

// NewLoggerWithLevel creates a structured JSON logger writing to w and
// installs it as the default logger
func NewLoggerWithLevel(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	}

	logger := slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
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
