package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_SetsDefault(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	t.Setenv("LOG_LEVEL", "warn")
	logger := NewLogger()
	require.NotNil(t, logger)
	assert.Equal(t, logger, slog.Default())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, ParseLevel(tc.in), tc.in)
	}
}

func TestNewLoggerWithLevel_StructuredLogging(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := NewLoggerWithLevel("info", &buf)

	logger.Debug("hidden")
	logger.Info("resolved local time",
		"zone", "America/Los_Angeles",
		"category", "ambiguous",
		"probes", 2,
	)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))

	assert.Contains(t, logEntry, "time")
	assert.Contains(t, logEntry, "source")
	assert.Equal(t, "INFO", logEntry["level"])
	assert.Equal(t, "resolved local time", logEntry["msg"])
	assert.Equal(t, "America/Los_Angeles", logEntry["zone"])
	assert.Equal(t, "ambiguous", logEntry["category"])
	assert.Equal(t, float64(2), logEntry["probes"])
}
