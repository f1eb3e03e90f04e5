package config

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, slog.LevelWarn, GetLogLevel())

	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, slog.LevelInfo, GetLogLevel())
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")

	for _, mode := range []LogMode{LogModeHTTP, LogModeStdio, LogModeCLI} {
		logger := NewLogger(mode)
		assert.NotNil(t, logger)
		assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	}
}

func TestNewTestLogger(t *testing.T) {
	var buf bytes.Buffer

	t.Run("explicit level filters", func(t *testing.T) {
		buf.Reset()
		logger := NewTestLogger(&buf, "ERROR")
		logger.Debug("debug message")
		logger.Error("error message")

		assert.NotContains(t, buf.String(), "debug message")
		assert.Contains(t, buf.String(), "error message")
	})

	t.Run("empty level uses env", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "DEBUG")
		buf.Reset()
		NewTestLogger(&buf, "").Debug("debug message")

		assert.Contains(t, buf.String(), "debug message")
	})
}

func TestLogLevelIntegration(t *testing.T) {
	testCases := []struct {
		logLevel string
		logged   map[string]bool
	}{
		{"DEBUG", map[string]bool{"debug": true, "info": true, "warn": true, "error": true}},
		{"INFO", map[string]bool{"debug": false, "info": true, "warn": true, "error": true}},
		{"WARN", map[string]bool{"debug": false, "info": false, "warn": true, "error": true}},
		{"ERROR", map[string]bool{"debug": false, "info": false, "warn": false, "error": true}},
	}

	for _, tc := range testCases {
		t.Run("log level "+tc.logLevel, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tc.logLevel)

			var buf bytes.Buffer
			logger := NewTextLogger(&buf)
			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			for level, want := range tc.logged {
				if want {
					assert.Contains(t, buf.String(), level+" message")
				} else {
					assert.NotContains(t, buf.String(), level+" message")
				}
			}
		})
	}
}
