package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogMode selects the handler and destination for a logger
type LogMode int

const (
	// LogModeHTTP writes JSON to stdout for log collectors
	LogModeHTTP LogMode = iota
	// LogModeStdio writes text to stderr so stdout stays free for MCP framing
	LogModeStdio
	// LogModeCLI writes text to stderr so command output can be piped
	LogModeCLI
)

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetLogLevel returns the log level from the LOG_LEVEL environment variable,
// defaulting to INFO
func GetLogLevel() slog.Level {
	return parseLogLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger creates the process logger for the given mode
func NewLogger(mode LogMode) *slog.Logger {
	opts := &slog.HandlerOptions{Level: GetLogLevel()}

	switch mode {
	case LogModeStdio, LogModeCLI:
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
}

// NewTextLogger creates a text logger writing to output at the LOG_LEVEL level
func NewTextLogger(output io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: GetLogLevel()}))
}

// NewTestLogger creates a logger for tests. An empty level falls back to
// LOG_LEVEL.
func NewTestLogger(output io.Writer, level string) *slog.Logger {
	logLevel := GetLogLevel()
	if level != "" {
		logLevel = parseLogLevel(level)
	}

	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
}
