// Package logging configures the application's slog loggers: a structured
// JSON logger on stdout, a human-readable text logger on stderr, and
// rotated per-service file loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	humanLogger      *slog.Logger
	mu               sync.RWMutex
)

// Init initializes the default loggers. Safe to call more than once; the
// last call wins.
func Init(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()

	structuredLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	humanLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(structuredLogger)
}

// SetOutput redirects the structured and human-readable loggers, used by
// tests to capture or silence output.
func SetOutput(structured, human io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()

	structuredLogger = slog.New(slog.NewJSONHandler(structured, &slog.HandlerOptions{Level: level}))
	humanLogger = slog.New(slog.NewTextHandler(human, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(structuredLogger)
}

// Structured returns the structured JSON logger, or nil before Init.
func Structured() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return structuredLogger
}

// HumanReadable returns the text logger, or nil before Init.
func HumanReadable() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return humanLogger
}

// ForService returns a logger with the 'service' attribute set, falling
// back to the process default logger when Init has not been called. The
// fallback keeps library code usable from tests without global setup.
func ForService(serviceName string) *slog.Logger {
	mu.RLock()
	base := structuredLogger
	mu.RUnlock()

	if base == nil {
		return slog.Default().With("service", serviceName)
	}
	return base.With("service", serviceName)
}

// FileLoggerOptions controls rotation of per-service log files.
type FileLoggerOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultFileLoggerOptions returns the rotation defaults used when a
// service does not configure its own.
func DefaultFileLoggerOptions() FileLoggerOptions {
	return FileLoggerOptions{
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// NewFileLogger creates a JSON slog.Logger writing to filePath with
// lumberjack rotation. It returns the logger and a close function for the
// underlying writer.
func NewFileLogger(filePath, serviceName string, level slog.Level, opts FileLoggerOptions) (*slog.Logger, func() error, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	if opts.MaxSizeMB <= 0 {
		opts = DefaultFileLoggerOptions()
	}

	writer := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With("service", serviceName)

	return logger, writer.Close, nil
}
