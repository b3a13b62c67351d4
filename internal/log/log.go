// Package log provides structured logging for skeet.
// It wraps slog with sensible defaults for an unattended bot process.
package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
//
// When SKEET_LOG_FILE is set the log is mirrored to that file so a
// session that ran overnight can still be inspected after the terminal
// is gone.
func Init(level string) {
	once.Do(func() {
		var lvl slog.Level
		switch level {
		case "debug":
			lvl = slog.LevelDebug
		case "warn":
			lvl = slog.LevelWarn
		case "error":
			lvl = slog.LevelError
		default:
			lvl = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level: lvl,
		}

		var out io.Writer = os.Stdout
		if path := os.Getenv("SKEET_LOG_FILE"); path != "" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
				if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
					out = io.MultiWriter(os.Stdout, f)
				}
			}
		}

		// Use JSON in production, text in development
		if os.Getenv("SKEET_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(out, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(out, opts))
		}

		slog.SetDefault(logger)
	})
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
