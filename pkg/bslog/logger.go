// Package bslog provides the structured logger used across the
// bytestream initiator core, mirroring the teacher's pkg/shared logging
// conventions: a single slog-backed logger and emoji-prefixed convenience
// wrappers grouped by concern, each taking slog.Attr values.
package bslog

import (
	"context"
	"log/slog"
	"os"
)

var logger *slog.Logger

// Config controls logger initialization.
type Config struct {
	Level       slog.Level
	Format      string // "json" or "text"
	AddSource   bool
	ServiceName string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:       slog.LevelInfo,
		Format:      "text",
		ServiceName: "bytestream5",
	}
}

// Init initializes the global structured logger.
func Init(cfg *Config) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger = slog.New(handler).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
}

// Get returns the global logger, initializing it with defaults on first use.
func Get() *slog.Logger {
	if logger == nil {
		Init(nil)
	}
	return logger
}

func infoAttrs(emoji, operation string, attrs ...slog.Attr) {
	Get().LogAttrs(context.Background(), slog.LevelInfo, emoji+" "+operation, attrs...)
}

// Success logs a completed-operation message.
func Success(operation string, attrs ...slog.Attr) { infoAttrs("✅", operation, attrs...) }

// Progress logs an in-progress/activity message.
func Progress(operation string, attrs ...slog.Attr) { infoAttrs("🔄", operation, attrs...) }

// Network logs a network-lifecycle message.
func Network(operation string, attrs ...slog.Attr) { infoAttrs("🌐", operation, attrs...) }

// Target logs a target/action message (e.g. "connecting to X").
func Target(operation string, attrs ...slog.Attr) { infoAttrs("🎯", operation, attrs...) }

// Close logs a closure/teardown message.
func Close(operation string, attrs ...slog.Attr) { infoAttrs("🔚", operation, attrs...) }

// Info logs a plain informational message.
func Info(operation string, attrs ...slog.Attr) { infoAttrs("ℹ️", operation, attrs...) }

// Error logs a failed-operation message with the causing error attached.
func Error(operation string, err error, attrs ...slog.Attr) {
	all := append([]slog.Attr{slog.String("error", err.Error())}, attrs...)
	Get().LogAttrs(context.Background(), slog.LevelError, "❌ "+operation, all...)
}

// Warn logs a warning message.
func Warn(operation string, attrs ...slog.Attr) {
	Get().LogAttrs(context.Background(), slog.LevelWarn, "⚠️ "+operation, attrs...)
}
