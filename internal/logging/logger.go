// Package logging wraps the standard library's log/slog with the
// context-propagation helpers used across the scheduler, delivery pipeline
// and gardener: a consistent JSON/text logger and a request-scoped
// correlation ID carried alongside it.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// NewLogger creates a structured JSON logger. LOG_LEVEL=debug raises the
// level; anything else (including unset) is info.
func NewLogger() *slog.Logger {
	level := levelFromEnv()
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelWarn,
	})
	return slog.New(handler)
}

// NewTextLogger creates a human-readable logger, useful when running the
// bot interactively during development.
func NewTextLogger() *slog.Logger {
	level := levelFromEnv()
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelWarn,
	})
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	if os.Getenv("LOG_LEVEL") == "debug" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// WithCorrelationID returns a logger annotated with the correlation ID
// carried on ctx (see requestid.go), or logger unchanged if none is set.
func WithCorrelationID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	id := CorrelationID(ctx)
	if id == "" {
		return logger
	}
	return logger.With("correlation_id", id)
}

// WithFields returns a logger with the given key/value pairs attached.
func WithFields(logger *slog.Logger, fields map[string]interface{}) *slog.Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return logger.With(args...)
}

type contextKey string

const loggerContextKey contextKey = "logger"

// FromContext returns the logger stored on ctx, or slog.Default() if none.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithLogger attaches logger to ctx for later retrieval via FromContext.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}
