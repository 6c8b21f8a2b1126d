package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// New creates a new structured logger writing human-readable output to stderr.
// Stdout stays clean for the reader binary, whose only stdout line is the
// generated output path.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewWithWriter creates a new structured logger with a custom writer
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// WithContext adds the logger to the context so deeper layers can recover
// it via zerolog.Ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext retrieves the logger from the context or returns a default logger
func FromContext(ctx context.Context) zerolog.Logger {
	if logger := zerolog.Ctx(ctx); logger.GetLevel() != zerolog.Disabled {
		return *logger
	}
	return New()
}

// ForFile returns a sub-logger tagged with the base name of the file being
// processed. The agent loop attaches one per document unit.
func ForFile(logger zerolog.Logger, path string) zerolog.Logger {
	return logger.With().Str("file", filepath.Base(path)).Logger()
}
