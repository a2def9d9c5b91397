// Package logging provides slog logger construction for the application.
//
// Loggers are injected through constructors rather than accessed globally;
// components add context with logger.With("component", ...).
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the application logger. JSON output is used outside dev so
// log collectors can parse entries.
func New(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if env == "dev" {
		opts.Level = slog.LevelDebug
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// NewNop returns a logger that discards everything. Test use only.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
