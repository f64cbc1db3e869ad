// Package logging configures the diagnostic slog logger.
//
// Pass/fail output is the console reporter's job; this logger carries request
// tracing and warnings on stderr so it never mixes with the report.
package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Options controls the diagnostic logger
type Options struct {
	Verbose bool
	NoColor bool
}

// New returns a tint-backed logger writing to w.
// Verbose lowers the level to debug; otherwise only warnings and errors show.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	}))
}

// Setup builds the logger and installs it as the slog default
func Setup(w io.Writer, opts Options) *slog.Logger {
	logger := New(w, opts)
	slog.SetDefault(logger)
	return logger
}
