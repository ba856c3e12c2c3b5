// Package logging builds the process logger: log/slog on top of an mtlog
// pipeline writing to the console and, optionally, a file.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/willibrandon/mtlog"
	"github.com/willibrandon/mtlog/core"
	"github.com/willibrandon/mtlog/sinks"
)

// AppName is attached to every event as the "app" property.
const AppName = "pulse-screen"

// Options configures New.
type Options struct {
	// Verbose lowers the minimum level to debug.
	Verbose bool
	// File is an optional log file appended to alongside the console.
	File string
	// Quiet drops the console sink, for when the TUI owns the terminal.
	Quiet bool
	// Sinks are extra destinations, mostly for tests.
	Sinks []core.LogEventSink
}

// New returns a logger and a function that flushes and closes its file
// sink.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := core.InformationLevel
	if opts.Verbose {
		level = core.DebugLevel
	}

	options := []mtlog.Option{
		mtlog.WithMinimumLevel(level),
		mtlog.WithProperty("app", AppName),
	}
	if !opts.Quiet {
		options = append(options, mtlog.WithConsole())
	}
	for _, s := range opts.Sinks {
		options = append(options, mtlog.WithSink(s))
	}

	closeFn := func() error { return nil }
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create log directory: %w", err)
		}
		fs, err := sinks.NewFileSink(opts.File)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", opts.File, err)
		}
		options = append(options, mtlog.WithSink(fs))
		closeFn = fs.Close
	}

	return mtlog.NewSlogLogger(options...), closeFn, nil
}

// Must is New for callers that cannot continue without a logger. It falls
// back to a plain stderr logger and reports the failure through it.
func Must(opts Options) (*slog.Logger, func() error) {
	logger, closeFn, err := New(opts)
	if err == nil {
		return logger, closeFn
	}
	fallback := slog.New(slog.NewTextHandler(os.Stderr, nil))
	fallback.Warn("falling back to stderr logging", "error", err)
	return fallback, func() error { return nil }
}
