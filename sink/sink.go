// Package sink delivers frames to their outputs: a PNG file for an
// attached panel, the terminal, or the interactive TUI.
package sink

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"gitlab.com/tinyland/lab/pulse-screen/display"
)

// Sink is one frame output.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Present shows f. It must return promptly once ctx is done.
	Present(ctx context.Context, f display.Frame) error
	// Placeholder shows a static image in place of frames, at startup and
	// before exit.
	Placeholder(img *image.NRGBA) error
}

// Presenter fans a frame out to every sink.
type Presenter struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewPresenter creates a Presenter over sinks.
func NewPresenter(logger *slog.Logger, sinks ...Sink) *Presenter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Presenter{sinks: sinks, logger: logger}
}

// Sinks returns the configured sinks.
func (p *Presenter) Sinks() []Sink {
	return p.sinks
}

// Present shows f on every sink in order. A failing sink is logged and
// skipped; Present fails only when no sink accepted the frame.
func (p *Presenter) Present(ctx context.Context, f display.Frame) error {
	var errs []error
	for _, s := range p.sinks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Present(ctx, f); err != nil {
			p.logger.Warn("sink failed", "sink", s.Name(), "seq", f.Seq, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(p.sinks) > 0 && len(errs) == len(p.sinks) {
		return fmt.Errorf("sink: all sinks failed: %w", errors.Join(errs...))
	}
	return nil
}

// Placeholder puts img up on every sink and returns the joined errors.
func (p *Presenter) Placeholder(img *image.NRGBA) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Placeholder(img); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
