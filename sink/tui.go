package sink

import (
	"context"
	"image"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/display/tui"
)

// sender is the part of *tea.Program the sink uses.
type sender interface {
	Send(msg tea.Msg)
}

// TUISink forwards frames to a running Bubbletea program.
type TUISink struct {
	program sender
	status  func() tui.Status
}

// NewTUISink creates a TUISink. status is read at every Present for the
// header counters; nil shows zeros.
func NewTUISink(program *tea.Program, status func() tui.Status) *TUISink {
	return &TUISink{program: program, status: status}
}

// Name returns "tui".
func (s *TUISink) Name() string { return "tui" }

// Present hands f to the program, giving up when ctx is done.
func (s *TUISink) Present(ctx context.Context, f display.Frame) error {
	var st tui.Status
	if s.status != nil {
		st = s.status()
	}
	return s.send(ctx, tui.FrameMsg{Frame: f, Status: st})
}

// placeholderWait bounds Placeholder when the program is not running.
const placeholderWait = time.Second

// Placeholder shows img in the image view.
func (s *TUISink) Placeholder(img *image.NRGBA) error {
	ctx, cancel := context.WithTimeout(context.Background(), placeholderWait)
	defer cancel()
	return s.send(ctx, tui.FrameMsg{Frame: display.Frame{Image: img, Text: "pulse-screen: no data"}})
}

func (s *TUISink) send(ctx context.Context, msg tea.Msg) error {
	done := make(chan struct{})
	go func() {
		// Send returns once the program receives the message or exits.
		s.program.Send(msg)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
