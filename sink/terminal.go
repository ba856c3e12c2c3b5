package sink

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/x/term"

	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/display/render"
)

// Terminal output modes.
const (
	ModeText  = "text"
	ModeImage = "image"
)

// clearScreen homes the cursor and clears the screen.
const clearScreen = "\033[H\033[2J"

// TerminalSink redraws the terminal with each frame, as the text panel or
// as an image.
type TerminalSink struct {
	out      io.Writer
	mode     string
	protocol render.ImageProtocol
	size     func() (int, int)
}

// NewTerminalSink creates a TerminalSink writing to stdout.
func NewTerminalSink(mode string) *TerminalSink {
	return &TerminalSink{
		out:      os.Stdout,
		mode:     mode,
		protocol: render.DetectProtocol(),
		size:     DetectTerminalSize,
	}
}

// Name returns "terminal".
func (s *TerminalSink) Name() string { return "terminal" }

// Present redraws the terminal with f.
func (s *TerminalSink) Present(ctx context.Context, f display.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.mode == ModeImage {
		return s.drawImage(f.Image)
	}
	_, err := fmt.Fprint(s.out, clearScreen+f.Text+"\n")
	return err
}

// Placeholder draws img. In text mode it prints a one-line notice instead.
func (s *TerminalSink) Placeholder(img *image.NRGBA) error {
	if s.mode == ModeImage {
		return s.drawImage(img)
	}
	_, err := fmt.Fprint(s.out, clearScreen+"pulse-screen: no data\n")
	return err
}

func (s *TerminalSink) drawImage(img *image.NRGBA) error {
	cols, rows := s.size()
	// Leave a row for the shell prompt.
	r := render.Renderer{Protocol: s.protocol, MaxCols: cols, MaxRows: rows - 1}
	out, err := r.Render(img)
	if err != nil {
		return fmt.Errorf("sink: terminal: %w", err)
	}
	_, err = fmt.Fprint(s.out, clearScreen+out+"\n")
	return err
}

// DetectTerminalSize returns the current terminal dimensions.
// It attempts TTY detection first via the term package, then falls back
// to COLUMNS/LINES environment variables, and finally to 80x24 defaults.
func DetectTerminalSize() (width, height int) {
	w, h, err := term.GetSize(os.Stdout.Fd())
	if err == nil && w > 0 && h > 0 {
		return w, h
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if w, err := strconv.Atoi(cols); err == nil && w > 0 {
			width = w
		}
	}
	if lines := os.Getenv("LINES"); lines != "" {
		if h, err := strconv.Atoi(lines); err == nil && h > 0 {
			height = h
		}
	}

	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}
	return width, height
}
