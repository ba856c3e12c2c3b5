package sink

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/state"
)

// PNGSink writes each frame to a PNG file that a panel driver or image
// viewer can pick up. The file is replaced atomically.
type PNGSink struct {
	path    string
	encoder png.Encoder
}

// NewPNGSink creates a PNGSink writing to path.
func NewPNGSink(path string) *PNGSink {
	return &PNGSink{path: path, encoder: png.Encoder{CompressionLevel: png.BestSpeed}}
}

// Name returns "png".
func (s *PNGSink) Name() string { return "png" }

// Path returns the output file.
func (s *PNGSink) Path() string { return s.path }

// Present writes f.Image.
func (s *PNGSink) Present(ctx context.Context, f display.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(f.Image)
}

// Placeholder writes img.
func (s *PNGSink) Placeholder(img *image.NRGBA) error {
	return s.write(img)
}

func (s *PNGSink) write(img *image.NRGBA) error {
	if img == nil {
		return fmt.Errorf("sink: png: no image")
	}
	var buf bytes.Buffer
	if err := s.encoder.Encode(&buf, img); err != nil {
		return fmt.Errorf("sink: png: encode: %w", err)
	}
	return state.WriteAtomic(s.path, buf.Bytes(), 0644)
}
