package render

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDetectProtocol(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want ImageProtocol
	}{
		{"plain xterm", map[string]string{"TERM": "xterm-256color"}, ProtocolUnicode},
		{"ghostty", map[string]string{"TERM_PROGRAM": "ghostty"}, ProtocolKitty},
		{"kitty term", map[string]string{"TERM": "xterm-kitty"}, ProtocolKitty},
		{"kitty window", map[string]string{"KITTY_WINDOW_ID": "1"}, ProtocolKitty},
		{"kitty in tmux", map[string]string{"TERM_PROGRAM": "kitty", "TMUX": "/tmp/tmux-1000/default,1,0"}, ProtocolUnicode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"TMUX", "STY", "TERM_PROGRAM", "TERM", "KITTY_WINDOW_ID", "WEZTERM_EXECUTABLE"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := DetectProtocol(); got != tt.want {
				t.Errorf("DetectProtocol() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderUnicode(t *testing.T) {
	r := Renderer{Protocol: ProtocolUnicode, MaxCols: 10, MaxRows: 5}
	out, err := r.Render(solid(4, 4, color.NRGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows, want 2 (4 pixel rows as half-blocks)", len(lines))
	}
	if n := strings.Count(lines[0], "▀"); n != 4 {
		t.Errorf("row has %d cells, want 4", n)
	}
	if !strings.Contains(out, "\033[38;2;255;0;0m") {
		t.Error("expected 24-bit red foreground")
	}
}

func TestRenderUnicodeFitsGrid(t *testing.T) {
	r := Renderer{Protocol: ProtocolUnicode, MaxCols: 40, MaxRows: 10}
	out, err := r.Render(solid(320, 240, color.NRGBA{G: 255, A: 255}))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 10 {
		t.Errorf("got %d rows, want at most 10", len(lines))
	}
	if n := strings.Count(lines[0], "▀"); n > 40 {
		t.Errorf("row has %d cells, want at most 40", n)
	}
}

func TestRenderKittyChunks(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			v := (x*7 + y*13 + x*y) % 256
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(v), G: uint8(255 - v), B: uint8((v * 3) % 256), A: 255})
		}
	}
	r := Renderer{Protocol: ProtocolKitty, MaxCols: 40, MaxRows: 20}
	out, err := r.Render(img)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(out, "\033_Gf=100,a=T,t=d,c=40,r=20,m=1;") {
		t.Errorf("first chunk header wrong: %q", out[:40])
	}
	if !strings.Contains(out, "\033_Gm=0;") {
		t.Error("missing final chunk marker")
	}
}

func TestRenderEmpty(t *testing.T) {
	if _, err := (Renderer{}).Render(nil); err != ErrEmptyImage {
		t.Errorf("Render(nil) = %v, want ErrEmptyImage", err)
	}
}

func TestCalculateDimensions(t *testing.T) {
	tests := []struct {
		name           string
		ow, oh, mw, mh int
		wantW, wantH   int
	}{
		{"fits", 10, 10, 20, 20, 10, 10},
		{"landscape", 320, 240, 80, 48, 64, 48},
		{"width bound", 320, 240, 40, 100, 40, 30},
		{"no limit", 320, 240, 0, 0, 320, 240},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := calculateDimensions(tt.ow, tt.oh, tt.mw, tt.mh)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("calculateDimensions = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
