package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// kittyChunkSize is the maximum number of base64 bytes per Kitty protocol chunk.
const kittyChunkSize = 4096

// ErrEmptyImage is returned for a nil or zero-sized image.
var ErrEmptyImage = errors.New("render: empty image")

// Renderer turns a bitmap into terminal output sized to MaxCols x MaxRows
// character cells.
type Renderer struct {
	Protocol ImageProtocol
	MaxCols  int
	MaxRows  int
}

// Render encodes img for the configured protocol.
func (r Renderer) Render(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrEmptyImage
	}
	switch r.Protocol {
	case ProtocolKitty:
		return r.renderKitty(img)
	default:
		return r.renderUnicode(img), nil
	}
}

// renderKitty transmits img as PNG using the Kitty Graphics Protocol.
func (r Renderer) renderKitty(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("render: encode png: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	cols, rows := r.MaxCols, r.MaxRows

	var b strings.Builder

	if len(encoded) <= kittyChunkSize {
		// Single chunk: m=0 means this is the only (and last) chunk.
		fmt.Fprintf(&b, "\033_Gf=100,a=T,t=d,c=%d,r=%d,m=0;%s\033\\", cols, rows, encoded)
		return b.String(), nil
	}

	for i := 0; i < len(encoded); i += kittyChunkSize {
		end := i + kittyChunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunk := encoded[i:end]
		isLast := end >= len(encoded)

		switch {
		case i == 0:
			// First chunk includes all metadata.
			fmt.Fprintf(&b, "\033_Gf=100,a=T,t=d,c=%d,r=%d,m=1;%s\033\\", cols, rows, chunk)
		case isLast:
			fmt.Fprintf(&b, "\033_Gm=0;%s\033\\", chunk)
		default:
			fmt.Fprintf(&b, "\033_Gm=1;%s\033\\", chunk)
		}
	}

	return b.String(), nil
}

// renderUnicode resizes img to fit the cell grid and renders each pair of
// pixel rows as one row of upper half-blocks: foreground is the top pixel,
// background the bottom one.
func (r Renderer) renderUnicode(img image.Image) string {
	bounds := img.Bounds()
	w, h := calculateDimensions(bounds.Dx(), bounds.Dy(), r.MaxCols, r.MaxRows*2)
	resized := imaging.Resize(img, w, h, imaging.Box)

	var b strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			topR, topG, topB := colorToRGB(resized.NRGBAAt(x, y))

			var botR, botG, botB uint8
			if y+1 < h {
				botR, botG, botB = colorToRGB(resized.NRGBAAt(x, y+1))
			}

			fmt.Fprintf(&b, "\033[38;2;%d;%d;%dm\033[48;2;%d;%d;%dm▀",
				topR, topG, topB, botR, botG, botB)
		}
		b.WriteString("\033[0m")
	}
	return b.String()
}

// colorToRGB drops alpha from an NRGBA pixel.
func colorToRGB(c color.NRGBA) (r, g, b uint8) {
	return c.R, c.G, c.B
}

// calculateDimensions returns dimensions that fit within maxWidth x maxHeight
// while maintaining the original aspect ratio. Images are never enlarged.
func calculateDimensions(origWidth, origHeight, maxWidth, maxHeight int) (int, int) {
	if origWidth <= 0 || origHeight <= 0 {
		return origWidth, origHeight
	}
	if maxWidth <= 0 || maxHeight <= 0 {
		return origWidth, origHeight
	}

	// Already fits, no resize needed.
	if origWidth <= maxWidth && origHeight <= maxHeight {
		return origWidth, origHeight
	}

	ratioW := float64(maxWidth) / float64(origWidth)
	ratioH := float64(maxHeight) / float64(origHeight)

	ratio := ratioW
	if ratioH < ratioW {
		ratio = ratioH
	}

	newW := int(float64(origWidth) * ratio)
	newH := int(float64(origHeight) * ratio)

	// Ensure at least 1 pixel in each dimension.
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	return newW, newH
}
