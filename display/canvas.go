package display

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// face is the label font. It covers ASCII and Latin-1, so "°" renders.
var face font.Face = basicfont.Face7x13

const (
	lineHeight = 13
	baseline   = 10
)

// canvas draws primitives onto an NRGBA bitmap.
type canvas struct {
	img *image.NRGBA
}

func newCanvas(w, h int, bg color.NRGBA) *canvas {
	c := &canvas{img: image.NewNRGBA(image.Rect(0, 0, w, h))}
	c.fill(c.img.Rect, bg)
	return c
}

func (c *canvas) fill(r image.Rectangle, col color.NRGBA) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

// plot blends col over the pixel at (x, y) using col's alpha.
func (c *canvas) plot(x, y int, col color.NRGBA) {
	if !(image.Point{X: x, Y: y}).In(c.img.Rect) {
		return
	}
	i := c.img.PixOffset(x, y)
	px := c.img.Pix[i : i+4 : i+4]
	a := uint32(col.A)
	px[0] = uint8((uint32(col.R)*a + uint32(px[0])*(255-a)) / 255)
	px[1] = uint8((uint32(col.G)*a + uint32(px[1])*(255-a)) / 255)
	px[2] = uint8((uint32(col.B)*a + uint32(px[2])*(255-a)) / 255)
	px[3] = 255
}

// line draws from (x0, y0) to (x1, y1). A positive dash leaves gaps of
// dash pixels every dash pixels.
func (c *canvas) line(x0, y0, x1, y1 int, col color.NRGBA, dash int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for step := 0; ; step++ {
		if dash <= 0 || (step/dash)%2 == 0 {
			c.plot(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// text draws s with its baseline at y.
func (c *canvas) text(x, y int, s string, col color.NRGBA) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// textCentered draws s horizontally centred on cx.
func (c *canvas) textCentered(cx, y int, s string, col color.NRGBA) {
	c.text(cx-textWidth(s)/2, y, s, col)
}

// textRight draws s ending at x.
func (c *canvas) textRight(x, y int, s string, col color.NRGBA) {
	c.text(x-textWidth(s), y, s, col)
}

func textWidth(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// series plots vals as a polyline inside r, newest at the right edge, with
// capacity slots across the width. Unavailable points break the line.
func (c *canvas) series(r image.Rectangle, vals []sample.Value, capacity int, lo, hi float64, col color.NRGBA, dash int) {
	if len(vals) == 0 || r.Dx() < 2 || r.Dy() < 2 {
		return
	}
	if capacity < len(vals) {
		capacity = len(vals)
	}
	if hi <= lo {
		hi = lo + 1
	}

	xAt := func(i int) int {
		slot := capacity - len(vals) + i
		if capacity == 1 {
			return r.Max.X - 1
		}
		return r.Min.X + slot*(r.Dx()-1)/(capacity-1)
	}
	yAt := func(v float64) int {
		f := (v - lo) / (hi - lo)
		f = math.Max(0, math.Min(1, f))
		return r.Max.Y - 1 - int(math.Round(f*float64(r.Dy()-1)))
	}

	prevOK := false
	var px, py int
	for i, v := range vals {
		f, ok := v.Float()
		if !ok {
			prevOK = false
			continue
		}
		x, y := xAt(i), yAt(f)
		if prevOK {
			c.line(px, py, x, y, col, dash)
		} else {
			c.plot(x, y, col)
		}
		px, py, prevOK = x, y, true
	}
}

// seriesMax returns the largest available value across all series, or
// zero.
func seriesMax(all ...[]sample.Value) float64 {
	var m float64
	for _, vals := range all {
		for _, v := range vals {
			if f, ok := v.Float(); ok && f > m {
				m = f
			}
		}
	}
	return m
}

// heatColor maps a 0-100 load to a black-red-yellow-white ramp.
func heatColor(pct float64) color.NRGBA {
	t := math.Max(0, math.Min(1, pct/100))
	r := math.Min(1, 1.5*t)
	g := math.Max(0, 2*t-1)
	b := math.Max(0, 4*t-3)
	return color.NRGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

// ParseHex parses "#rrggbb" or "#rgb" into an opaque color.
func ParseHex(s string) (color.NRGBA, bool) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	var v [3]uint8
	switch len(s) {
	case 6:
		for i := 0; i < 3; i++ {
			hi, ok1 := hexDigit(s[2*i])
			lo, ok2 := hexDigit(s[2*i+1])
			if !ok1 || !ok2 {
				return color.NRGBA{}, false
			}
			v[i] = hi<<4 | lo
		}
	case 3:
		for i := 0; i < 3; i++ {
			d, ok := hexDigit(s[i])
			if !ok {
				return color.NRGBA{}, false
			}
			v[i] = d<<4 | d
		}
	default:
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: v[0], G: v[1], B: v[2], A: 255}, true
}

func hexDigit(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
