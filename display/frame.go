// Package display turns committed metric snapshots into frames: a bitmap
// for the attached panel and a text panel for terminals.
package display

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// Frame is one rendered view of a single committed Sample.
type Frame struct {
	// Seq is the sequence number of the Sample the frame shows.
	Seq uint64
	// Image is the panel bitmap, already rotated.
	Image *image.NRGBA
	// Text is the terminal rendition of the same data.
	Text string
	// GenDuration is how long Generate took.
	GenDuration time.Duration
}

// Usage is a used/total pair for a usage bar.
type Usage struct {
	Used    uint64
	Total   uint64
	Percent float64
}

// String formats u as "1.2GiB / 4.0GiB (30.5%)".
func (u Usage) String() string {
	return fmt.Sprintf("%s / %s (%.1f%%)", FormatBytes(float64(u.Used)), FormatBytes(float64(u.Total)), u.Percent)
}

// Overlay is the wall-clock side data drawn on a frame. It is supplied by
// the caller so Generate stays a function of its inputs.
type Overlay struct {
	Hostname string
	IP       string
	Uptime   time.Duration

	Memory Usage
	Array  Usage

	Samples uint64
	Drops   uint64
	Elapsed time.Duration

	// LastGenerate and LastPresent are the stage durations of the previous
	// successful cycle.
	LastGenerate time.Duration
	LastPresent  time.Duration
}

// Options configures a Generator.
type Options struct {
	Width    int
	Height   int
	Rotation int
	// HistSize is the number of points across each chart.
	HistSize int
	// Debug adds the render timing and counter line.
	Debug bool
	// ProfileStage selects the timing on the debug line: "generate",
	// "present" or "both".
	ProfileStage string
	// BarColors are the array and memory bar colors as hex strings.
	BarColors []string
}

var (
	colBackground = color.NRGBA{R: 0x1e, G: 0x1f, B: 0x29, A: 0xff}
	colTitle      = color.NRGBA{R: 0x62, G: 0x72, B: 0xa4, A: 0xff}
	colText       = color.NRGBA{R: 0xf8, G: 0xf8, B: 0xf2, A: 0xff}
	colGrid       = color.NRGBA{R: 0x44, G: 0x47, B: 0x5a, A: 0xff}
	colAlert      = color.NRGBA{R: 0xff, G: 0x55, B: 0x55, A: 0xff}

	colCPU      = color.NRGBA{R: 0x8b, G: 0xe9, B: 0xfd, A: 0xc0}
	colTemp     = color.NRGBA{R: 0xff, G: 0x79, B: 0xc6, A: 0xc0}
	colRead     = color.NRGBA{R: 0x50, G: 0xfa, B: 0x7b, A: 0xc0}
	colWrite    = color.NRGBA{R: 0xff, G: 0xb8, B: 0x6c, A: 0xc0}
	colRecv     = color.NRGBA{R: 0xbd, G: 0x93, B: 0xf9, A: 0xc0}
	colSent     = color.NRGBA{R: 0xf1, G: 0xfa, B: 0x8c, A: 0xc0}
	defaultBars = [2]color.NRGBA{
		{R: 0x37, G: 0x5e, B: 0x1f, A: 0xff},
		{R: 0x4a, G: 0x2a, B: 0x7a, A: 0xff},
	}
)

const (
	dashLen    = 3
	tempScaleC = 100.0
)

// Generator draws frames. It holds no per-frame state and is safe for
// concurrent use.
type Generator struct {
	opts Options
	bars [2]color.NRGBA
}

// NewGenerator creates a Generator. Unparseable bar colors fall back to
// the defaults.
func NewGenerator(opts Options) *Generator {
	if opts.Width <= 0 {
		opts.Width = 320
	}
	if opts.Height <= 0 {
		opts.Height = 240
	}
	if opts.HistSize < 1 {
		opts.HistSize = 1
	}
	g := &Generator{opts: opts, bars: defaultBars}
	for i := 0; i < len(opts.BarColors) && i < 2; i++ {
		if c, ok := ParseHex(opts.BarColors[i]); ok {
			g.bars[i] = c
		}
	}
	return g
}

// Options returns the generator's settings.
func (g *Generator) Options() Options {
	return g.opts
}

type panels struct {
	header, cpu, cores, disk, net, bars image.Rectangle
}

func layout(w, h int) panels {
	var p panels
	header := lineHeight + 1
	body := h - header
	p.header = image.Rect(0, 0, w, header)

	y := header
	cut := func(frac float64) image.Rectangle {
		hh := int(float64(body) * frac)
		r := image.Rect(0, y, w, y+hh)
		y += hh
		return r
	}
	p.cpu = cut(0.26)
	p.cores = cut(0.08)
	p.disk = cut(0.22)
	p.net = cut(0.22)
	p.bars = image.Rect(0, y, w, h)
	return p
}

// Generate renders snap with ov. It reads nothing but its arguments.
func (g *Generator) Generate(snap sample.Snapshot, ov Overlay) (Frame, error) {
	start := time.Now()

	c := newCanvas(g.opts.Width, g.opts.Height, colBackground)
	p := layout(g.opts.Width, g.opts.Height)
	latest := snap.Latest

	g.drawHeader(c, p.header, ov)
	g.drawCPU(c, p.cpu, snap)
	g.drawCores(c, p.cores, latest)
	g.drawDisk(c, p.disk, snap)
	g.drawNetwork(c, p.net, snap)
	g.drawBars(c, p.bars, ov)

	img := rotate(c.img, g.opts.Rotation)
	text := g.panel(snap, ov)

	return Frame{
		Seq:         latest.Seq,
		Image:       img,
		Text:        text,
		GenDuration: time.Since(start),
	}, nil
}

func rotate(img *image.NRGBA, deg int) *image.NRGBA {
	switch deg {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

func (g *Generator) drawHeader(c *canvas, r image.Rectangle, ov Overlay) {
	host := strings.TrimSpace(ov.Hostname + " " + ov.IP)
	c.text(r.Min.X+2, r.Min.Y+baseline+1, host, colText)
	c.textRight(r.Max.X-2, r.Min.Y+baseline+1, "Uptime: "+FormatDuration(ov.Uptime), colText)
	c.line(r.Min.X, r.Max.Y-1, r.Max.X-1, r.Max.Y-1, colGrid, 0)
}

// chartFrame draws the faint centred title and returns the plot area.
func chartFrame(c *canvas, r image.Rectangle, title string) image.Rectangle {
	c.textCentered((r.Min.X+r.Max.X)/2, r.Min.Y+baseline+2, title, colTitle)
	c.line(r.Min.X, r.Max.Y-1, r.Max.X-1, r.Max.Y-1, colGrid, 0)
	return r.Inset(2)
}

// annotation draws the value line about a third of the way up the chart.
func annotation(c *canvas, r image.Rectangle, s string, col color.NRGBA) {
	y := r.Max.Y - r.Dy()*3/10
	c.textCentered((r.Min.X+r.Max.X)/2, y, s, col)
}

func (g *Generator) drawCPU(c *canvas, r image.Rectangle, snap sample.Snapshot) {
	plot := chartFrame(c, r, "C P U")
	c.series(plot, snap.Series(sample.KeyCPUPercent), g.opts.HistSize, 0, 100, colCPU, 0)
	c.series(plot, snap.Series(sample.KeyCPUTemp), g.opts.HistSize, 0, tempScaleC, colTemp, dashLen)
	if !snap.Latest.IsZero() {
		annotation(c, r, cpuLine(snap.Latest), colText)
	}
}

func cpuLine(s sample.Sample) string {
	line := fmt.Sprintf("%.1f%% %.2f GHz", s.Get(sample.KeyCPUPercent).Or(0), s.Get(sample.KeyCPUFreqGHz).Or(0))
	if t, ok := s.Get(sample.KeyCPUTemp).Float(); ok {
		line += fmt.Sprintf(" | %.1f°C", t)
	}
	return line
}

func (g *Generator) drawCores(c *canvas, r image.Rectangle, s sample.Sample) {
	cores := s.Cores()
	if len(cores) == 0 {
		c.textCentered((r.Min.X+r.Max.X)/2, r.Min.Y+baseline+2, "C o r e   H e a t m a p", colTitle)
		return
	}
	for i, v := range cores {
		x0 := r.Min.X + i*r.Dx()/len(cores)
		x1 := r.Min.X + (i+1)*r.Dx()/len(cores)
		c.fill(image.Rect(x0, r.Min.Y+1, x1, r.Max.Y-1), heatColor(v.Or(0)))
	}
	c.textCentered((r.Min.X+r.Max.X)/2, r.Min.Y+baseline+2, "C o r e   H e a t m a p", colTitle)
}

func (g *Generator) drawDisk(c *canvas, r image.Rectangle, snap sample.Snapshot) {
	plot := chartFrame(c, r, "D i s k s")
	read := snap.Series(sample.KeyDiskRead)
	write := snap.Series(sample.KeyDiskWrite)
	hi := seriesMax(read, write)
	c.series(plot, read, g.opts.HistSize, 0, hi, colRead, 0)
	c.series(plot, write, g.opts.HistSize, 0, hi, colWrite, dashLen)
	if !snap.Latest.IsZero() {
		annotation(c, r, diskLine(snap.Latest), colText)
	}
}

func diskLine(s sample.Sample) string {
	return fmt.Sprintf("R:%s/s | W:%s/s",
		FormatBytes(s.Get(sample.KeyDiskRead).Or(0)),
		FormatBytes(s.Get(sample.KeyDiskWrite).Or(0)))
}

func (g *Generator) drawNetwork(c *canvas, r image.Rectangle, snap sample.Snapshot) {
	plot := chartFrame(c, r, "N e t w o r k")
	recv := snap.Series(sample.KeyNetRecv)
	sent := snap.Series(sample.KeyNetSent)
	hi := seriesMax(recv, sent)
	c.series(plot, recv, g.opts.HistSize, 0, hi, colRecv, 0)
	c.series(plot, sent, g.opts.HistSize, 0, hi, colSent, dashLen)
	if snap.Latest.IsZero() {
		return
	}
	if networkDown(snap.Latest) {
		annotation(c, r, "!!! NETWORK DOWN !!!", colAlert)
		return
	}
	annotation(c, r, netLine(snap.Latest), colText)
}

func networkDown(s sample.Sample) bool {
	up, ok := s.Get(sample.KeyNetUp).Float()
	return ok && up == 0
}

func netLine(s sample.Sample) string {
	return fmt.Sprintf("RX %s/s | TX %s/s",
		FormatBytes(s.Get(sample.KeyNetRecv).Or(0)),
		FormatBytes(s.Get(sample.KeyNetSent).Or(0)))
}

func (g *Generator) drawBars(c *canvas, r image.Rectangle, ov Overlay) {
	const (
		barHeight = lineHeight
		labelW    = 7 * 7
	)
	rows := []struct {
		label string
		usage Usage
		col   color.NRGBA
	}{
		{"Array", ov.Array, g.bars[0]},
		{"Memory", ov.Memory, g.bars[1]},
	}

	y := r.Min.Y + 2
	for _, row := range rows {
		c.text(r.Min.X+2, y+baseline+1, row.label, colText)
		track := image.Rect(r.Min.X+labelW, y, r.Max.X-4, y+barHeight)
		c.fill(track, colGrid)
		pct := row.usage.Percent
		if pct < 0 {
			pct = 0
		} else if pct > 100 {
			pct = 100
		}
		filled := track
		filled.Max.X = track.Min.X + int(float64(track.Dx())*pct/100)
		c.fill(filled, row.col)
		c.textCentered((track.Min.X+track.Max.X)/2, y+baseline+1, row.usage.String(), colText)
		y += barHeight + 2
	}

	if !g.opts.Debug {
		return
	}
	y = r.Max.Y - 3
	c.text(r.Min.X+2, y, g.renderLabel(ov), colTitle)
	c.textRight(r.Max.X-2, y, fmt.Sprintf("%d,%d | %s", ov.Samples, ov.Drops, FormatDuration(ov.Elapsed)), colTitle)
}

// renderLabel is the timing half of the debug line.
func (g *Generator) renderLabel(ov Overlay) string {
	switch g.opts.ProfileStage {
	case "generate":
		return "Last plot gen: " + FormatMillis(ov.LastGenerate)
	case "present":
		return "Last render: " + FormatMillis(ov.LastPresent)
	default:
		return "Last render: " + FormatMillis(ov.LastGenerate+ov.LastPresent)
	}
}
