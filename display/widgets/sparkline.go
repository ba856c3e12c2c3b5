// Package widgets renders compact terminal charts for the text panel.
package widgets

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

// sparkBlocks contains 8 unicode block characters for sparkline rendering,
// ordered from lowest to highest.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// gapRune stands in for an unavailable reading.
const gapRune = '·'

// SparklineConfig controls the appearance and behavior of a sparkline chart.
type SparklineConfig struct {
	// Data points to render, oldest first. Unavailable points render as a gap.
	Data []sample.Value
	// Width is the number of characters to render. If 0, uses len(Data).
	Width int
	// Min is the minimum value for scaling. If Min == Max, auto-scale from
	// zero to the largest available point.
	Min float64
	// Max is the maximum value for scaling.
	Max float64
	// Color is the lipgloss color for the sparkline characters.
	Color lipgloss.Color
}

// RenderSparkline renders a unicode sparkline chart, newest point last.
func RenderSparkline(cfg SparklineConfig) string {
	if len(cfg.Data) == 0 {
		return ""
	}

	data := cfg.Data
	width := cfg.Width
	if width <= 0 {
		width = len(data)
	}
	if width < len(data) {
		data = data[len(data)-width:]
	}

	minVal, maxVal := cfg.Min, cfg.Max
	if minVal == maxVal {
		minVal = 0
		maxVal = 0
		for _, v := range data {
			if f, ok := v.Float(); ok && f > maxVal {
				maxVal = f
			}
		}
	}

	var sb strings.Builder
	if width > len(data) {
		sb.WriteString(strings.Repeat(" ", width-len(data)))
	}
	for _, v := range data {
		f, ok := v.Float()
		if !ok {
			sb.WriteRune(gapRune)
			continue
		}
		if maxVal <= minVal {
			sb.WriteRune(sparkBlocks[0])
			continue
		}
		normalized := math.Max(0, math.Min(1, (f-minVal)/(maxVal-minVal)))
		idx := int(math.Round(normalized * float64(len(sparkBlocks)-1)))
		sb.WriteRune(sparkBlocks[idx])
	}

	out := sb.String()
	if cfg.Color != "" {
		out = lipgloss.NewStyle().Foreground(cfg.Color).Render(out)
	}
	return out
}

// RenderHeatStrip renders one cell per load value (0-100), colored from
// dark red to white.
func RenderHeatStrip(loads []sample.Value) string {
	var sb strings.Builder
	for _, v := range loads {
		pct := math.Max(0, math.Min(100, v.Or(0)))
		idx := int(math.Round(pct / 100 * float64(len(sparkBlocks)-1)))
		style := lipgloss.NewStyle().Foreground(heatColor(pct))
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}
	return sb.String()
}

func heatColor(pct float64) lipgloss.Color {
	switch {
	case pct >= 90:
		return lipgloss.Color("#FFFFFF")
	case pct >= 70:
		return lipgloss.Color("#FDE047")
	case pct >= 40:
		return lipgloss.Color("#F97316")
	default:
		return lipgloss.Color("#991B1B")
	}
}
