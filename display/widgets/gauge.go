package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// GaugeConfig controls the appearance of a horizontal usage bar.
type GaugeConfig struct {
	// Width is the total character width of the gauge bar.
	Width int
	// Percent is the value from 0 to 100.
	Percent float64
	// Label is optional text shown to the left of the bar.
	Label string
	// Detail is optional text shown to the right, such as "1.2GiB / 4GiB".
	Detail string
	// Color is the filled portion's color. Empty picks a threshold color.
	Color lipgloss.Color
}

// gaugeColor returns the threshold color for the given percentage.
func gaugeColor(percent float64) lipgloss.Color {
	switch {
	case percent >= 90:
		return lipgloss.Color("#EF4444")
	case percent >= 70:
		return lipgloss.Color("#EAB308")
	default:
		return lipgloss.Color("#22C55E")
	}
}

// RenderGauge renders a horizontal bar gauge.
// Format: [Label] ████████░░░░ XX% [Detail]
func RenderGauge(cfg GaugeConfig) string {
	percent := math.Max(0, math.Min(100, cfg.Percent))

	width := cfg.Width
	if width <= 0 {
		width = 20
	}
	filledCount := int(math.Round(percent / 100.0 * float64(width)))

	col := cfg.Color
	if col == "" {
		col = gaugeColor(percent)
	}
	filled := lipgloss.NewStyle().Foreground(col).Render(strings.Repeat("█", filledCount))

	var sb strings.Builder
	if cfg.Label != "" {
		sb.WriteString(cfg.Label)
		sb.WriteString(" ")
	}
	sb.WriteString(filled)
	sb.WriteString(strings.Repeat("░", width-filledCount))
	sb.WriteString(fmt.Sprintf(" %3.0f%%", percent))
	if cfg.Detail != "" {
		sb.WriteString(" ")
		sb.WriteString(cfg.Detail)
	}
	return sb.String()
}
