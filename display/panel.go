package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/pulse-screen/display/widgets"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

const (
	panelChartWidth = 40
	panelGaugeWidth = 20
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(7)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BE9FD"))
	faintStyle = lipgloss.NewStyle().Faint(true)
	alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555"))
)

// panel renders the terminal text version of a frame.
func (g *Generator) panel(snap sample.Snapshot, ov Overlay) string {
	s := snap.Latest
	width := g.opts.HistSize
	if width > panelChartWidth {
		width = panelChartWidth
	}

	var lines []string
	lines = append(lines, titleStyle.Render(strings.TrimSpace(ov.Hostname+" "+ov.IP))+
		"  "+faintStyle.Render("Uptime: "+FormatDuration(ov.Uptime)))

	row := func(label, chart, detail string) string {
		return labelStyle.Render(label) + chart + "  " + detail
	}

	cpuChart := widgets.RenderSparkline(widgets.SparklineConfig{
		Data: snap.Series(sample.KeyCPUPercent), Width: width, Min: 0, Max: 100,
		Color: lipgloss.Color("#8BE9FD"),
	})
	lines = append(lines, row("CPU", cpuChart, panelValue(s, cpuLine)))

	if cores := s.Cores(); len(cores) > 0 {
		lines = append(lines, labelStyle.Render("Cores")+widgets.RenderHeatStrip(cores))
	}

	diskChart := widgets.RenderSparkline(widgets.SparklineConfig{
		Data: snap.Series(sample.KeyDiskRead), Width: width,
		Color: lipgloss.Color("#50FA7B"),
	})
	lines = append(lines, row("Disk", diskChart, panelValue(s, diskLine)))

	netChart := widgets.RenderSparkline(widgets.SparklineConfig{
		Data: snap.Series(sample.KeyNetRecv), Width: width,
		Color: lipgloss.Color("#BD93F9"),
	})
	netDetail := panelValue(s, netLine)
	if !s.IsZero() && networkDown(s) {
		netDetail = alertStyle.Render("NETWORK DOWN")
	}
	lines = append(lines, row("Net", netChart, netDetail))

	lines = append(lines,
		labelStyle.Render("Array")+widgets.RenderGauge(widgets.GaugeConfig{
			Width: panelGaugeWidth, Percent: ov.Array.Percent,
			Detail: fmt.Sprintf("%s / %s", FormatBytes(float64(ov.Array.Used)), FormatBytes(float64(ov.Array.Total))),
			Color:  lipgloss.Color(g.barHex(0)),
		}),
		labelStyle.Render("Memory")+widgets.RenderGauge(widgets.GaugeConfig{
			Width: panelGaugeWidth, Percent: ov.Memory.Percent,
			Detail: fmt.Sprintf("%s / %s", FormatBytes(float64(ov.Memory.Used)), FormatBytes(float64(ov.Memory.Total))),
			Color:  lipgloss.Color(g.barHex(1)),
		}),
	)

	if g.opts.Debug {
		lines = append(lines, faintStyle.Render(fmt.Sprintf("%s  %d,%d | %s",
			g.renderLabel(ov), ov.Samples, ov.Drops, FormatDuration(ov.Elapsed))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// panelValue formats the latest reading, or "waiting for data" before the
// first commit.
func panelValue(s sample.Sample, format func(sample.Sample) string) string {
	if s.IsZero() {
		return faintStyle.Render("waiting for data")
	}
	return format(s)
}

func (g *Generator) barHex(i int) string {
	c := g.bars[i]
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
