// Package tui is the interactive terminal view of pulse-screen: the latest
// frame as a text panel or as a half-block image, with warm-up progress
// and drop counters.
package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/display/render"
)

// View selects how the frame is shown.
type View int

const (
	ViewPanel View = iota
	ViewImage
)

func (v View) String() string {
	if v == ViewImage {
		return "image"
	}
	return "panel"
}

// Status is the scheduler state shown in the header.
type Status struct {
	Samples uint64
	Drops   uint64
	// WarmupDone and WarmupTotal track calibration. WarmupTotal is zero
	// when calibration is disabled.
	WarmupDone  int
	WarmupTotal int
}

// FrameMsg delivers a presented frame to the model.
type FrameMsg struct {
	Frame  display.Frame
	Status Status
}

// Model is the top-level Bubbletea model for the pulse-screen TUI.
type Model struct {
	view     View
	width    int
	height   int
	frame    *display.Frame
	status   Status
	ready    bool
	help     help.Model
	progress progress.Model
	protocol render.ImageProtocol
}

// NewModel returns an initialized Model showing the text panel.
func NewModel() Model {
	return Model{
		view:     ViewPanel,
		help:     help.New(),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		// Kitty graphics do not survive the alt-screen redraws, so the
		// image view always uses half-blocks.
		protocol: render.ProtocolUnicode,
	}
}

// Init implements tea.Model. No initial commands are needed.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.ToggleView):
			m.view = (m.view + 1) % 2
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case FrameMsg:
		f := msg.Frame
		m.frame = &f
		m.status = msg.Status
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), m.renderContent(), m.renderFooter())
}

func (m Model) renderHeader() string {
	title := styleTitle.Render("pulse-screen") + " " + styleMode.Render(m.view.String())
	counters := fmt.Sprintf("  samples %d  drops %d", m.status.Samples, m.status.Drops)
	if m.status.Drops > 0 {
		counters = styleAlert.Render(counters)
	}

	line := title + counters
	if m.status.WarmupTotal > 0 && m.status.WarmupDone < m.status.WarmupTotal {
		pct := float64(m.status.WarmupDone) / float64(m.status.WarmupTotal)
		line += fmt.Sprintf("  calibrating %d/%d ", m.status.WarmupDone, m.status.WarmupTotal) +
			m.progress.ViewAs(pct)
	}
	return styleHeader.Width(m.width).Render(line)
}

func (m Model) renderContent() string {
	if m.frame == nil {
		return styleContent.Render("waiting for the first frame...")
	}

	if m.view == ViewPanel {
		return styleContent.Width(m.width).Render(m.frame.Text)
	}

	// Header, footer and padding take about 6 rows.
	rows := m.height - 6
	if rows < 1 {
		rows = 1
	}
	r := render.Renderer{Protocol: m.protocol, MaxCols: m.width - 4, MaxRows: rows}
	out, err := r.Render(m.frame.Image)
	if err != nil {
		return styleContent.Render(styleAlert.Render(err.Error()))
	}
	return styleContent.Render(out)
}

func (m Model) renderFooter() string {
	return styleFooter.Width(m.width).Render(m.help.View(keys))
}
