package tui

import (
	"image"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/pulse-screen/display"
	"gitlab.com/tinyland/lab/pulse-screen/display/color"
)

// isQuitCmd executes a tea.Cmd and returns true if it produces a tea.QuitMsg.
func isQuitCmd(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	msg := cmd()
	_, ok := msg.(tea.QuitMsg)
	return ok
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model)
}

func TestNewModel(t *testing.T) {
	m := NewModel()
	if m.view != ViewPanel {
		t.Errorf("view = %v, want panel", m.view)
	}
	if m.ready {
		t.Error("expected ready to be false")
	}
	if m.frame != nil {
		t.Error("expected no frame")
	}
	if m.Init() != nil {
		t.Error("expected Init() to return nil Cmd")
	}
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View before size = %q", got)
	}
}

func TestModelQuit(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
	}{
		{"q", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cmd := NewModel().Update(tt.msg)
			if !isQuitCmd(cmd) {
				t.Errorf("%s should quit", tt.name)
			}
		})
	}
}

func TestModelToggleView(t *testing.T) {
	m := NewModel()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'v'}})
	m = updated.(Model)
	if m.view != ViewImage {
		t.Fatalf("view = %v, want image", m.view)
	}
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if updated.(Model).view != ViewPanel {
		t.Errorf("second toggle should return to panel")
	}
}

func TestModelShowsFrame(t *testing.T) {
	color.ForceDisable()

	m := sized(t, NewModel())
	if !strings.Contains(m.View(), "waiting for the first frame") {
		t.Error("expected waiting message before the first frame")
	}

	updated, _ := m.Update(FrameMsg{
		Frame:  display.Frame{Seq: 9, Text: "CPU 12.5%", Image: image.NewNRGBA(image.Rect(0, 0, 32, 24))},
		Status: Status{Samples: 9, Drops: 2, WarmupDone: 9, WarmupTotal: 150},
	})
	m = updated.(Model)

	view := m.View()
	for _, want := range []string{"CPU 12.5%", "samples 9", "drops 2", "calibrating 9/150"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'v'}})
	if view := updated.(Model).View(); !strings.Contains(view, "▀") {
		t.Error("image view should render half-blocks")
	}
}

func TestModelHidesProgressAfterWarmup(t *testing.T) {
	color.ForceDisable()

	m := sized(t, NewModel())
	updated, _ := m.Update(FrameMsg{Status: Status{Samples: 200, WarmupDone: 150, WarmupTotal: 150}})
	if strings.Contains(updated.(Model).View(), "calibrating") {
		t.Error("progress should disappear once calibration is done")
	}
}
