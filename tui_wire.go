package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/pulse-screen/display/tui"
)

// startTUI runs the interactive view on the alternate screen. The returned
// channel closes when the program exits; a user quit also calls cancel so
// the scheduler stops.
func startTUI(cancel context.CancelFunc, logger *slog.Logger) (*tea.Program, chan struct{}) {
	p := tea.NewProgram(tui.NewModel(), tea.WithAltScreen())
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				// Restore the terminal from the alt-screen before reporting.
				fmt.Print("\x1b[?1049l\x1b[?25h")
				fmt.Fprintf(os.Stderr, "pulse-screen: TUI panic: %v\n", r)
			}
		}()
		if _, err := p.Run(); err != nil {
			logger.Error("TUI exited", "error", err)
		}
	}()
	return p, done
}
