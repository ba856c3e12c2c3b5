package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings for the TUI.
// It implements the help.KeyMap interface for bubbles/help integration.
type keyMap struct {
	Quit       key.Binding
	ToggleView key.Binding
	Help       key.Binding
}

// ShortHelp returns the compact set of keybindings shown by default in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ToggleView, k.Help, k.Quit}
}

// FullHelp returns the expanded keybinding groups shown when help is toggled.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ToggleView},
		{k.Help, k.Quit},
	}
}

// keys holds the default key bindings used by the application.
var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	ToggleView: key.NewBinding(key.WithKeys("v", "tab"), key.WithHelp("v", "panel/image")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}
