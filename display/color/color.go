// Package color decides whether pulse-screen's terminal output carries
// ANSI color.
//
// It honours NO_COLOR (https://no-color.org/) and disables color when the
// output is not a terminal. When color is off, lipgloss is switched to the
// Ascii profile so every styled render is plain text.
package color

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Enabled reports whether output written to f should be colored.
func Enabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// TrueColor reports whether the terminal behind f advertises 24-bit color.
// The half-block image renderer needs it.
func TrueColor(f *os.File) bool {
	if !Enabled(f) {
		return false
	}
	return termenv.NewOutput(f).EnvColorProfile() == termenv.TrueColor
}

// Apply configures the global lipgloss renderer for output to f and
// returns whether color is enabled.
func Apply(f *os.File) bool {
	if !Enabled(f) {
		ForceDisable()
		return false
	}
	return true
}

// ForceDisable sets the lipgloss color profile to Ascii, unconditionally
// disabling all color output. Tests use it for stable strings.
func ForceDisable() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// StripANSI removes CSI escape sequences from s, for output that bypasses
// lipgloss such as the half-block image renderer.
func StripANSI(s string) string {
	var result []byte
	inEscape := false
	for i := 0; i < len(s); i++ {
		if inEscape {
			if (s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z') || s[i] == '~' {
				inEscape = false
			}
			continue
		}
		if s[i] == '\x1b' {
			inEscape = true
			continue
		}
		result = append(result, s[i])
	}
	return string(result)
}
