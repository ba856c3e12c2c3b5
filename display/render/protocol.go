// Package render draws frame bitmaps in a terminal, with the Kitty
// Graphics Protocol (Ghostty, Kitty, WezTerm) where available and Unicode
// half-blocks with 24-bit ANSI color everywhere else.
package render

import (
	"os"
	"strings"
)

// ImageProtocol identifies which image rendering protocol to use.
type ImageProtocol int

const (
	// ProtocolUnicode uses half-block unicode characters with ANSI 24-bit color.
	ProtocolUnicode ImageProtocol = iota
	// ProtocolKitty uses the Kitty Graphics Protocol.
	ProtocolKitty
)

// String returns the human-readable name of the protocol.
func (p ImageProtocol) String() string {
	switch p {
	case ProtocolKitty:
		return "kitty"
	case ProtocolUnicode:
		return "unicode"
	default:
		return "unknown"
	}
}

// DetectProtocol inspects the environment for a Kitty-capable terminal.
// Inside tmux or screen the graphics protocol is not passed through, so
// half-blocks are used.
//
// Detection priority:
//  1. TMUX / STY force half-blocks
//  2. TERM_PROGRAM for known terminal emulators
//  3. TERM=xterm-kitty
//  4. KITTY_WINDOW_ID or WEZTERM_EXECUTABLE
func DetectProtocol() ImageProtocol {
	if os.Getenv("TMUX") != "" || os.Getenv("STY") != "" {
		return ProtocolUnicode
	}

	switch strings.ToLower(os.Getenv("TERM_PROGRAM")) {
	case "ghostty", "kitty", "wezterm":
		return ProtocolKitty
	}

	if os.Getenv("TERM") == "xterm-kitty" {
		return ProtocolKitty
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" || os.Getenv("WEZTERM_EXECUTABLE") != "" {
		return ProtocolKitty
	}

	return ProtocolUnicode
}
