// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for the parley CLI.
//
// The default command picks the full-screen UI only when both stdin and
// stdout are terminals; pipes and dumb terminals get the line-mode REPL.

package cli

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Width limits for list and answer wrapping.
const (
	DefaultTerminalWidth = 80
	MinTerminalWidth     = 40
)

// =============================================================================
// DETECTION
// =============================================================================

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return isTerminal(os.Stdin)
}

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// CanRunTUI reports whether the full-screen UI can take over the terminal.
func CanRunTUI() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return IsTTY() && IsStdoutTTY()
}

// GetTerminalWidth returns the stdout width clamped to MinTerminalWidth,
// or DefaultTerminalWidth when stdout is not a terminal.
func GetTerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	switch {
	case err != nil || w <= 0:
		return DefaultTerminalWidth
	case w < MinTerminalWidth:
		return MinTerminalWidth
	default:
		return w
	}
}

// GetColorProfile honours NO_COLOR and FORCE_COLOR, then falls back to
// colour only on a terminal.
func GetColorProfile() termenv.Profile {
	switch {
	case os.Getenv("NO_COLOR") != "":
		return termenv.Ascii
	case os.Getenv("FORCE_COLOR") != "", IsStdoutTTY():
		return termenv.ColorProfile()
	default:
		return termenv.Ascii
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// TTYRequiredError reports an interactive operation attempted without a
// terminal.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	return "not a terminal: cannot " + e.Operation
}
