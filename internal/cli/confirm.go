// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - y/N confirmation for destructive CLI commands.
//
// A --yes flag skips the prompt. Without it stdin must be a terminal.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConfirmationOptions controls RequireConfirmation.
type ConfirmationOptions struct {
	// Yes skips the prompt (--yes).
	Yes bool
	// Interactive is false when stdin cannot prompt.
	Interactive bool
	In          io.Reader
	Out         io.Writer
}

// RequireConfirmation asks "<action>? [y/N]" unless opts.Yes is set.
func RequireConfirmation(action string, opts ConfirmationOptions) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if !opts.Interactive {
		return false, &TTYRequiredError{Operation: "confirm " + action + " (use --yes)"}
	}
	return PromptYesNo(opts.In, opts.Out, action+"?"), nil
}

// PromptYesNo writes question and reads one line. Only y or yes confirms.
func PromptYesNo(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s %s ", question, DimStyle.Render("[y/N]"))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	return IsYes(line)
}

// IsYes reports whether answer confirms.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
