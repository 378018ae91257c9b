// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// ConversationsFn returns how many conversations /list would show.
	ConversationsFn func() int
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns full-line candidates for input. Non-command input has no
// completions.
func (c *Completer) Complete(input string) []string {
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	name, rest, hasArgs := strings.Cut(input, " ")
	if !hasArgs {
		return c.completeCommands(name)
	}

	cmd := c.registry.Get(name)
	if cmd == nil || len(cmd.Args) == 0 {
		return nil
	}
	// Only the first argument completes.
	if strings.Contains(strings.TrimLeft(rest, " "), " ") {
		return nil
	}
	partial := strings.TrimLeft(rest, " ")

	var values []string
	switch arg := cmd.Args[0]; arg.Type {
	case ArgTypeEnum:
		values = arg.Values
	case ArgTypeConversation:
		if c.ConversationsFn != nil {
			for i := 1; i <= c.ConversationsFn(); i++ {
				values = append(values, strconv.Itoa(i))
			}
		}
	}

	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, partial) {
			out = append(out, name+" "+v)
		}
	}
	return out
}

// completeCommands returns command names (not aliases) starting with prefix.
func (c *Completer) completeCommands(prefix string) []string {
	var out []string
	for _, cmd := range c.registry.All() {
		if strings.HasPrefix(cmd.Name, prefix) {
			out = append(out, cmd.Name)
		}
	}
	sort.Strings(out)
	return out
}
