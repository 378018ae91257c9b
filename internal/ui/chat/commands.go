// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// runCommand executes a parsed slash command.
func (m Model) runCommand(res commands.ParseResult) (tea.Model, tea.Cmd) {
	if res.Error != nil {
		m.status = res.Error.Error()
		m.statusError = true
		return m, nil
	}
	m.status = ""
	m.statusError = false

	switch res.Command.Name {
	case commands.New:
		return m, m.newConversation()

	case commands.List:
		return m.toggleFocus()

	case commands.Open:
		conv, err := m.conversationAt(commands.Position(res.Args, 0))
		if err != nil {
			return m, func() tea.Msg { return statusErr(err) }
		}
		return m, m.open(conv.ID)

	case commands.Rename:
		return m, m.rename(m.activeID, res.RawArgs)

	case commands.Delete:
		id := m.activeID
		if len(res.Args) > 0 {
			conv, err := m.conversationAt(commands.Position(res.Args, 0))
			if err != nil {
				return m, func() tea.Msg { return statusErr(err) }
			}
			id = conv.ID
		}
		return m.askDelete(id)

	case commands.Export:
		f := export.FormatMarkdown
		if len(res.Args) > 0 {
			parsed, err := export.ParseFormat(res.Args[0])
			if err != nil {
				return m, func() tea.Msg { return statusErr(err) }
			}
			f = parsed
		}
		return m, m.exportConversation(f)

	case commands.Copy:
		return m, m.copyLastAnswer()

	case commands.Help:
		m.blocks = append(m.blocks, m.theme.Message(model.RoleSystem, helpText(m.parser.Registry())))
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case commands.Quit:
		return m.quit()
	}
	return m, nil
}

// helpText lists the commands. It is shown, never stored.
func helpText(reg *commands.Registry) string {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, cmd := range reg.All() {
		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		fmt.Fprintf(&b, "\n  %-18s %s", usage, cmd.Description)
	}
	return b.String()
}
