// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the viewport, input and help for the current window.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	footer := footerHeight
	if m.help.ShowAll {
		rows := 0
		for _, group := range m.keys.FullHelp() {
			rows = max(rows, len(group))
		}
		footer += rows - 1
	}

	vpWidth := m.width
	if m.sidebar {
		vpWidth -= sidebarWidth + 1
	}
	m.viewport.Width = max(vpWidth, 10)
	m.viewport.Height = max(m.height-headerHeight-footer, 1)

	const promptLen = 2 // "> "
	m.input.Width = max(m.width-promptLen-2, 10)
	m.help.Width = m.width
}

// refresh rebuilds the viewport content from the blocks, the pending
// indicator and the streaming bubble.
func (m *Model) refresh() {
	parts := make([]string, 0, len(m.blocks)+1)
	parts = append(parts, m.blocks...)
	if m.streamVisible() && m.streamMarkup != "" {
		parts = append(parts, m.theme.Message(model.RoleAssistant, m.streamMarkup))
	}
	if m.pending {
		parts = append(parts, m.theme.Pending.Render(m.spinner.View()+" thinking..."))
	}

	content := strings.Join(parts, "\n\n")
	if m.viewport.Width > 0 {
		content = lipgloss.NewStyle().Width(m.viewport.Width).Render(content)
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(content)
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// RENDERING
// =============================================================================

func (m Model) render() string {
	body := m.viewport.View()
	if m.sidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), " ", body)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderInput(),
		m.renderStatus(),
		m.theme.Help.Render(m.help.View(m.keys)),
	)
}

func (m Model) renderHeader() string {
	title := model.UntitledTitle
	if conv, ok := m.ledger.Get(m.activeID); ok {
		title = conv.Title
	}
	line := m.theme.HeaderTitle.Render("parley") + "  " + util.SingleLine(title)
	if m.streaming {
		line += "  " + m.spinner.View()
	}
	return m.theme.Header.Width(m.width).Render(util.TruncateWidth(line, max(m.width-2, 1)))
}

func (m Model) renderInput() string {
	prompt := m.input.View()
	if m.confirmDelete != "" {
		prompt = m.theme.Confirm.Render(m.status)
	}
	return m.theme.Input.Render(prompt)
}

func (m Model) renderStatus() string {
	if m.confirmDelete != "" || m.status == "" {
		return m.theme.StatusBar.Width(m.width).Render(m.statusLine())
	}
	text := util.TruncateWidth(m.status, max(m.width-2, 1))
	if m.statusError {
		text = m.theme.Confirm.Render(text)
	}
	return m.theme.StatusBar.Width(m.width).Render(text)
}

// statusLine is the idle status: conversation count and stream state.
func (m Model) statusLine() string {
	n := m.ledger.Len()
	line := fmt.Sprintf("%d conversation", n)
	if n != 1 {
		line += "s"
	}
	if m.streaming {
		line += " | streaming"
	}
	return line
}

// renderSidebar draws the conversation list, newest first.
func (m Model) renderSidebar() string {
	inner := sidebarWidth - 2
	now := m.opts.Now()
	lines := []string{m.theme.SidebarTitle.Render(util.PadWidth("Conversations", inner))}

	for i, conv := range m.ledger.List() {
		title := util.PadWidth(util.TruncateWidth(util.SingleLine(conv.Title), inner-2), inner-2)
		meta := fmt.Sprintf("%d msg · %s", len(conv.Messages), util.RelativeTime(conv.CreatedAt, now))

		marker := "  "
		if conv.ID == m.activeID {
			marker = "> "
		}
		style := m.theme.SidebarItem
		switch {
		case m.focusSidebar && i == m.cursor:
			style = m.theme.SidebarSelected
		case conv.ID == m.activeID:
			style = m.theme.SidebarActive
		}
		lines = append(lines,
			style.Render(marker+title),
			m.theme.SidebarMeta.Render("  "+util.TruncateWidth(meta, inner-2)),
		)
	}

	return m.theme.Sidebar.
		Width(sidebarWidth).
		Height(m.viewport.Height).
		Render(strings.Join(lines, "\n"))
}
