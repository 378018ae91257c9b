// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Modes accepted by New.
const (
	ModeMarkdown = "markdown"
	ModeCode     = "code"
	ModePlain    = "plain"
)

// Renderer converts message text to display markup.
type Renderer interface {
	Render(text string) string
}

// New returns the renderer for mode. theme is "auto", "dark", "light" or
// "notty" and only affects markdown. A markdown renderer that cannot be
// built degrades to Code.
func New(mode, theme string, width int) Renderer {
	switch mode {
	case ModePlain:
		return Plain{}
	case ModeCode:
		return Code{}
	default:
		md, err := NewMarkdown(theme, width)
		if err != nil {
			log.Printf("RENDER_FALLBACK | mode=%s err=%v", mode, err)
			return Code{}
		}
		return md
	}
}

// =============================================================================
// PLAIN
// =============================================================================

// Plain returns text unchanged.
type Plain struct{}

// Render implements Renderer.
func (Plain) Render(text string) string {
	return text
}

// =============================================================================
// MARKDOWN
// =============================================================================

// Markdown renders with glamour.
type Markdown struct {
	mu sync.Mutex
	tr *glamour.TermRenderer
}

// NewMarkdown builds a glamour renderer wrapping at width columns.
func NewMarkdown(theme string, width int) (*Markdown, error) {
	if width <= 0 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if theme != "" && theme != "auto" {
		style = glamour.WithStandardStyle(theme)
	}
	tr, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return &Markdown{tr: tr}, nil
}

// Render implements Renderer. The raw text is returned if glamour fails.
func (m *Markdown) Render(text string) string {
	m.mu.Lock()
	out, err := m.tr.Render(text)
	m.mu.Unlock()
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
