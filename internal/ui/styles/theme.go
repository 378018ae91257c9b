// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/parley/internal/model"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// LAYOUT STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	Help        lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserBubble     lipgloss.Style
	Assistant      lipgloss.Style
	Notice         lipgloss.Style
	Pending        lipgloss.Style

	// ==========================================================================
	// SIDEBAR STYLES
	// ==========================================================================

	Sidebar         lipgloss.Style
	SidebarTitle    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarActive   lipgloss.Style
	SidebarMeta     lipgloss.Style

	// ==========================================================================
	// INPUT STYLES
	// ==========================================================================

	Input       lipgloss.Style
	InputPrompt lipgloss.Style
	Confirm     lipgloss.Style
}

// NewTheme detects the terminal and builds the theme.
func NewTheme() *Theme {
	return NewThemeFor(termenv.ColorProfile(), termenv.HasDarkBackground())
}

// NewThemeFor builds the theme for a known profile. Ascii drops all color.
func NewThemeFor(profile termenv.Profile, isDark bool) *Theme {
	lipgloss.SetColorProfile(profile)
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// initStyles initializes all the lipgloss styles.
func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextMuted).
		Padding(0, 1)

	t.Help = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(TextPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Teal).
		PaddingLeft(1)

	t.Assistant = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.Notice = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true).
		PaddingLeft(2)

	t.Pending = lipgloss.NewStyle().
		Foreground(Indigo).
		PaddingLeft(2)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)

	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary).
		MarginBottom(1)

	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SidebarSelected = lipgloss.NewStyle().
		Background(Indigo).
		Foreground(TextInverse).
		Bold(true)

	t.SidebarActive = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true)

	t.SidebarMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Input
	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.Confirm = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
}

// Message renders one finished message with its role label.
func (t *Theme) Message(role model.Role, markup string) string {
	switch role {
	case model.RoleUser:
		return t.UserLabel.Render(role.DisplayName()) + "\n" + t.UserBubble.Render(markup)
	case model.RoleAssistant:
		return t.AssistantLabel.Render(role.DisplayName()) + "\n" + t.Assistant.Render(markup)
	default:
		return t.Notice.Render(markup)
	}
}
