// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the lipgloss theme for the parley TUI.
//
// Colors adapt to light and dark terminals. termenv picks the color profile;
// NewThemeFor pins one, which keeps tests free of escape codes.
//
// # Usage
//
//	theme := styles.NewTheme()
//	fmt.Println(theme.Message(model.RoleUser, "hello"))
package styles
