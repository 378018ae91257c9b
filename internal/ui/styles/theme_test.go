// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/parley/internal/model"
)

func TestMessage_AsciiProfile(t *testing.T) {
	theme := NewThemeFor(termenv.Ascii, true)

	user := theme.Message(model.RoleUser, "hello")
	assert.NotContains(t, user, "\x1b[", "ascii profile emits no escape codes")
	assert.True(t, strings.HasPrefix(user, "You\n"))
	assert.Contains(t, user, "hello")

	assistant := theme.Message(model.RoleAssistant, "4")
	assert.True(t, strings.HasPrefix(assistant, "Assistant\n"))

	notice := theme.Message(model.RoleSystem, "Welcome!")
	assert.Contains(t, notice, "Welcome!")
	assert.NotContains(t, notice, "System")
}

func TestStatusHelpers(t *testing.T) {
	NewThemeFor(termenv.Ascii, true)
	assert.Equal(t, "[OK] saved", RenderSuccess("saved"))
	assert.Equal(t, "[!!] failed", RenderError("failed"))
	assert.Equal(t, "[i] note", RenderInfo("note"))
}
