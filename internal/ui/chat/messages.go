// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
)

// =============================================================================
// PRESENTER MESSAGES
// =============================================================================

// These mirror session.Presenter calls one to one. The Bridge sends them
// into the program from the controller's goroutine.

type clearMsg struct{}

type showMessageMsg struct {
	role   model.Role
	markup string
}

type pendingMsg struct {
	visible bool
}

type beginAssistantMsg struct {
	conversationID string
}

type replaceAssistantMsg struct {
	markup string
}

type scrollMsg struct{}

type inputEnabledMsg struct {
	enabled bool
}

type conversationsChangedMsg struct{}

// =============================================================================
// COMMAND RESULTS
// =============================================================================

// sendDoneMsg is returned by the command that ran Controller.Send.
type sendDoneMsg struct {
	result session.Result
	err    error
}

// statusMsg replaces the status line text.
type statusMsg struct {
	text    string
	isError bool
}

func statusf(text string) statusMsg { return statusMsg{text: text} }

func statusErr(err error) statusMsg { return statusMsg{text: err.Error(), isError: true} }
