// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"io"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/model"
)

// Transport opens a streamed completion. A non-2xx status must be reported
// as an error without returning a body.
type Transport interface {
	Open(ctx context.Context, req cloud.CompletionRequest) (io.ReadCloser, error)
}

// Presenter is the view side of the controller. Calls arrive in the order
// the controller makes them, from whichever goroutine runs the controller.
type Presenter interface {
	// Clear empties the message area before a conversation is shown.
	Clear()
	// ShowMessage appends a finished message. markup is already rendered.
	ShowMessage(role model.Role, markup string)
	// ShowPending and HidePending toggle the waiting indicator.
	ShowPending()
	HidePending()
	// BeginAssistant creates the empty container for a streaming answer
	// that belongs to conversationID.
	BeginAssistant(conversationID string)
	// ReplaceAssistant replaces the whole content of that container.
	ReplaceAssistant(markup string)
	// ScrollToBottom keeps the newest content in view.
	ScrollToBottom()
	// SetInputEnabled locks or unlocks the input line.
	SetInputEnabled(enabled bool)
	// ConversationsChanged signals that titles, order or the active
	// conversation changed.
	ConversationsChanged()
}

// NopPresenter discards everything. Embed it to implement part of
// Presenter.
type NopPresenter struct{}

func (NopPresenter) Clear() {}
func (NopPresenter) ShowMessage(model.Role, string) {}
func (NopPresenter) ShowPending() {}
func (NopPresenter) HidePending() {}
func (NopPresenter) BeginAssistant(string) {}
func (NopPresenter) ReplaceAssistant(string) {}
func (NopPresenter) ScrollToBottom() {}
func (NopPresenter) SetInputEnabled(bool) {}
func (NopPresenter) ConversationsChanged() {}
