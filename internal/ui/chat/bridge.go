// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/session"
)

// Bridge implements session.Presenter by turning each call into a message
// for the running program.
//
// Program.Send blocks until the event loop reads the message, so the
// controller must never be called from inside Update. Every controller
// call goes through a tea.Cmd.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

var _ session.Presenter = (*Bridge)(nil)

// NewBridge creates a bridge that delivers through send. A nil send drops
// everything until Attach is called.
func NewBridge(send func(tea.Msg)) *Bridge {
	return &Bridge{send: send}
}

// Attach delivers all further calls to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.send = p.Send
	b.mu.Unlock()
}

func (b *Bridge) emit(msg tea.Msg) {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

func (b *Bridge) Clear() { b.emit(clearMsg{}) }

func (b *Bridge) ShowMessage(role model.Role, markup string) {
	b.emit(showMessageMsg{role: role, markup: markup})
}

func (b *Bridge) ShowPending() { b.emit(pendingMsg{visible: true}) }

func (b *Bridge) HidePending() { b.emit(pendingMsg{visible: false}) }

func (b *Bridge) BeginAssistant(conversationID string) {
	b.emit(beginAssistantMsg{conversationID: conversationID})
}

func (b *Bridge) ReplaceAssistant(markup string) {
	b.emit(replaceAssistantMsg{markup: markup})
}

func (b *Bridge) ScrollToBottom() { b.emit(scrollMsg{}) }

func (b *Bridge) SetInputEnabled(enabled bool) {
	b.emit(inputEnabledMsg{enabled: enabled})
}

func (b *Bridge) ConversationsChanged() { b.emit(conversationsChangedMsg{}) }
