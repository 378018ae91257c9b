// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// TITLE POLICY
// =============================================================================

// UntitledTitle is carried by every conversation until its first user
// message arrives.
const UntitledTitle = "New chat"

// TitleRunes is how much of the first user message becomes the title.
const TitleRunes = 30

// DeriveTitle turns the first user message into a conversation title: the
// first TitleRunes characters, with an ellipsis when the message is longer.
func DeriveTitle(content string) string {
	return util.Abbreviate(content, TitleRunes)
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a titled, ordered sequence of messages.
//
// The JSON field names match the client ledger format that predates the
// versioned snapshot, so legacy blobs decode without translation.
type Conversation struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Messages  []Message `json:"messages" yaml:"messages"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// NewConversation creates an empty, untitled conversation with a fresh id.
func NewConversation(now time.Time) *Conversation {
	return &Conversation{
		ID:        NewID(),
		Title:     UntitledTitle,
		Messages:  make([]Message, 0),
		CreatedAt: now,
	}
}

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// IsUntitled reports whether the title is still the sentinel.
func (c *Conversation) IsUntitled() bool {
	return c.Title == "" || c.Title == UntitledTitle
}

// FirstUserMessage returns the first user message, if any.
func (c *Conversation) FirstUserMessage() (Message, bool) {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			return msg, true
		}
	}
	return Message{}, false
}

// Tail returns a copy of the last n messages. n <= 0 means all of them.
func (c *Conversation) Tail(n int) []Message {
	msgs := c.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Preview returns a one-line summary of the latest user message.
func (c *Conversation) Preview(maxLen int) string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Preview(maxLen)
		}
	}
	return "Empty conversation"
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return &clone
}
