// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// CONVERSATION ACTIONS
// =============================================================================

// Start restores the last active conversation, or the most recent one, or
// creates a conversation when the ledger is empty, and shows it. It returns
// the id shown.
func (c *Controller) Start() string {
	active := c.ledger.Active()
	if _, ok := c.ledger.Get(active); !ok {
		active = ""
		if list := c.ledger.List(); len(list) > 0 {
			active = list[0].ID
		}
	}
	if active == "" {
		return c.NewConversation()
	}
	if err := c.Open(active); err != nil {
		log.Printf("SESSION_RESTORE_FAILED | conversation=%s err=%v", active, err)
		return c.NewConversation()
	}
	return active
}

// NewConversation creates an empty conversation, makes it active and shows
// the greeting.
func (c *Controller) NewConversation() string {
	conv, _ := c.ledger.Create()
	c.show(conv)
	return conv.ID
}

// Open switches to conversation id. A streaming answer keeps going and is
// still committed to the conversation it started in.
func (c *Controller) Open(id string) error {
	conv, _, err := c.ledger.Load(id)
	if err != nil {
		return err
	}
	c.show(conv)
	return nil
}

// Rename sets the title of conversation id.
func (c *Controller) Rename(id, title string) error {
	if _, err := c.ledger.Rename(id, title); err != nil {
		return err
	}
	c.presenter.ConversationsChanged()
	return nil
}

// Delete removes conversation id. Confirmation is the caller's job. When
// the active conversation goes, its replacement is shown.
func (c *Controller) Delete(id string) error {
	wasActive := c.ledger.Active() == id
	out, err := c.ledger.Delete(id)
	if err != nil {
		return err
	}
	if wasActive {
		if conv, ok := c.ledger.Get(out.Active); ok {
			c.show(conv)
			return nil
		}
	}
	c.presenter.ConversationsChanged()
	return nil
}

// show replays a conversation into the presenter.
func (c *Controller) show(conv *model.Conversation) {
	c.presenter.Clear()
	if len(conv.Messages) == 0 {
		c.Notice(c.cfg.Greeting)
	}
	for _, m := range conv.Messages {
		c.presenter.ShowMessage(m.Role, c.markup(m))
	}
	c.presenter.ScrollToBottom()
	c.presenter.ConversationsChanged()
}

// markup renders assistant answers; user text is shown as typed.
func (c *Controller) markup(m model.Message) string {
	if m.Role == model.RoleAssistant {
		return c.renderer.Render(m.Content)
	}
	return m.Content
}
