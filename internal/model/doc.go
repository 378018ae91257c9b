// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Conversation: id, title, ordered messages and creation time
//   - Message: role and content; identity is positional
//   - Role: user, assistant, or the UI-only system role
//
// # Title Policy
//
// A conversation is titled UntitledTitle until its first user message, at
// which point DeriveTitle takes the first 30 characters of that message.
//
// # Usage
//
//	conv := model.NewConversation(time.Now())
//	conv.Messages = append(conv.Messages, model.NewUserMessage("Hello!"))
//	conv.Title = model.DeriveTitle("Hello!")
package model
