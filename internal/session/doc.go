// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives one chat exchange at a time from user input to a
// committed assistant message.
//
// # State Machine
//
//	Idle -> AwaitingResponse -> Streaming -> Committing -> Idle
//	            |                   |
//	            +----> Failed <-----+----> Idle
//
// The target conversation is captured when the exchange starts. The user
// may switch to or delete other conversations while an answer streams; the
// answer is still committed to the captured conversation, and dropped (not
// resurrected) if that conversation no longer exists. Input is re-enabled
// on every exit path.
//
// # Key Types
//
//   - Controller: state machine plus conversation-level actions
//   - Presenter: what the UI must implement (TUI and line-mode REPL)
//   - Transport: opens the streamed response body (cloud.Client)
//   - Result: what happened during one Send
//
// # Usage
//
//	ctrl := session.New(ledger, client, renderer, presenter, session.DefaultConfig())
//	ctrl.Start()
//	res, err := ctrl.Send(ctx, "2+2?")
package session
