// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat interface for parley.

The chat package implements a terminal chat screen with the Bubble Tea
framework. It draws what a session.Controller presents and turns key
presses into controller calls.

# Key Components

## Bridge (bridge.go)

Bridge implements session.Presenter. Each presenter call becomes a Bubble
Tea message delivered with Program.Send. Send blocks until the event loop
reads the message, so controller calls are always made from a tea.Cmd and
never from Update.

## Model (model.go)

The Model holds view state only:
  - finished message blocks of the shown conversation
  - the streaming bubble, tied to the conversation it belongs to
  - the sidebar cursor and the delete confirmation
  - the input line and status text

## View Rendering (view.go)

Header with the conversation title, an optional sidebar listing
conversations newest first, the message viewport, the input line, a status
line and key help.

## Commands (commands.go)

Slash commands parsed by the commands package: /new, /list, /open,
/rename, /delete, /export, /copy, /help and /quit.

# Usage

	bridge := chat.NewBridge(nil)
	ctrl := session.New(l, client, renderer, bridge, session.Config{})
	if err := chat.Run(ctx, bridge, chat.Options{Controller: ctrl}); err != nil {
		log.Fatal(err)
	}
*/
package chat
