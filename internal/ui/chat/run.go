// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the full-screen chat and blocks until the user quits.
// opts.Controller must present through bridge.
func Run(ctx context.Context, bridge *Bridge, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen())
	bridge.Attach(p)

	log.Printf("TUI_START | conversations=%d", opts.Controller.Ledger().Len())
	if _, err := p.Run(); err != nil {
		log.Printf("TUI_ERROR | err=%v", err)
		return err
	}
	log.Printf("TUI_EXIT")
	return nil
}
