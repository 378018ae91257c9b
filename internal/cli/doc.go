// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the line-mode side of parley.
//
// It contains the REPL used by `parley chat` and whenever stdin or stdout
// is not a terminal, the Printer presenter that streams answers to plain
// output, and the helpers shared by the cobra commands in main: list
// formatting, conversation resolution, confirmation prompts, --json
// envelopes, terminal detection and exit codes.
//
// # Key Types
//
//   - REPL: liner-based read loop with history and slash commands
//   - Printer: session.Presenter that prints suffix diffs of a streamed answer
//   - Row: one conversation in `parley list`
//   - JSONResponse: the --json output envelope
//
// # Usage
//
//	printer := cli.NewPrinter(os.Stdout, cli.IsStdoutTTY())
//	ctrl := session.New(l, client, render.Plain{}, printer, session.Config{})
//	repl := cli.NewREPL(ctrl, cli.REPLOptions{HistoryFile: cfg.HistoryFile()})
//	err := repl.Run(ctx)
package cli
