// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash commands shared by the TUI and the
// line-mode REPL.
//
// The package parses and validates; each front end executes the command its
// own way.
//
// # Key Types
//
//   - Registry: Built-in commands keyed by name and alias
//   - Parser: Turns input into a ParseResult
//   - ParseResult: Matched command with its arguments
//   - Completer: Tab completion for command names and arguments
//
// # Built-in Commands
//
//   - /new, /list, /open <n>, /rename <title>, /delete [n]
//   - /export [md|json|yaml], /copy, /help, /quit
//
// # Usage
//
//	parser := commands.NewParser(commands.NewRegistry())
//	res := parser.Parse("/rename Quantum notes")
//	if res.IsCommand && res.Error == nil {
//	    switch res.Command.Name {
//	    case commands.Rename:
//	        ctrl.Rename(active, res.RawArgs)
//	    }
//	}
package commands
