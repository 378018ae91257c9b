// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across parley.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation, ellipsis counted in the limit
//   - Abbreviate: keep the first n runes, then append an ellipsis
//   - TruncateWidth, PadWidth: display-cell aware truncation (go-runewidth)
//
// Time:
//   - RelativeTime: "just now" / "5 minutes ago" labels for conversation lists
//
// File Operations:
//   - AtomicWriteFile: crash-safe writes with fsync and rename
//
// # Usage
//
//	title := util.Abbreviate(firstMessage, 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
