// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant text into terminal markup.
//
// Renderers are pure: the streaming session re-renders the whole
// accumulated answer on every delta, because markdown structure can change
// retroactively (a code fence closes, a list starts) as more text arrives.
//
// # Renderers
//
//   - Markdown: glamour, falls back to the raw text on error
//   - Code: raw text with fenced code blocks highlighted by chroma
//   - Plain: identity, for pipes and the line-mode REPL
package render
