// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored conversations out as Markdown, JSON or YAML.
//
// Only stored messages are exported. Notices such as the greeting are never
// stored and so never appear in an export.
//
// # Key Types
//
//   - Format: Export format enumeration (md, json, yaml)
//   - Exporter: Converts one conversation to bytes
//   - Options: Output directory and Markdown metadata switches
//
// # Usage
//
// Export to a file:
//
//	path, err := export.ExportToFile(conv, export.ForFormat(export.FormatMarkdown, nil), nil)
//
// Export to a writer:
//
//	err := export.Write(os.Stdout, conv, export.FormatYAML, nil)
package export
