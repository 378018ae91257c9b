// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable key/value backends for the conversation
// ledger and the versioned snapshot format written to them.
//
// The ledger is persisted under two well-known keys, KeyConversations and
// KeyLastActive, and both are always written together through
// Backend.PutAll so a crash never leaves one updated without the other.
//
// # Backends
//
//   - FileBackend: one JSON document, replaced atomically, optional fsnotify watch
//   - SQLiteBackend: a kv table in a pure-Go SQLite database (modernc.org/sqlite)
//   - MemoryBackend: in-process map with failure injection for tests
//
// # Schema
//
// The conversations blob is a Snapshot:
//
//	{"version":1,"order":["id1","id2"],"items":{"id1":{...},"id2":{...}}}
//
// Blobs without a version field are the legacy bare {id: conversation} map
// and are migrated on read.
package storage
