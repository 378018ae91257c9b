// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger owns every conversation and the active-conversation
// pointer.
//
// A Ledger is built once at startup around a storage.Backend and shared by
// the session controller and the UI. Every mutating call flushes the whole
// snapshot through Backend.PutAll before returning. A failed flush never
// undoes the in-memory change and never surfaces as an error of the chat
// flow; it is logged, counted in Stats, and reported in Outcome.PersistErr.
//
// # Usage
//
//	l := ledger.Open(backend)
//	conv, _ := l.Create()
//	l.Append(conv.ID, model.NewUserMessage("Hello"))
//	for _, c := range l.List() {
//	    fmt.Println(c.Title)
//	}
package ledger
