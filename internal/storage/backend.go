// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// =============================================================================
// KEYS AND ERRORS
// =============================================================================

const (
	// KeyConversations holds the encoded Snapshot.
	KeyConversations = "conversations"
	// KeyLastActive holds the id of the conversation that was open last.
	KeyLastActive = "lastActiveConversation"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("storage: key not found")

// ErrWatchUnsupported is returned by backends that cannot report external
// changes.
var ErrWatchUnsupported = errors.New("storage: watch not supported by backend")

// CorruptError reports stored data that could not be decoded.
type CorruptError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("storage: corrupt data in %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *CorruptError) Unwrap() error {
	return e.Err
}

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is a small durable key/value store.
type Backend interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// PutAll writes every entry in one atomic step: afterwards either all
	// of them are visible or none are.
	PutAll(entries map[string][]byte) error

	// Close releases the backend's resources.
	Close() error
}

// Watcher is implemented by backends that can notify about changes made by
// another process.
type Watcher interface {
	// Watch calls onChange after the stored data changed on disk, until ctx
	// is done.
	Watch(ctx context.Context, onChange func()) error
}

// Watch starts watching b when it supports it.
func Watch(ctx context.Context, b Backend, onChange func()) error {
	w, ok := b.(Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	return w.Watch(ctx, onChange)
}

// sortedKeys returns the keys of entries in a stable order.
func sortedKeys(entries map[string][]byte) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
