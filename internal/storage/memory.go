// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"sync"
)

// MemoryBackend keeps everything in process memory. It backs --ephemeral
// sessions and tests.
type MemoryBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   int
	putErr error
	getErr error
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Get implements Backend.
func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// PutAll implements Backend.
func (m *MemoryBackend) PutAll(entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	for k, v := range entries {
		m.data[k] = append([]byte(nil), v...)
	}
	m.puts++
	return nil
}

// SetPutError makes every following PutAll fail with err and store
// nothing. A nil err restores normal behavior.
func (m *MemoryBackend) SetPutError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// SetGetError makes every following Get fail with err.
func (m *MemoryBackend) SetGetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// Set stores a single raw value. Tests use it to plant legacy or corrupt
// data.
func (m *MemoryBackend) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

// Puts returns how many PutAll calls succeeded.
func (m *MemoryBackend) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	return nil
}
