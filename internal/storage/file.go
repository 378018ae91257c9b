// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileBackend stores all keys in one JSON document. Every PutAll rewrites
// the whole document with util.AtomicWriteFile.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend writing to path. The file is created on
// the first PutAll.
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("storage: empty file path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0700); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileBackend{path: abs}, nil
}

// Path returns the absolute file path.
func (b *FileBackend) Path() string {
	return b.path
}

// Get implements Backend.
func (b *FileBackend) Get(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// PutAll implements Backend.
func (b *FileBackend) PutAll(entries map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		// A corrupt document is replaced rather than blocking every write.
		log.Printf("STORAGE_FILE_REPLACED | path=%s err=%v", b.path, err)
		doc = make(map[string]json.RawMessage)
	}
	for _, k := range sortedKeys(entries) {
		v := entries[k]
		if !json.Valid(v) {
			return fmt.Errorf("storage: value for %q is not valid JSON", k)
		}
		doc[k] = json.RawMessage(v)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger file: %w", err)
	}
	// SECURITY: conversation history is private to the user.
	if err := util.AtomicWriteFile(b.path, data, 0600); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}
	return nil
}

// read loads the document. A missing file is an empty document.
func (b *FileBackend) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	doc := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &CorruptError{Source: b.path, Err: err}
	}
	return doc, nil
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	return nil
}

// =============================================================================
// WATCH
// =============================================================================

// Watch implements Watcher. The parent directory is watched because an
// atomic rename replaces the file's inode.
func (b *FileBackend) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(b.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(b.path), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != b.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("STORAGE_WATCH_ERROR | path=%s err=%v", b.path, err)
			}
		}
	}()
	return nil
}
