// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/jeranaias/parley/internal/model"
)

// SchemaVersion is the snapshot version this build writes.
const SchemaVersion = 1

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the full persisted ledger state.
type Snapshot struct {
	Version int                            `json:"version"`
	Order   []string                       `json:"order"`
	Items   map[string]*model.Conversation `json:"items"`

	// Active is stored under KeyLastActive, not inside the blob.
	Active string `json:"-"`
}

// NewSnapshot returns an empty snapshot at the current version.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Version: SchemaVersion,
		Order:   []string{},
		Items:   make(map[string]*model.Conversation),
	}
}

// Encode serializes the snapshot into the two entries written by PutAll.
func (s *Snapshot) Encode() (map[string][]byte, error) {
	out := *s
	out.Version = SchemaVersion
	blob, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("encode conversations: %w", err)
	}
	active, err := json.Marshal(s.Active)
	if err != nil {
		return nil, fmt.Errorf("encode active id: %w", err)
	}
	return map[string][]byte{
		KeyConversations: blob,
		KeyLastActive:    active,
	}, nil
}

// ReadSnapshot loads the snapshot from b. Absent keys give an empty
// snapshot; undecodable data gives a *CorruptError.
func ReadSnapshot(b Backend) (*Snapshot, error) {
	blob, err := b.Get(KeyConversations)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("read %s: %w", KeyConversations, err)
	}
	active, err := b.Get(KeyLastActive)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("read %s: %w", KeyLastActive, err)
	}
	return DecodeSnapshot(blob, active)
}

// DecodeSnapshot parses the two stored values, migrating older formats.
func DecodeSnapshot(conversations, active []byte) (*Snapshot, error) {
	snap := NewSnapshot()
	snap.Active = decodeActive(active)

	conversations = bytes.TrimSpace(conversations)
	if len(conversations) == 0 || bytes.Equal(conversations, []byte("null")) {
		return snap, nil
	}

	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(conversations, &probe); err != nil {
		return nil, &CorruptError{Source: KeyConversations, Err: err}
	}

	switch {
	case probe.Version == nil:
		if err := snap.migrateLegacy(conversations); err != nil {
			return nil, err
		}
		log.Printf("STORAGE_SCHEMA_MIGRATED | from=0 to=%d conversations=%d", SchemaVersion, len(snap.Items))
	default:
		if *probe.Version > SchemaVersion {
			log.Printf("STORAGE_SCHEMA_NEWER | found=%d supported=%d", *probe.Version, SchemaVersion)
		}
		if err := json.Unmarshal(conversations, snap); err != nil {
			return nil, &CorruptError{Source: KeyConversations, Err: err}
		}
		snap.Version = SchemaVersion
	}

	snap.normalize()
	return snap, nil
}

// migrateLegacy reads the version-less format: a bare {id: conversation}
// map with no recorded order.
func (s *Snapshot) migrateLegacy(blob []byte) error {
	var items map[string]*model.Conversation
	if err := json.Unmarshal(blob, &items); err != nil {
		return &CorruptError{Source: KeyConversations, Err: err}
	}
	s.Items = items
	s.Order = nil
	return nil
}

// normalize repairs what a hand-edited or older file may get wrong: order
// entries without items, items missing from order, blank fields and
// system-role messages that should never have been stored.
func (s *Snapshot) normalize() {
	if s.Items == nil {
		s.Items = make(map[string]*model.Conversation)
	}

	for id, conv := range s.Items {
		if conv == nil {
			delete(s.Items, id)
			continue
		}
		if conv.ID == "" {
			conv.ID = id
		}
		if strings.TrimSpace(conv.Title) == "" {
			conv.Title = model.UntitledTitle
		}
		kept := make([]model.Message, 0, len(conv.Messages))
		for _, m := range conv.Messages {
			if m.Role.Persistable() {
				kept = append(kept, m)
			}
		}
		conv.Messages = kept
	}

	seen := make(map[string]bool, len(s.Items))
	order := make([]string, 0, len(s.Items))
	for _, id := range s.Order {
		if _, ok := s.Items[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	var missing []string
	for id := range s.Items {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		a, b := s.Items[missing[i]], s.Items[missing[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return missing[i] < missing[j]
	})
	s.Order = append(order, missing...)

	if _, ok := s.Items[s.Active]; !ok {
		s.Active = ""
	}
}

// decodeActive accepts both the JSON string written now and the bare id
// written by the legacy client.
func decodeActive(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	return string(raw)
}
