// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Outcome reports the effect of one mutating call.
type Outcome struct {
	// Active is the active conversation id after the call.
	Active string
	// Created is set when the call had to create a fresh conversation.
	Created bool
	// PersistErr is the flush error, if any. The in-memory change stands.
	PersistErr error
}

// Persisted reports whether the change reached durable storage.
func (o Outcome) Persisted() bool {
	return o.PersistErr == nil
}

// Stats counts flush attempts since Open.
type Stats struct {
	Flushes        int
	FlushFailures  int
	LastFlushError error
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the in-memory conversation store. It is safe for concurrent
// use; the streaming session commits from its own goroutine while the UI
// switches or deletes conversations.
type Ledger struct {
	mu      sync.Mutex
	backend storage.Backend
	now     func() time.Time

	order  []string // insertion order
	items  map[string]*model.Conversation
	active string

	stats       Stats
	lastWritten []byte
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Open loads the ledger from backend. Absent, unreadable or corrupt data
// yields an empty ledger; the problem is logged and the next flush
// overwrites it.
func Open(backend storage.Backend, opts ...Option) *Ledger {
	l := &Ledger{
		backend: backend,
		now:     time.Now,
		items:   make(map[string]*model.Conversation),
	}
	for _, opt := range opts {
		opt(l)
	}

	snap, err := storage.ReadSnapshot(backend)
	if err != nil {
		log.Printf("LEDGER_STORAGE_CORRUPT | err=%v action=start_empty", err)
		return l
	}
	l.apply(snap)
	log.Printf("LEDGER_LOADED | conversations=%d active=%s", len(l.items), l.active)
	return l
}

// apply replaces the in-memory state with snap.
func (l *Ledger) apply(snap *storage.Snapshot) {
	l.order = append([]string(nil), snap.Order...)
	l.items = snap.Items
	l.active = snap.Active
}

// =============================================================================
// QUERIES
// =============================================================================

// Active returns the active conversation id, or "" before one was chosen.
func (l *Ledger) Active() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Get returns a copy of conversation id.
func (l *Ledger) Get(id string) (*model.Conversation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conv, ok := l.items[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Len returns the number of conversations.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// List returns copies of all conversations, newest first. Conversations
// created at the same instant keep their insertion order.
func (l *Ledger) List() []*model.Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*model.Conversation, 0, len(l.order))
	for _, conv := range l.sorted() {
		out = append(out, conv.Clone())
	}
	return out
}

// sorted returns the live conversations by recency. Caller holds mu.
func (l *Ledger) sorted() []*model.Conversation {
	convs := make([]*model.Conversation, 0, len(l.order))
	for _, id := range l.order {
		convs = append(convs, l.items[id])
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	return convs
}

// Stats returns the flush counters.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create adds an empty, untitled conversation and makes it active.
func (l *Ledger) Create() (*model.Conversation, Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conv := l.create()
	return conv.Clone(), l.flush(true)
}

// create adds a conversation without flushing. Caller holds mu.
func (l *Ledger) create() *model.Conversation {
	// Millisecond UTC timestamps survive the JSON round trip unchanged.
	conv := model.NewConversation(l.now().UTC().Truncate(time.Millisecond))
	l.items[conv.ID] = conv
	l.order = append(l.order, conv.ID)
	l.active = conv.ID
	return conv
}

// Load makes id the active conversation and returns a copy of it.
func (l *Ledger) Load(id string) (*model.Conversation, Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conv, ok := l.items[id]
	if !ok {
		return nil, Outcome{Active: l.active}, notFound(id)
	}
	l.active = id
	return conv.Clone(), l.flush(false), nil
}

// Append adds msg to conversation id. The first user message of an
// untitled conversation also sets its title.
func (l *Ledger) Append(id string, msg model.Message) (Outcome, error) {
	if !msg.Role.Persistable() {
		return Outcome{}, ErrNotPersistable
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	conv, ok := l.items[id]
	if !ok {
		return Outcome{Active: l.active}, notFound(id)
	}

	if msg.Role == model.RoleUser && conv.IsUntitled() {
		if _, seen := conv.FirstUserMessage(); !seen {
			conv.Title = model.DeriveTitle(msg.Content)
		}
	}
	conv.Messages = append(conv.Messages, msg)
	return l.flush(false), nil
}

// EnsureTitle derives the title from the first stored user message when
// the conversation is still untitled. It flushes only when something
// changed.
func (l *Ledger) EnsureTitle(id string) (Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	conv, ok := l.items[id]
	if !ok {
		return Outcome{Active: l.active}, notFound(id)
	}
	if !conv.IsUntitled() {
		return Outcome{Active: l.active}, nil
	}
	first, found := conv.FirstUserMessage()
	if !found {
		return Outcome{Active: l.active}, nil
	}
	conv.Title = model.DeriveTitle(first.Content)
	return l.flush(false), nil
}

// Rename sets the title of conversation id.
func (l *Ledger) Rename(id, title string) (Outcome, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Outcome{}, ErrEmptyTitle
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	conv, ok := l.items[id]
	if !ok {
		return Outcome{Active: l.active}, notFound(id)
	}
	conv.Title = title
	return l.flush(false), nil
}

// Delete removes conversation id. When it was active, the most recently
// created remaining conversation takes over, or a fresh one is created if
// none remain.
func (l *Ledger) Delete(id string) (Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.items[id]; !ok {
		return Outcome{Active: l.active}, notFound(id)
	}

	delete(l.items, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	created := false
	if l.active == id {
		if remaining := l.sorted(); len(remaining) > 0 {
			l.active = remaining[0].ID
		} else {
			l.create()
			created = true
		}
	}
	return l.flush(created), nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// flush writes the full snapshot. Caller holds mu.
func (l *Ledger) flush(created bool) Outcome {
	out := Outcome{Active: l.active, Created: created}

	snap := &storage.Snapshot{
		Version: storage.SchemaVersion,
		Order:   l.order,
		Items:   l.items,
		Active:  l.active,
	}
	entries, err := snap.Encode()
	if err == nil {
		err = l.backend.PutAll(entries)
	}

	l.stats.Flushes++
	if err != nil {
		l.stats.FlushFailures++
		l.stats.LastFlushError = err
		out.PersistErr = err
		log.Printf("LEDGER_FLUSH_FAILED | conversations=%d failures=%d err=%v",
			len(l.items), l.stats.FlushFailures, err)
		return out
	}
	l.lastWritten = fingerprint(entries[storage.KeyConversations], entries[storage.KeyLastActive])
	return out
}

// Reload re-reads storage after an external change. It reports false when
// the stored data is what this ledger wrote last. On a read or decode
// failure the in-memory state is kept.
func (l *Ledger) Reload() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	blob, err := l.backend.Get(storage.KeyConversations)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	active, err := l.backend.Get(storage.KeyLastActive)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if bytes.Equal(fingerprint(blob, active), l.lastWritten) {
		return false, nil
	}

	snap, err := storage.DecodeSnapshot(blob, active)
	if err != nil {
		log.Printf("LEDGER_RELOAD_FAILED | err=%v", err)
		return false, err
	}

	current := l.active
	l.apply(snap)
	if _, ok := l.items[current]; ok {
		l.active = current
	} else if _, ok := l.items[l.active]; !ok {
		l.active = ""
		if remaining := l.sorted(); len(remaining) > 0 {
			l.active = remaining[0].ID
		}
	}
	l.lastWritten = fingerprint(blob, active)
	log.Printf("LEDGER_RELOADED | conversations=%d active=%s", len(l.items), l.active)
	return true, nil
}

// fingerprint identifies a stored state independent of JSON formatting;
// the file backend re-indents values on write.
func fingerprint(blob, active []byte) []byte {
	var buf bytes.Buffer
	for i, v := range [][]byte{blob, active} {
		if i > 0 {
			buf.WriteByte(0)
		}
		start := buf.Len()
		if err := json.Compact(&buf, v); err != nil {
			buf.Truncate(start)
			buf.Write(v)
		}
	}
	return buf.Bytes()
}
