// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/model"
)

// backends returns one fresh instance of every backend.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	file, err := NewFileBackend(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Backend{
		"file":   file,
		"sqlite": db,
		"memory": NewMemoryBackend(),
	}
}

func sampleSnapshot() *Snapshot {
	created := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)
	snap := NewSnapshot()
	for i, id := range []string{"b", "a"} {
		snap.Items[id] = &model.Conversation{
			ID:        id,
			Title:     "Chat " + id,
			Messages:  []model.Message{model.NewUserMessage("hi " + id), model.NewAssistantMessage("hello")},
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		}
		snap.Order = append(snap.Order, id)
	}
	snap.Active = "a"
	return snap
}

func TestBackends_GetMissing(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get(KeyConversations)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBackends_SnapshotRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleSnapshot()
			entries, err := want.Encode()
			require.NoError(t, err)
			require.NoError(t, b.PutAll(entries))

			got, err := ReadSnapshot(b)
			require.NoError(t, err)
			assert.Equal(t, SchemaVersion, got.Version)
			assert.Equal(t, []string{"b", "a"}, got.Order)
			assert.Equal(t, "a", got.Active)
			require.Len(t, got.Items, 2)
			for id, conv := range want.Items {
				assert.Equal(t, conv.Title, got.Items[id].Title)
				assert.Equal(t, conv.Messages, got.Items[id].Messages)
				assert.True(t, conv.CreatedAt.Equal(got.Items[id].CreatedAt))
			}
		})
	}
}

func TestBackends_PutAllOverwrites(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.PutAll(map[string][]byte{KeyLastActive: []byte(`"one"`)}))
			require.NoError(t, b.PutAll(map[string][]byte{KeyLastActive: []byte(`"two"`)}))
			v, err := b.Get(KeyLastActive)
			require.NoError(t, err)
			assert.JSONEq(t, `"two"`, string(v))
		})
	}
}

func TestReadSnapshot_Empty(t *testing.T) {
	snap, err := ReadSnapshot(NewMemoryBackend())
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Empty(t, snap.Order)
	assert.Equal(t, "", snap.Active)
}

func TestDecodeSnapshot_Corrupt(t *testing.T) {
	for _, blob := range []string{`{not json`, `[1,2,3]`, `"text"`, `{"version":1,"items":"bad"}`} {
		_, err := DecodeSnapshot([]byte(blob), nil)
		var corrupt *CorruptError
		assert.ErrorAs(t, err, &corrupt, "blob %s", blob)
	}
}

func TestDecodeSnapshot_MigratesLegacyMap(t *testing.T) {
	legacy := `{
		"late":  {"id":"late","title":"Second","messages":[{"role":"user","content":"b"}],"createdAt":"2024-05-02T00:00:00Z"},
		"early": {"id":"early","title":"First","messages":[{"role":"user","content":"a"},{"role":"system","content":"notice"}],"createdAt":"2024-05-01T00:00:00Z"}
	}`
	snap, err := DecodeSnapshot([]byte(legacy), []byte("late"))
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, snap.Version)
	assert.Equal(t, []string{"early", "late"}, snap.Order)
	assert.Equal(t, "late", snap.Active, "bare legacy id must be accepted")
	assert.Len(t, snap.Items["early"].Messages, 1, "system messages are dropped")
}

func TestDecodeSnapshot_Normalizes(t *testing.T) {
	blob := `{"version":1,"order":["x","ghost","x"],"items":{
		"x":{"title":"","messages":null,"createdAt":"2024-01-01T00:00:00Z"},
		"y":{"id":"y","title":"Y","messages":[],"createdAt":"2024-01-02T00:00:00Z"}}}`
	snap, err := DecodeSnapshot([]byte(blob), []byte(`"gone"`))
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y"}, snap.Order)
	assert.Equal(t, "x", snap.Items["x"].ID)
	assert.Equal(t, model.UntitledTitle, snap.Items["x"].Title)
	assert.NotNil(t, snap.Items["x"].Messages)
	assert.Equal(t, "", snap.Active, "active id of a missing conversation is cleared")
}

func TestDecodeSnapshot_NewerVersionReadsKnownFields(t *testing.T) {
	blob := `{"version":7,"order":["x"],"items":{"x":{"id":"x","title":"T","messages":[],"createdAt":"2024-01-01T00:00:00Z","pinned":true}},"tags":{}}`
	snap, err := DecodeSnapshot([]byte(blob), nil)
	require.NoError(t, err)
	assert.Equal(t, "T", snap.Items["x"].Title)
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	b, err := NewFileBackend(path)
	require.NoError(t, err)

	_, err = b.Get(KeyConversations)
	var corrupt *CorruptError
	require.ErrorAs(t, err, &corrupt)

	// The next write replaces the corrupt document.
	require.NoError(t, b.PutAll(map[string][]byte{KeyLastActive: []byte(`"a"`)}))
	v, err := b.Get(KeyLastActive)
	require.NoError(t, err)
	assert.JSONEq(t, `"a"`, string(v))
}

func TestFileBackend_RejectsInvalidJSON(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	assert.Error(t, b.PutAll(map[string][]byte{KeyLastActive: []byte("bare-id")}))
}

func TestFileBackend_Watch(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 16)
	require.NoError(t, Watch(ctx, b, func() { changed <- struct{}{} }))

	require.NoError(t, b.PutAll(map[string][]byte{KeyLastActive: []byte(`"a"`)}))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification after write")
	}
}

func TestWatch_Unsupported(t *testing.T) {
	err := Watch(context.Background(), NewMemoryBackend(), func() {})
	assert.True(t, errors.Is(err, ErrWatchUnsupported))
}

func TestMemoryBackend_FailureInjection(t *testing.T) {
	m := NewMemoryBackend()
	boom := errors.New("disk full")

	m.SetPutError(boom)
	assert.ErrorIs(t, m.PutAll(map[string][]byte{"k": []byte("1")}), boom)
	assert.Equal(t, 0, m.Puts())

	m.SetPutError(nil)
	require.NoError(t, m.PutAll(map[string][]byte{"k": []byte("1")}))
	assert.Equal(t, 1, m.Puts())

	m.SetGetError(boom)
	_, err := m.Get("k")
	assert.ErrorIs(t, err, boom)
}
