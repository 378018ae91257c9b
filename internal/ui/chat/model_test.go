// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/ledger"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/render"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/storage"
	"github.com/jeranaias/parley/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// inbox collects what the bridge would have sent to the program.
type inbox struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (b *inbox) send(msg tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

func (b *inbox) drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.msgs
	b.msgs = nil
	return out
}

type bodyTransport struct {
	body func() io.ReadCloser
}

func (t bodyTransport) Open(context.Context, cloud.CompletionRequest) (io.ReadCloser, error) {
	return t.body(), nil
}

// failingBody returns data and then err.
type failingBody struct {
	data []byte
	err  error
}

func (f *failingBody) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func (f *failingBody) Close() error { return nil }

func frames(deltas ...string) string {
	var b strings.Builder
	for _, d := range deltas {
		b.WriteString(`data: {"choices":[{"delta":{"content":"` + d + `"}}]}` + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func streamTransport(deltas ...string) bodyTransport {
	return bodyTransport{body: func() io.ReadCloser {
		return io.NopCloser(strings.NewReader(frames(deltas...)))
	}}
}

type harness struct {
	t      *testing.T
	inbox  *inbox
	ledger *ledger.Ledger
	ctrl   *session.Controller
	model  Model
	copied []string
}

func newHarness(t *testing.T, tr session.Transport) *harness {
	t.Helper()
	h := &harness{t: t, inbox: &inbox{}}
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	h.ledger = ledger.Open(storage.NewMemoryBackend(), ledger.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))
	h.ctrl = session.New(h.ledger, tr, render.Plain{}, NewBridge(h.inbox.send), session.Config{})
	h.model = New(context.Background(), Options{
		Controller: h.ctrl,
		Theme:      styles.NewThemeFor(termenv.Ascii, true),
		Sidebar:    true,
		Now:        func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) },
		Copy: func(s string) error {
			h.copied = append(h.copied, s)
			return nil
		},
	})
	h.update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

func (h *harness) update(msg tea.Msg) tea.Cmd {
	h.t.Helper()
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// flush feeds everything the controller presented into the model.
func (h *harness) flush() {
	h.t.Helper()
	for _, msg := range h.inbox.drain() {
		h.update(msg)
	}
}

// run executes cmd the way the program would and feeds its result back.
func (h *harness) run(cmd tea.Cmd) {
	h.t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	h.flush()
	if msg != nil {
		h.update(msg)
	}
}

func (h *harness) send(text string) session.Result {
	h.t.Helper()
	res, err := h.ctrl.Send(context.Background(), text)
	h.flush()
	h.update(sendDoneMsg{result: res, err: err})
	return res
}

func (h *harness) typeText(s string) {
	h.model.input.SetValue(s)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// =============================================================================
// TESTS
// =============================================================================

func TestStartShowsGreeting(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.ctrl.Start()
	h.flush()

	require.Len(t, h.model.blocks, 1)
	assert.Contains(t, h.model.View(), session.DefaultGreeting)
	assert.Equal(t, h.ledger.Active(), h.model.activeID)
}

func TestStreamedAnswerBecomesBlock(t *testing.T) {
	h := newHarness(t, streamTransport("Hel", "lo"))
	h.ctrl.Start()
	h.flush()

	res := h.send("hi")
	require.True(t, res.Committed)

	assert.False(t, h.model.streaming)
	assert.True(t, h.model.inputEnabled)
	assert.False(t, h.model.pending)
	require.Len(t, h.model.blocks, 3) // greeting, question, answer
	assert.Contains(t, h.model.blocks[2], "Hello")
	assert.Contains(t, h.model.View(), "hi")
}

func TestStreamingBubbleFollowsItsConversation(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.ctrl.Start()
	h.flush()
	first := h.model.activeID
	_, err := h.ledger.Append(first, model.NewUserMessage("q"))
	require.NoError(t, err)

	h.update(beginAssistantMsg{conversationID: first})
	h.update(replaceAssistantMsg{markup: "partial"})
	assert.True(t, h.model.streamVisible())
	assert.Contains(t, h.model.viewport.View(), "partial")

	h.ctrl.NewConversation()
	h.flush()
	assert.NotEqual(t, first, h.model.activeID)
	assert.False(t, h.model.streamVisible())
	assert.NotContains(t, h.model.viewport.View(), "partial")

	// The greeting of the other conversation must not end the stream.
	assert.True(t, h.model.streaming)

	require.NoError(t, h.ctrl.Open(first))
	h.flush()
	assert.True(t, h.model.streamVisible())
}

func TestFailureKeepsPartialAnswer(t *testing.T) {
	tr := bodyTransport{body: func() io.ReadCloser {
		return &failingBody{
			data: []byte(`data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\n\n"),
			err:  errors.New("connection reset"),
		}
	}}
	h := newHarness(t, tr)
	h.ctrl.Start()
	h.flush()

	res := h.send("hi")
	require.Error(t, res.Err)

	n := len(h.model.blocks)
	require.GreaterOrEqual(t, n, 2)
	assert.Contains(t, h.model.blocks[n-2], "Hel")
	assert.Contains(t, h.model.blocks[n-1], "connection reset")
	assert.True(t, h.model.statusError)
	assert.True(t, h.model.inputEnabled)
}

func TestSubmitEmptyDoesNothing(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.typeText("   ")
	assert.Nil(t, h.update(tea.KeyMsg{Type: tea.KeyEnter}))
}

func TestSubmitWhileStreamingIsRefused(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.update(inputEnabledMsg{enabled: false})
	h.typeText("again")

	assert.Nil(t, h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, "again", h.model.input.Value())
	assert.Contains(t, h.model.status, "Still answering")
}

func TestSubmitSendsThroughCommand(t *testing.T) {
	h := newHarness(t, streamTransport("4"))
	h.ctrl.Start()
	h.flush()

	h.typeText("2+2?")
	cmd := h.update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, h.model.input.Value())

	h.run(cmd)
	conv, ok := h.ledger.Get(h.ledger.Active())
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "4", conv.Messages[1].Content)
	assert.Nil(t, h.model.cancel)
}

func TestSlashHelpIsNotSent(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.ctrl.Start()
	h.flush()

	h.typeText("/help")
	assert.Nil(t, h.update(tea.KeyMsg{Type: tea.KeyEnter}))

	last := h.model.blocks[len(h.model.blocks)-1]
	assert.Contains(t, last, "/open <n>")
	conv, _ := h.ledger.Get(h.ledger.Active())
	assert.Empty(t, conv.Messages)
}

func TestSlashUnknownCommand(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.typeText("/bogus")
	h.update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, h.model.statusError)
	assert.Contains(t, h.model.status, "/bogus")
}

func TestSlashRenameAndOpen(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.ctrl.Start()
	h.flush()
	first := h.model.activeID

	h.typeText("/rename Trip plans")
	h.run(h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	conv, _ := h.ledger.Get(first)
	assert.Equal(t, "Trip plans", conv.Title)
	assert.Equal(t, "Renamed", h.model.status)

	h.typeText("/new")
	h.run(h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.NotEqual(t, first, h.model.activeID)

	// Newest first: the renamed conversation is now second.
	h.typeText("/open 2")
	h.run(h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, first, h.model.activeID)
	assert.Contains(t, h.model.View(), "Trip plans")

	h.typeText("/open 9")
	h.run(h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.True(t, h.model.statusError)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.ctrl.Start()
	h.flush()
	h.ctrl.NewConversation()
	h.flush()
	require.Equal(t, 2, h.ledger.Len())

	assert.Nil(t, h.update(tea.KeyMsg{Type: tea.KeyCtrlD}))
	assert.NotEmpty(t, h.model.confirmDelete)
	assert.Nil(t, h.update(keyRunes("n")))
	assert.Empty(t, h.model.confirmDelete)
	assert.Equal(t, 2, h.ledger.Len())

	h.update(tea.KeyMsg{Type: tea.KeyCtrlD})
	h.run(h.update(keyRunes("y")))
	assert.Equal(t, 1, h.ledger.Len())
	assert.Equal(t, h.ledger.Active(), h.model.activeID)
	assert.Equal(t, "Conversation deleted", h.model.status)
}

func TestSidebarNavigationOpens(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.ctrl.Start()
	h.flush()
	first := h.model.activeID
	h.ctrl.NewConversation()
	h.flush()

	h.update(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.True(t, h.model.focusSidebar)
	assert.Equal(t, 0, h.model.cursor)

	h.update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, h.model.cursor)
	h.update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, h.model.cursor)

	h.run(h.update(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.False(t, h.model.focusSidebar)
	assert.Equal(t, first, h.model.activeID)
}

func TestSwitchAndRenameKeys(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.ctrl.Start()
	h.flush()
	first := h.model.activeID
	h.ctrl.NewConversation()
	h.flush()
	second := h.model.activeID

	h.run(h.update(tea.KeyMsg{Type: tea.KeyCtrlDown}))
	assert.Equal(t, first, h.model.activeID)
	assert.Nil(t, h.update(tea.KeyMsg{Type: tea.KeyCtrlDown}))

	h.run(h.update(tea.KeyMsg{Type: tea.KeyCtrlUp}))
	assert.Equal(t, second, h.model.activeID)

	h.update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Equal(t, "/rename New chat", h.model.input.Value())
}

func TestEscLeavesSidebarThenQuits(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.update(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.True(t, h.model.focusSidebar)

	h.update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, h.model.focusSidebar)
	assert.False(t, h.model.quitting)

	h.update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, h.model.quitting)
	assert.Empty(t, h.model.View())
}

func TestCopyLastAnswer(t *testing.T) {
	h := newHarness(t, streamTransport("Hel", "lo"))
	h.ctrl.Start()
	h.flush()

	h.run(h.update(tea.KeyMsg{Type: tea.KeyCtrlY}))
	assert.Equal(t, "No response to copy", h.model.status)
	assert.Empty(t, h.copied)

	h.send("hi")
	h.run(h.update(tea.KeyMsg{Type: tea.KeyCtrlY}))
	assert.Equal(t, []string{"Hello"}, h.copied)
	assert.Equal(t, "Copied 5 chars", h.model.status)
}

func TestTabCompletesCommand(t *testing.T) {
	h := newHarness(t, streamTransport())
	h.typeText("/ren")
	h.update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "/rename ", h.model.input.Value())

	h.typeText("/export y")
	h.update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "/export y", h.model.input.Value())
	assert.Contains(t, h.model.status, "/export yaml")
}

func TestCommonPrefix(t *testing.T) {
	assert.Equal(t, "/export y", commonPrefix([]string{"/export yaml", "/export yml"}))
	assert.Equal(t, "/", commonPrefix([]string{"/new", "/open"}))
	assert.Equal(t, "", commonPrefix(nil))
}

func TestBridgeWithoutProgramDrops(t *testing.T) {
	b := NewBridge(nil)
	assert.NotPanics(t, func() {
		b.Clear()
		b.ReplaceAssistant("x")
	})
}
