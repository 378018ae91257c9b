// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/commands"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/ledger"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/render"
	"github.com/jeranaias/parley/internal/session"
	"github.com/jeranaias/parley/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type answerTransport struct {
	answer string
}

func (a answerTransport) Open(context.Context, cloud.CompletionRequest) (io.ReadCloser, error) {
	var b strings.Builder
	for _, word := range strings.SplitAfter(a.answer, " ") {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
	}
	b.WriteString("data: [DONE]\n\n")
	return io.NopCloser(strings.NewReader(b.String())), nil
}

func newLedger() *ledger.Ledger {
	tick := 0
	return ledger.Open(storage.NewMemoryBackend(), ledger.WithClock(func() time.Time {
		tick++
		return testNow.Add(time.Duration(tick-10) * time.Minute)
	}))
}

type replFixture struct {
	out    *bytes.Buffer
	ledger *ledger.Ledger
	repl   *REPL
	answer bool
}

func newREPL(t *testing.T, answer string) *replFixture {
	t.Helper()
	f := &replFixture{out: &bytes.Buffer{}, ledger: newLedger()}
	ctrl := session.New(f.ledger, answerTransport{answer: answer}, render.Plain{},
		NewPrinter(f.out, false), session.Config{})
	f.repl = NewREPL(ctrl, REPLOptions{
		Out:    f.out,
		Export: &export.Options{OutputDir: t.TempDir(), IncludeMetadata: true},
		Width:  100,
		Now:    func() time.Time { return testNow },
		Ask:    func(string) bool { return f.answer },
	})
	ctrl.Start()
	return f
}

func (f *replFixture) handle(t *testing.T, input string) (bool, error) {
	t.Helper()
	f.out.Reset()
	return f.repl.Handle(context.Background(), input)
}

// =============================================================================
// PRINTER
// =============================================================================

func TestPrinter_SuffixAndReprint(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.SetInputEnabled(false)
	p.ShowMessage(model.RoleUser, "hi")
	p.ShowPending()
	p.HidePending()
	p.BeginAssistant("c1")
	p.ReplaceAssistant("He")
	p.ReplaceAssistant("Hello")
	p.ReplaceAssistant("Help")
	p.SetInputEnabled(true)

	assert.Equal(t, "Assistant:\nHello\nHelp\n", buf.String())
}

func TestPrinter_ReplayShowsUserMessages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.ShowMessage(model.RoleUser, "hi")
	p.ShowMessage(model.RoleAssistant, "hello")
	assert.Equal(t, "You: hi\nAssistant:\nhello\n", buf.String())
}

func TestPrinter_NoticeEndsPartialLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.SetInputEnabled(false)
	p.BeginAssistant("c1")
	p.ReplaceAssistant("half")
	p.ShowMessage(model.RoleSystem, "An error occurred")
	p.SetInputEnabled(true)

	assert.Equal(t, "Assistant:\nhalf\nAn error occurred\n", buf.String())
}

// =============================================================================
// REPL
// =============================================================================

func TestREPL_SendCommits(t *testing.T) {
	f := newREPL(t, "4")

	quit, err := f.handle(t, "2+2?")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, f.out.String(), "Assistant:\n4\n")

	conv, ok := f.ledger.Get(f.ledger.Active())
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "2+2?", conv.Title)
}

func TestREPL_BlankInputIgnored(t *testing.T) {
	f := newREPL(t, "x")
	quit, err := f.handle(t, "   ")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Empty(t, f.out.String())
}

func TestREPL_HelpHidesTUIOnly(t *testing.T) {
	f := newREPL(t, "x")
	_, err := f.handle(t, "/help")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "/open <n>")
	assert.NotContains(t, f.out.String(), commands.Copy)

	_, err = f.handle(t, "/copy")
	var usage *UsageError
	assert.ErrorAs(t, err, &usage)
}

func TestREPL_UnknownCommand(t *testing.T) {
	f := newREPL(t, "x")
	_, err := f.handle(t, "/bogus")
	var unknown *commands.UnknownCommandError
	assert.ErrorAs(t, err, &unknown)
}

func TestREPL_ConversationCommands(t *testing.T) {
	f := newREPL(t, "fine thanks")
	first := f.ledger.Active()

	_, err := f.handle(t, "/rename Trip plans")
	require.NoError(t, err)
	conv, _ := f.ledger.Get(first)
	assert.Equal(t, "Trip plans", conv.Title)

	_, err = f.handle(t, "/new")
	require.NoError(t, err)
	assert.NotEqual(t, first, f.ledger.Active())

	_, err = f.handle(t, "/list")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Trip plans")
	assert.Contains(t, f.out.String(), "*   1")

	_, err = f.handle(t, "/open 2")
	require.NoError(t, err)
	assert.Equal(t, first, f.ledger.Active())

	_, err = f.handle(t, "/open 7")
	assert.ErrorIs(t, err, ledger.ErrConversationNotFound)
}

func TestREPL_DeleteAsks(t *testing.T) {
	f := newREPL(t, "x")
	_, err := f.handle(t, "/new")
	require.NoError(t, err)
	require.Equal(t, 2, f.ledger.Len())

	f.answer = false
	_, err = f.handle(t, "/delete")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Delete cancelled")
	assert.Equal(t, 2, f.ledger.Len())

	f.answer = true
	_, err = f.handle(t, "/delete 2")
	require.NoError(t, err)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestREPL_Export(t *testing.T) {
	f := newREPL(t, "4")
	_, err := f.handle(t, "2+2?")
	require.NoError(t, err)

	_, err = f.handle(t, "/export json")
	require.NoError(t, err)

	out := f.out.String()
	require.Contains(t, out, "Exported to ")
	path := strings.TrimSpace(strings.TrimPrefix(out, "Exported to "))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var conv model.Conversation
	require.NoError(t, json.Unmarshal(data, &conv))
	assert.Len(t, conv.Messages, 2)
	assert.Equal(t, ".json", filepath.Ext(path))

	_, err = f.handle(t, "/export pdf")
	assert.Error(t, err)
}

func TestREPL_Quit(t *testing.T) {
	f := newREPL(t, "x")
	quit, err := f.handle(t, "/q")
	require.NoError(t, err)
	assert.True(t, quit)
}

// =============================================================================
// LIST AND RESOLVE
// =============================================================================

func TestPrintList(t *testing.T) {
	var buf bytes.Buffer
	PrintList(&buf, nil, testNow, 80)
	assert.Equal(t, "No conversations yet.\n", buf.String())

	buf.Reset()
	rows := []Row{
		{Position: 1, ID: "0123456789abcdef", Title: "Newest", Messages: 2, CreatedAt: testNow.Add(-2 * time.Hour), Active: true},
		{Position: 2, ID: "fedcba9876543210", Title: "Older\nline", Messages: 0, CreatedAt: testNow.Add(-48 * time.Hour)},
	}
	PrintList(&buf, rows, testNow, 80)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "*   1  01234567  Newest"))
	assert.Contains(t, lines[1], "Older line")
	assert.Contains(t, lines[1], "fedcba98")
}

func TestResolve(t *testing.T) {
	l := newLedger()
	a, _ := l.Create()
	b, _ := l.Create()

	conv, err := Resolve(l, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, conv.ID)

	conv, err = Resolve(l, "1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, conv.ID, "position 1 is the newest")

	conv, err = Resolve(l, b.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, b.ID, conv.ID)

	_, err = Resolve(l, "3")
	assert.ErrorIs(t, err, ledger.ErrConversationNotFound)

	_, err = Resolve(l, "ab")
	assert.ErrorIs(t, err, ledger.ErrConversationNotFound)
}

func TestRows(t *testing.T) {
	l := newLedger()
	a, _ := l.Create()
	b, _ := l.Create()

	rows := Rows(l)
	require.Len(t, rows, 2)
	assert.Equal(t, b.ID, rows[0].ID)
	assert.True(t, rows[0].Active)
	assert.Equal(t, a.ID, rows[1].ID)
	assert.Equal(t, 2, rows[1].Position)
}

// =============================================================================
// CONFIRMATION, ERRORS, JSON
// =============================================================================

func TestRequireConfirmation(t *testing.T) {
	ok, err := RequireConfirmation("delete", ConfirmationOptions{Yes: true})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = RequireConfirmation("delete", ConfirmationOptions{})
	var tty *TTYRequiredError
	assert.ErrorAs(t, err, &tty)

	var out bytes.Buffer
	ok, err = RequireConfirmation("delete", ConfirmationOptions{
		Interactive: true, In: strings.NewReader("yes\n"), Out: &out,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "delete? [y/N]")

	ok, _ = RequireConfirmation("delete", ConfirmationOptions{
		Interactive: true, In: strings.NewReader(""), Out: &out,
	})
	assert.False(t, ok)
}

func TestIsYes(t *testing.T) {
	for in, want := range map[string]bool{"y": true, "YES\n": true, " y ": true, "n": false, "": false, "yep": false} {
		assert.Equal(t, want, IsYes(in), in)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneralError},
		{NewUsageError("bad flag"), ExitUsageError},
		{config.ValidateErrors{{Field: "service.base_url", Message: "required"}}, ExitConfigError},
		{&cloud.StatusError{Status: 401}, ExitAuthError},
		{&cloud.StatusError{Status: 503}, ExitNetworkError},
		{fmt.Errorf("open: %w", notFound("x")), ExitNotFoundError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

func TestFormatErrorHint(t *testing.T) {
	msg := FormatError(&cloud.StatusError{Status: 429})
	assert.Contains(t, msg, "Error:")
	assert.Contains(t, msg, "requests_per_minute")
	assert.Empty(t, Hint(errors.New("plain")))
}

func TestJSONResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONResponse("list", []Row{{Position: 1, ID: "a"}}).Write(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Nil(t, decoded["error"])
	assert.Equal(t, "list", decoded["command"])

	buf.Reset()
	require.NoError(t, NewJSONErrorResponse("list", errors.New("nope")).Write(&buf))
	assert.Contains(t, buf.String(), `"error": "nope"`)
}
