// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strings"
	"testing"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func TestPlain(t *testing.T) {
	if got := (Plain{}).Render("**4**"); got != "**4**" {
		t.Errorf("Plain.Render = %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	md, err := NewMarkdown("notty", 60)
	if err != nil {
		t.Fatalf("NewMarkdown: %v", err)
	}
	out := stripANSI(md.Render("# Title\n\nThe answer is **4**."))
	if !strings.Contains(out, "Title") || !strings.Contains(out, "The answer is") {
		t.Errorf("rendered output lost content: %q", out)
	}
	if strings.HasPrefix(out, "\n") || strings.HasSuffix(out, "\n") {
		t.Errorf("output should be trimmed: %q", out)
	}
}

func TestMarkdown_IsPureOverPrefixes(t *testing.T) {
	md, err := NewMarkdown("notty", 80)
	if err != nil {
		t.Fatalf("NewMarkdown: %v", err)
	}
	text := "Here:\n```go\nfmt.Println(1)\n```\nDone."
	first := md.Render(text)
	for i := range text {
		md.Render(text[:i])
	}
	if again := md.Render(text); again != first {
		t.Error("rendering depends on previous calls")
	}
}

func TestCode_HighlightsFences(t *testing.T) {
	text := "Example:\n```go\npackage main\n```\nbye"
	out := Code{}.Render(text)

	if !strings.Contains(out, "\x1b[") {
		t.Error("expected ANSI escapes inside the fenced block")
	}
	plain := stripANSI(out)
	for _, want := range []string{"Example:", "```go", "package main", "bye"} {
		if !strings.Contains(plain, want) {
			t.Errorf("output missing %q: %q", want, plain)
		}
	}
}

func TestCode_UnclosedFence(t *testing.T) {
	out := stripANSI(Code{}.Render("```python\nprint('hi')"))
	if !strings.Contains(out, "print('hi')") {
		t.Errorf("open fence content lost: %q", out)
	}
}

func TestCode_NoFences(t *testing.T) {
	if got := (Code{}).Render("just text\nmore"); got != "just text\nmore" {
		t.Errorf("Code.Render = %q", got)
	}
}

func TestHighlightCode_UnknownLanguage(t *testing.T) {
	out := stripANSI(HighlightCode("x = 1", "no-such-language", "no-such-style"))
	if !strings.Contains(out, "x = 1") {
		t.Errorf("HighlightCode lost content: %q", out)
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(ModePlain, "", 0).(Plain); !ok {
		t.Error("plain mode should return Plain")
	}
	if _, ok := New(ModeCode, "", 0).(Code); !ok {
		t.Error("code mode should return Code")
	}
	if New(ModeMarkdown, "notty", 80) == nil {
		t.Error("markdown mode returned nil")
	}
}
