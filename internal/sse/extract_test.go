// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"errors"
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		kind    Kind
		content string
	}{
		{"delta", `data: {"choices":[{"delta":{"content":"4"}}]}`, KindDelta, "4"},
		{"no space after colon", `data:{"choices":[{"delta":{"content":"x"}}]}`, KindDelta, "x"},
		{"whitespace content kept", `data: {"choices":[{"delta":{"content":" "}}]}`, KindDelta, " "},
		{"done", "data: [DONE]", KindDone, ""},
		{"done with padding", "data: [DONE]  ", KindDone, ""},
		{"role only", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, KindIgnored, ""},
		{"finish marker", `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`, KindIgnored, ""},
		{"comment", ": ping", KindIgnored, ""},
		{"empty frame", "", KindIgnored, ""},
		{"event without data", "event: ping", KindIgnored, ""},
		{"empty data", "data: ", KindIgnored, ""},
		{"event and data", "event: message\ndata: {\"choices\":[{\"delta\":{\"content\":\"y\"}}]}", KindDelta, "y"},
		{"bad json", "data: {not json", KindMalformed, ""},
		{"wrong shape", `data: {"choices":"nope"}`, KindMalformed, ""},
		{"no choices", `data: {"choices":[]}`, KindMalformed, ""},
		{"null payload", "data: null", KindMalformed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Extract(tt.frame)
			if ev.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v (err=%v)", ev.Kind, tt.kind, ev.Err)
			}
			if ev.Content != tt.content {
				t.Errorf("Content = %q, want %q", ev.Content, tt.content)
			}
			if (ev.Kind == KindMalformed) != (ev.Err != nil) {
				t.Errorf("Err = %v for kind %v", ev.Err, ev.Kind)
			}
		})
	}
}

func TestExtract_MissingChoicesError(t *testing.T) {
	ev := Extract(`data: {"id":"x"}`)
	var me *MalformedError
	if !errors.As(ev.Err, &me) {
		t.Fatalf("Err = %T, want *MalformedError", ev.Err)
	}
	if !errors.Is(ev.Err, ErrMissingChoices) {
		t.Errorf("Err = %v, want ErrMissingChoices", ev.Err)
	}
}

func TestExtract_MultiLineData(t *testing.T) {
	ev := Extract("data: {\"choices\":\ndata: [{\"delta\":{\"content\":\"z\"}}]}")
	if ev.Kind != KindDelta || ev.Content != "z" {
		t.Errorf("Extract = %+v", ev)
	}
}

func TestExtract_DoneStopsEverythingAfter(t *testing.T) {
	stream := []byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
	if got := deltas([][]byte{stream}); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("deltas = %q, want [a]", got)
	}
}

func TestExtract_MalformedFrameIsolation(t *testing.T) {
	stream := []byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {broken\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n" +
		"data: [DONE]\n\n")
	if got := deltas([][]byte{stream}); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("deltas = %q, want [a b]", got)
	}
}

func TestKindString(t *testing.T) {
	if KindMalformed.String() != "malformed" || Kind(42).String() != "kind(42)" {
		t.Error("unexpected Kind.String output")
	}
}
