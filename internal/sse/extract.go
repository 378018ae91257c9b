// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DoneSentinel is the payload that ends a completion stream.
const DoneSentinel = "[DONE]"

// ErrMissingChoices is reported for a JSON payload without choices[0].
var ErrMissingChoices = errors.New("payload has no choices")

// =============================================================================
// EVENT TYPES
// =============================================================================

// Kind tags the outcome of extracting one frame.
type Kind int

const (
	// KindIgnored covers comments, keep-alives, non-data frames and deltas
	// with no content (role announcements, finish markers).
	KindIgnored Kind = iota
	// KindDelta carries incremental assistant text in Event.Content.
	KindDelta
	// KindDone is the [DONE] sentinel. Nothing after it is processed.
	KindDone
	// KindMalformed is a data frame whose payload could not be decoded.
	// Event.Err says why. The frame is dropped; the stream goes on.
	KindMalformed
)

// String returns the kind name used in log lines.
func (k Kind) String() string {
	switch k {
	case KindIgnored:
		return "ignored"
	case KindDelta:
		return "delta"
	case KindDone:
		return "done"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is the result of extracting one frame.
type Event struct {
	Kind    Kind
	Content string
	Err     error
}

// MalformedError describes a payload that failed to decode.
type MalformedError struct {
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	payload := e.Payload
	if len(payload) > 80 {
		payload = payload[:80] + "..."
	}
	return fmt.Sprintf("malformed payload %q: %v", payload, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

// completionChunk is the subset of a chat completion chunk that carries text.
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// =============================================================================
// EXTRACTION
// =============================================================================

// Extract classifies one frame and pulls the text at choices[0].delta.content
// out of it. It never panics on bad input; every failure is a KindMalformed
// event.
func Extract(frame string) Event {
	payload, ok := dataField(frame)
	if !ok {
		return Event{Kind: KindIgnored}
	}
	payload = strings.TrimSpace(payload)
	if payload == DoneSentinel {
		return Event{Kind: KindDone}
	}
	if payload == "" {
		return Event{Kind: KindIgnored}
	}

	var chunk completionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Event{Kind: KindMalformed, Err: &MalformedError{Payload: payload, Err: err}}
	}
	if len(chunk.Choices) == 0 {
		return Event{Kind: KindMalformed, Err: &MalformedError{Payload: payload, Err: ErrMissingChoices}}
	}

	content := chunk.Choices[0].Delta.Content
	if content == "" {
		return Event{Kind: KindIgnored}
	}
	return Event{Kind: KindDelta, Content: content}
}

// dataField joins the data lines of a frame. ok is false when the frame has
// none. Comment lines (":...") and other fields are skipped.
func dataField(frame string) (string, bool) {
	var data []string
	found := false
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		if field != "data" {
			continue
		}
		found = true
		data = append(data, strings.TrimPrefix(value, " "))
	}
	return strings.Join(data, "\n"), found
}
