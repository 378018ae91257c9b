// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

// ConversationError is a ledger operation error. Errors with the same
// message compare equal under errors.Is, so callers match the sentinels
// below regardless of which conversation id is attached.
type ConversationError struct {
	Message string
	ID      string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrConversationNotFound is returned for an unknown conversation id.
	ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

	// ErrEmptyTitle is returned by Rename for a blank title.
	ErrEmptyTitle = &ConversationError{Message: "title must not be empty"}

	// ErrNotPersistable is returned when a UI-only message is appended.
	ErrNotPersistable = &ConversationError{Message: "system messages are not stored"}
)

func notFound(id string) error {
	return &ConversationError{Message: ErrConversationNotFound.Message, ID: id}
}
