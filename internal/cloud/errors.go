// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

// Error variables for non-success responses.
var (
	// ErrAuthFailed indicates the service rejected the credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError indicates a 5xx response.
	ErrServerError = errors.New("server error")

	// ErrUnexpectedStatus covers every other non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// StatusError is a non-2xx response. The body is never parsed.
type StatusError struct {
	Status     int
	StatusText string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	text := e.StatusText
	if text == "" {
		text = http.StatusText(e.Status)
	}
	return fmt.Sprintf("completion service returned HTTP %d %s", e.Status, text)
}

// Unwrap maps the status to one of the sentinel errors.
func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return ErrAuthFailed
	case e.Status == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Status >= 500:
		return ErrServerError
	default:
		return ErrUnexpectedStatus
	}
}
