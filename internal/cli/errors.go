// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and user-facing error hints for the parley CLI.
//
// Commands always return errors; main maps them to an exit code and prints
// them once.

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/parley/internal/cloud"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/ledger"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the service rejected the credentials
	ExitAuthError = 4
	// ExitNetworkError indicates the service could not be reached or failed
	ExitNetworkError = 5
	// ExitNotFoundError indicates a conversation was not found
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a bad flag or argument.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

// NewUsageError creates a usage error.
func NewUsageError(format string, args ...any) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	var (
		usage    *UsageError
		invalid  config.ValidateErrors
		status   *cloud.StatusError
		ttyError *TTYRequiredError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage), errors.As(err, &ttyError):
		return ExitUsageError
	case errors.As(err, &invalid):
		return ExitConfigError
	case errors.Is(err, cloud.ErrAuthFailed):
		return ExitAuthError
	case errors.As(err, &status):
		return ExitNetworkError
	case errors.Is(err, ledger.ErrConversationNotFound):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}

// Hint returns a suggestion for err, or "".
func Hint(err error) string {
	switch {
	case errors.Is(err, cloud.ErrAuthFailed):
		return "Check service.api_key in config.toml or PARLEY_API_KEY."
	case errors.Is(err, cloud.ErrRateLimited):
		return "Lower service.requests_per_minute or wait a moment."
	case errors.Is(err, cloud.ErrServerError):
		return "The service failed; try again later."
	case errors.Is(err, ledger.ErrConversationNotFound):
		return "Run 'parley list' to see conversation ids."
	}
	return ""
}

// FormatError renders err and its hint for stderr.
func FormatError(err error) string {
	msg := ErrorStyle.Render("Error:") + " " + err.Error()
	if hint := Hint(err); hint != "" {
		msg += "\n" + DimStyle.Render(hint)
	}
	return msg
}
