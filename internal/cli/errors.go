// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/confserve/internal/config"
	"github.com/jeranaias/confserve/internal/server"
	"github.com/jeranaias/confserve/internal/store"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g. "get"
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports missing or extra arguments.
type UsageError struct {
	Usage string
	Msg   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s\nUsage: %s", e.Msg, e.Usage)
}

func newCommandError(command, reason string, err error) error {
	return &CommandError{Command: command, Reason: reason, Err: err}
}

// GetExitCode maps an error returned by the app to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var verrs config.ValidateErrors
	switch {
	case errors.As(err, &usage), errors.Is(err, store.ErrNotStorable):
		return ExitUsageError
	case errors.Is(err, store.ErrKeyNotFound):
		return ExitNotFoundError
	case errors.Is(err, store.ErrMalformedConfig),
		errors.Is(err, store.ErrValueNotParsable),
		errors.As(err, &verrs):
		return ExitConfigError
	case errors.Is(err, server.ErrPortInUse):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}
