// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for CLI commands.
//
// Handlers always return errors; main decides how to display them and which
// exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/bridgeai/internal/config"
	"github.com/jeranaias/bridgeai/internal/transport"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNetworkError = 5
	ExitInterrupted  = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError represents invalid user input.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	return msg
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// UsageError is returned when a command is called the wrong way.
type UsageError struct {
	Command string
	Hint    string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Hint)
}

// =============================================================================
// DISPLAY
// =============================================================================

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		validation *ValidationError
		usage      *UsageError
		cfgErrs    config.ValidationErrors
		cfgErr     config.ValidationError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &validation), errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return ExitConfigError
	case transport.IsTransportError(err):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// DisplayError prints err in the form matching the output mode.
func DisplayError(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Print()
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
	if transport.IsTransportError(err) {
		fmt.Fprintln(os.Stderr, DimStyle.Render("Is the gateway running? Start it with 'bridgeai gateway'."))
	}
}

// HandleErrorAndExit displays err and exits with its code. It returns when
// err is nil.
func HandleErrorAndExit(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	DisplayError(command, err, jsonMode)
	os.Exit(GetExitCode(err))
}
