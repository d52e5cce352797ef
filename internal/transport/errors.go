// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery is returned when a chat turn has no text.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrNoSession is returned when a call needs a session id and has none.
	ErrNoSession = errors.New("session id is required")
)

// TransportError reports a gateway call that could not be completed, either
// because the connection failed or because the gateway answered with a
// non-success status.
type TransportError struct {
	Op         string // "chat", "clear", "health", "refresh"
	StatusCode int    // 0 when no response was received
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: gateway returned HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
