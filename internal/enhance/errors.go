// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package enhance

import "errors"

// Reasons a re-run fails. The message is left as it was in every case.
var (
	ErrNoQuery       = errors.New("no originating user query")
	ErrFallback      = errors.New("online model fell back to offline")
	ErrEmptyResponse = errors.New("online model returned an empty answer")
	ErrMessageGone   = errors.New("message no longer in transcript")
)

// ErrDequeued marks an id dropped from the queue before its turn came.
var ErrDequeued = errors.New("dequeued")

var errInFlight = errors.New("already being enhanced")
