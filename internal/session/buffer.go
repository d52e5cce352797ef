// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"time"
)

// =============================================================================
// FLUSH BUFFER
// =============================================================================

// flushBuffer accumulates streamed text and releases it at most once per
// interval, so the sink sees a few sizeable chunks instead of one call per
// token. It is owned by a single Run loop and is not synchronized.
type flushBuffer struct {
	buffer    strings.Builder
	lastFlush time.Time
	interval  time.Duration
}

func newFlushBuffer(interval time.Duration, now time.Time) *flushBuffer {
	return &flushBuffer{
		interval:  interval,
		lastFlush: now,
	}
}

// Write adds text to the buffer.
func (b *flushBuffer) Write(text string) {
	b.buffer.WriteString(text)
}

// Due reports whether buffered text should be released at now.
func (b *flushBuffer) Due(now time.Time) bool {
	return b.buffer.Len() > 0 && now.Sub(b.lastFlush) >= b.interval
}

// Take returns and clears the buffered text.
func (b *flushBuffer) Take(now time.Time) string {
	content := b.buffer.String()
	b.buffer.Reset()
	b.lastFlush = now
	return content
}

// Pending returns the number of buffered bytes.
func (b *flushBuffer) Pending() int {
	return b.buffer.Len()
}
