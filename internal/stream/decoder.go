// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DataPrefix marks an event line.
	DataPrefix = "data:"

	// DoneSentinel is the payload of the terminal line.
	DoneSentinel = "[DONE]"

	// MaxLineSize bounds the carry-over buffer. A line that grows past it
	// without a terminator is dropped and counted as malformed.
	MaxLineSize = 1 << 20
)

// Frame is the JSON payload of a "data:" line.
type Frame struct {
	Content  string `json:"content,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
	Source   string `json:"source,omitempty"`
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns arbitrarily split text fragments into Events.
//
// Complete lines are decoded as soon as their terminator arrives; the
// trailing partial line is carried over to the next Feed. After the
// terminal sentinel the Decoder ignores all further input.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	carry     []byte
	malformed int
	done      bool
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a fragment and returns the events of every line it completes.
func (d *Decoder) Feed(fragment []byte) []Event {
	if d.done || len(fragment) == 0 {
		return nil
	}
	d.carry = append(d.carry, fragment...)

	var events []Event
	rest := d.carry
	for !d.done {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		if ev, ok := d.decodeLine(rest[:i]); ok {
			events = append(events, ev)
		}
		rest = rest[i+1:]
	}

	if d.done {
		d.carry = nil
		return events
	}

	n := copy(d.carry, rest)
	d.carry = d.carry[:n]
	if len(d.carry) > MaxLineSize {
		d.carry = d.carry[:0]
		d.malformed++
	}
	return events
}

// FeedString is Feed for string fragments.
func (d *Decoder) FeedString(fragment string) []Event {
	return d.Feed([]byte(fragment))
}

// Finish decodes an unterminated final line, if any, and closes the
// sequence. It returns EventEnd last unless the sentinel was already seen.
func (d *Decoder) Finish() []Event {
	if d.done {
		return nil
	}
	var events []Event
	if len(d.carry) > 0 {
		if ev, ok := d.decodeLine(d.carry); ok {
			events = append(events, ev)
		}
		d.carry = nil
	}
	if !d.done {
		d.done = true
		events = append(events, End())
	}
	return events
}

// Done reports whether the sequence has terminated.
func (d *Decoder) Done() bool {
	return d.done
}

// Malformed returns how many lines were dropped because their payload failed to parse.
func (d *Decoder) Malformed() int {
	return d.malformed
}

// Pending returns the number of carried-over bytes awaiting a line terminator.
func (d *Decoder) Pending() int {
	return len(d.carry)
}

// decodeLine maps one complete line to at most one event.
func (d *Decoder) decodeLine(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(DataPrefix)) {
		return Event{}, false
	}
	payload := bytes.TrimSpace(line[len(DataPrefix):])

	if string(payload) == DoneSentinel {
		d.done = true
		return End(), true
	}

	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		d.malformed++
		return Event{}, false
	}

	switch {
	case f.Fallback:
		return Fallback(), true
	case f.Error != "":
		ev := Error(f.Error, f.Content)
		ev.Source = f.Source
		return ev, true
	case f.Content != "":
		ev := Content(f.Content)
		ev.Source = f.Source
		return ev, true
	default:
		return Event{}, false
	}
}
