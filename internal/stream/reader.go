// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
)

// readBufferSize is the size of each raw read from the underlying body.
const readBufferSize = 4 * 1024

// Reader yields the events of an io.Reader one at a time.
//
// Next returns io.EOF after EventEnd has been returned. A body that closes
// without the sentinel still ends with EventEnd once the carry-over has been
// drained. Any other read error is returned as-is after the events decoded
// before it.
type Reader struct {
	src      io.Reader
	dec      *Decoder
	buf      []byte
	pending  []Event
	finished bool
	err      error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		src: r,
		dec: NewDecoder(),
		buf: make([]byte, readBufferSize),
	}
}

// Next returns the next event.
func (r *Reader) Next() (Event, error) {
	for {
		if len(r.pending) > 0 {
			ev := r.pending[0]
			r.pending = r.pending[1:]
			if ev.Kind == EventEnd {
				r.finished = true
				r.pending = nil
			}
			return ev, nil
		}
		if r.finished {
			return Event{}, io.EOF
		}
		if r.err != nil {
			return Event{}, r.err
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = r.dec.Feed(r.buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.pending = append(r.pending, r.dec.Finish()...)
				if len(r.pending) == 0 {
					r.finished = true
				}
			} else {
				r.err = err
			}
		}
	}
}

// Malformed returns the decoder's malformed-line count so far.
func (r *Reader) Malformed() int {
	return r.dec.Malformed()
}
