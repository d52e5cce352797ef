// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Encoder writes frames in the wire format the Decoder reads. When the
// destination is an http.Flusher every frame is flushed immediately.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

// Encode writes one "data: {json}" frame.
func (e *Encoder) Encode(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "%s %s\n\n", DataPrefix, data); err != nil {
		return err
	}
	e.flush()
	return nil
}

// Fallback writes the frame announcing that the online model failed and
// the local model takes over.
func (e *Encoder) Fallback() error {
	if _, err := fmt.Fprintf(e.w, "%s %s\n\n", DataPrefix, `{"fallback":true,"content":""}`); err != nil {
		return err
	}
	e.flush()
	return nil
}

// Done writes the terminal sentinel line.
func (e *Encoder) Done() error {
	if _, err := fmt.Fprintf(e.w, "%s %s\n\n", DataPrefix, DoneSentinel); err != nil {
		return err
	}
	e.flush()
	return nil
}

func (e *Encoder) flush() {
	if e.flusher != nil {
		e.flusher.Flush()
	}
}
