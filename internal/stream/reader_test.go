// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r *Reader) ([]Event, error) {
	t.Helper()
	var events []Event
	for {
		ev, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, err
		}
		events = append(events, ev)
	}
}

func TestReader_OneByteReads(t *testing.T) {
	body := "data: {\"content\":\"Hel\"}\ndata: {\"content\":\"lo\"}\ndata: [DONE]\n"
	r := NewReader(iotest.OneByteReader(strings.NewReader(body)))

	events, err := collect(t, r)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Hel", events[0].Text)
	assert.Equal(t, "lo", events[1].Text)
	assert.Equal(t, EventEnd, events[2].Kind)

	// Stays at EOF.
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_EOFWithoutSentinelStillEnds(t *testing.T) {
	r := NewReader(strings.NewReader("data: {\"content\":\"a\"}\ndata: {\"content\":\"b\"}"))

	events, err := collect(t, r)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "b", events[1].Text)
	assert.Equal(t, EventEnd, events[2].Kind)
}

func TestReader_ReadErrorAfterEvents(t *testing.T) {
	boom := errors.New("connection reset")
	src := io.MultiReader(
		strings.NewReader("data: {\"content\":\"partial\"}\n"),
		iotest.ErrReader(boom),
	)
	r := NewReader(src)

	events, err := collect(t, r)
	require.ErrorIs(t, err, boom)
	require.Len(t, events, 1)
	assert.Equal(t, "partial", events[0].Text)
}

func TestReader_MalformedCount(t *testing.T) {
	r := NewReader(strings.NewReader("data: nope\ndata: {\"content\":\"ok\"}\ndata: [DONE]\n"))
	events, err := collect(t, r)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 1, r.Malformed())
}

func TestEncoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(Frame{Content: "hi", Source: "online"}))
	require.NoError(t, enc.Fallback())
	require.NoError(t, enc.Encode(Frame{Error: "local failed", Content: "Local model failed"}))
	require.NoError(t, enc.Done())

	events, err := collect(t, NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, Event{Kind: EventContent, Text: "hi", Source: "online"}, events[0])
	assert.Equal(t, EventFallback, events[1].Kind)
	assert.Equal(t, Event{Kind: EventError, Message: "local failed", Text: "Local model failed"}, events[2])
	assert.Equal(t, EventEnd, events[3].Kind)
}

func TestEncoder_FlushesHTTPResponses(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewEncoder(rec)
	require.NoError(t, enc.Encode(Frame{Content: "x"}))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "data: {\"content\":\"x\"}\n\n", rec.Body.String())
}

func TestEncoder_FallbackFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Fallback())
	assert.Equal(t, "data: {\"fallback\":true,\"content\":\"\"}\n\n", buf.String())
}
