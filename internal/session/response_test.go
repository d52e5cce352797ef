// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/bridgeai/internal/transport"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeStreamer returns a canned body or error and records requests.
type fakeStreamer struct {
	mu       sync.Mutex
	body     func() io.ReadCloser
	err      error
	requests []transport.ChatRequest
}

func (f *fakeStreamer) Chat(ctx context.Context, req transport.ChatRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.body(), nil
}

func staticBody(s string) func() io.ReadCloser {
	return func() io.ReadCloser { return io.NopCloser(strings.NewReader(s)) }
}

// recorder captures hook calls in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
	text  strings.Builder
	seen  chan string
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan string, 100)}
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnContent: func(chunk string) {
			r.mu.Lock()
			r.calls = append(r.calls, "content:"+chunk)
			r.text.WriteString(chunk)
			r.mu.Unlock()
			r.seen <- chunk
		},
		OnFallback: func() {
			r.mu.Lock()
			r.calls = append(r.calls, "fallback")
			r.mu.Unlock()
		},
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestRun_HelloSingleFragment(t *testing.T) {
	s := &fakeStreamer{body: staticBody("data: {\"content\":\"Hel\"}\ndata: {\"content\":\"lo\"}\ndata: [DONE]\n")}
	rec := newRecorder()

	res := NewResponder(s).Run(context.Background(), Request{SessionID: "s1", Query: "hi", Online: true}, rec.hooks())

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, "Hello", res.Text)
	assert.Equal(t, "Hello", rec.text.String())
	require.Len(t, s.requests, 1)
	assert.Equal(t, transport.ChatRequest{SessionID: "s1", Query: "hi", Online: true}, s.requests[0])
}

func TestRun_FallbackKeepsOnlineContent(t *testing.T) {
	body := "data: {\"content\":\"online part \",\"source\":\"online\"}\n" +
		"data: {\"fallback\":true,\"content\":\"\"}\n" +
		"data: {\"content\":\"offline part\",\"source\":\"offline\"}\n" +
		"data: [DONE]\n"
	s := &fakeStreamer{body: staticBody(body)}
	rec := newRecorder()

	res := NewResponder(s).WithFlushInterval(time.Hour).Run(context.Background(), Request{SessionID: "s", Query: "q", Online: true}, rec.hooks())

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.True(t, res.Fallback)
	assert.Equal(t, "offline", res.Source)
	assert.Equal(t, "online part offline part", res.Text)
	assert.Equal(t, []string{"content:online part ", "fallback", "content:offline part"}, rec.calls)
}

func TestRun_CancelMidStreamKeepsDeliveredText(t *testing.T) {
	pr, pw := io.Pipe()
	s := &fakeStreamer{body: func() io.ReadCloser { return pr }}
	rec := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		io.WriteString(pw, "data: {\"content\":\"abc\"}\n")
		<-rec.seen // delivered by the flush ticker
		io.WriteString(pw, "data: {\"content\":\"def\"}\n")
		cancel()
	}()

	res := NewResponder(s).WithFlushInterval(10*time.Millisecond).Run(ctx, Request{SessionID: "s", Query: "q"}, rec.hooks())
	pw.Close()

	assert.Equal(t, OutcomeCanceled, res.Outcome)
	assert.NoError(t, res.Err)
	assert.True(t, strings.HasPrefix(res.Text, "abc"), "text %q lost delivered bytes", res.Text)
	assert.True(t, strings.HasSuffix(res.Text, StopAnnotation))
	assert.Equal(t, res.Text, rec.text.String())
}

func TestRun_CancelFlushesBufferedContent(t *testing.T) {
	pr, pw := io.Pipe()
	s := &fakeStreamer{body: func() io.ReadCloser { return pr }}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		io.WriteString(pw, "data: {\"content\":\"buffered\"}\n")
		// Give the run loop time to buffer the chunk.
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	res := NewResponder(s).WithFlushInterval(time.Hour).Run(ctx, Request{SessionID: "s", Query: "q"}, Hooks{})
	pw.Close()

	assert.Equal(t, OutcomeCanceled, res.Outcome)
	assert.Equal(t, "buffered"+StopAnnotation, res.Text)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	s := &fakeStreamer{body: staticBody("data: [DONE]\n")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewResponder(s).Run(ctx, Request{SessionID: "s", Query: "q"}, Hooks{})

	assert.Equal(t, OutcomeCanceled, res.Outcome)
	assert.Equal(t, StopAnnotation, res.Text)
	assert.False(t, res.Delivered())
	assert.Empty(t, s.requests)
}

func TestRun_TransportErrorBeforeAnyByte(t *testing.T) {
	terr := &transport.TransportError{Op: "chat", Err: errors.New("connection refused")}
	s := &fakeStreamer{err: terr}
	rec := newRecorder()

	res := NewResponder(s).Run(context.Background(), Request{SessionID: "s", Query: "q"}, rec.hooks())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, terr)
	assert.Empty(t, res.Text)
	assert.Empty(t, rec.calls)
}

type failingBody struct {
	r   io.Reader
	err error
}

func (f *failingBody) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, f.err
	}
	return n, err
}

func (f *failingBody) Close() error { return nil }

func TestRun_ReadFailureKeepsPartialContent(t *testing.T) {
	boom := errors.New("connection reset by peer")
	s := &fakeStreamer{body: func() io.ReadCloser {
		return &failingBody{r: strings.NewReader("data: {\"content\":\"partial\"}\n"), err: boom}
	}}

	res := NewResponder(s).Run(context.Background(), Request{SessionID: "s", Query: "q"}, Hooks{})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "partial", res.Text)
	assert.True(t, res.Delivered())
	assert.True(t, transport.IsTransportError(res.Err))
	assert.ErrorIs(t, res.Err, boom)
}

func TestRun_StreamErrorForwardsContent(t *testing.T) {
	s := &fakeStreamer{body: staticBody(
		"data: {\"fallback\":true}\n" +
			"data: {\"error\":\"local model unavailable\",\"content\":\"Local model failed\"}\n" +
			"data: [DONE]\n")}

	res := NewResponder(s).Run(context.Background(), Request{SessionID: "s", Query: "q", Online: true}, Hooks{})

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, "Local model failed", res.Text)
	assert.Equal(t, []string{"local model unavailable"}, res.StreamErrors)
}

func TestRun_StreamErrorWithoutContentFails(t *testing.T) {
	s := &fakeStreamer{body: staticBody("data: {\"error\":\"no model\"}\ndata: [DONE]\n")}

	res := NewResponder(s).Run(context.Background(), Request{SessionID: "s", Query: "q"}, Hooks{})

	assert.Equal(t, OutcomeFailed, res.Outcome)
	var se *StreamError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, "no model", se.Message)
}

func TestRun_PacesDelivery(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("data: {\"content\":\"x\"}\n")
	}
	sb.WriteString("data: not-json\n")
	sb.WriteString("data: [DONE]\n")
	s := &fakeStreamer{body: staticBody(sb.String())}

	res := NewResponder(s).WithFlushInterval(time.Hour).Run(context.Background(), Request{SessionID: "s", Query: "q"}, Hooks{})

	assert.Equal(t, strings.Repeat("x", 50), res.Text)
	assert.Equal(t, 1, res.Flushes, "all content should leave in the end-of-stream flush")
	assert.Equal(t, 1, res.Malformed)
}

func TestRun_IntervalFlushWithoutNewEvents(t *testing.T) {
	pr, pw := io.Pipe()
	s := &fakeStreamer{body: func() io.ReadCloser { return pr }}
	rec := newRecorder()

	done := make(chan Result, 1)
	go func() {
		done <- NewResponder(s).WithFlushInterval(20*time.Millisecond).Run(context.Background(), Request{SessionID: "s", Query: "q"}, rec.hooks())
	}()

	io.WriteString(pw, "data: {\"content\":\"early\"}\n")
	select {
	case chunk := <-rec.seen:
		assert.Equal(t, "early", chunk)
	case <-time.After(2 * time.Second):
		t.Fatal("buffered content was not flushed by the interval")
	}

	io.WriteString(pw, "data: [DONE]\n")
	pw.Close()
	res := <-done
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "early", res.Text)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "completed", OutcomeCompleted.String())
	assert.Equal(t, "canceled", OutcomeCanceled.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "unknown", Outcome(9).String())
}
