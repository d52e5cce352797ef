// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/jeranaias/bridgeai/internal/stream"
	"github.com/jeranaias/bridgeai/internal/transport"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultFlushInterval is the minimum time between two sink deliveries.
	DefaultFlushInterval = 50 * time.Millisecond

	// StopAnnotation is appended to the delivered text when the user cancels.
	StopAnnotation = "\n\n[Response stopped by user]"
)

// =============================================================================
// TYPES
// =============================================================================

// Streamer starts a chat turn and returns its event-stream body.
// *transport.Client implements it.
type Streamer interface {
	Chat(ctx context.Context, req transport.ChatRequest) (io.ReadCloser, error)
}

// Request is one chat turn.
type Request struct {
	SessionID string
	Query     string
	Online    bool
}

// Hooks receive the output of a Run. Both run on the Run goroutine at points
// where no stream read is pending; they must not block or call back into the
// Responder. Either may be nil.
type Hooks struct {
	// OnContent receives each flushed chunk, in stream order.
	OnContent func(chunk string)
	// OnFallback runs once per fallback frame, after the content received
	// before it has been delivered.
	OnFallback func()
}

// Outcome is how a Run ended.
type Outcome int

const (
	// OutcomeCompleted means the stream ended normally.
	OutcomeCompleted Outcome = iota
	// OutcomeCanceled means the caller canceled; not an error.
	OutcomeCanceled
	// OutcomeFailed means the exchange could not complete; see Result.Err.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StreamError is a gateway-reported error on a stream that produced no
// content at all.
type StreamError struct {
	Message string
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return "stream error: " + e.Message
}

// Result describes a finished Run.
type Result struct {
	Outcome Outcome

	// Text is everything delivered to OnContent, including the stop annotation.
	Text string

	Fallback     bool
	Source       string   // last source reported by the gateway
	StreamErrors []string // payload-carried errors, in order
	Malformed    int      // dropped lines
	Flushes      int      // OnContent invocations
	Duration     time.Duration

	// Err is a *transport.TransportError when the exchange failed on the
	// wire, or a *StreamError when the gateway reported an error and no
	// content was produced. Nil for completed and canceled runs.
	Err error
}

// Delivered reports whether any answer text reached the sink.
func (r Result) Delivered() bool {
	return strings.TrimSuffix(r.Text, StopAnnotation) != ""
}

// =============================================================================
// RESPONDER
// =============================================================================

// Responder runs request/response exchanges against a Streamer.
// It holds no per-run state and may be shared.
type Responder struct {
	streamer      Streamer
	flushInterval time.Duration
}

// NewResponder creates a Responder with the default flush interval.
func NewResponder(s Streamer) *Responder {
	return &Responder{
		streamer:      s,
		flushInterval: DefaultFlushInterval,
	}
}

// WithFlushInterval sets the minimum time between sink deliveries.
func (r *Responder) WithFlushInterval(d time.Duration) *Responder {
	if d > 0 {
		r.flushInterval = d
	}
	return r
}

// FlushInterval returns the configured flush interval.
func (r *Responder) FlushInterval() time.Duration {
	return r.flushInterval
}

// readItem is one step of the background stream reader.
type readItem struct {
	event     stream.Event
	err       error
	malformed int
}

// run holds the state of one Run.
type run struct {
	hooks  Hooks
	buf    *flushBuffer
	text   strings.Builder
	result Result
}

func (x *run) deliver(chunk string) {
	if chunk == "" {
		return
	}
	x.text.WriteString(chunk)
	x.result.Flushes++
	if x.hooks.OnContent != nil {
		x.hooks.OnContent(chunk)
	}
}

func (x *run) drain() {
	if x.buf.Pending() > 0 {
		x.deliver(x.buf.Take(time.Now()))
	}
}

// Run performs one exchange and blocks until it ends. Canceling ctx stops
// the exchange at the next check point; the content buffered so far is
// delivered followed by StopAnnotation.
func (r *Responder) Run(ctx context.Context, req Request, hooks Hooks) Result {
	start := time.Now()
	x := &run{
		hooks: hooks,
		buf:   newFlushBuffer(r.flushInterval, start),
	}
	finish := func(outcome Outcome, err error) Result {
		x.result.Outcome = outcome
		x.result.Err = err
		x.result.Text = x.text.String()
		x.result.Duration = time.Since(start)
		return x.result
	}
	canceled := func() Result {
		x.drain()
		x.deliver(StopAnnotation)
		return finish(OutcomeCanceled, nil)
	}

	if ctx.Err() != nil {
		return canceled()
	}

	body, err := r.streamer.Chat(ctx, transport.ChatRequest{
		SessionID: req.SessionID,
		Query:     req.Query,
		Online:    req.Online,
	})
	if err != nil {
		if ctx.Err() != nil {
			return canceled()
		}
		log.Printf("STREAM_ERROR | stage=request online=%v error=%v", req.Online, err)
		return finish(OutcomeFailed, err)
	}
	defer body.Close()

	items := make(chan readItem)
	stop := make(chan struct{})
	defer close(stop)
	go readEvents(body, items, stop)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return canceled()
		}

		select {
		case <-ctx.Done():
			return canceled()

		case now := <-ticker.C:
			if x.buf.Due(now) {
				x.deliver(x.buf.Take(now))
			}

		case it, ok := <-items:
			if !ok {
				x.drain()
				return x.complete(finish)
			}
			x.result.Malformed = it.malformed

			if it.err != nil {
				if ctx.Err() != nil {
					return canceled()
				}
				x.drain()
				log.Printf("STREAM_ERROR | stage=read delivered=%d error=%v", x.text.Len(), it.err)
				return finish(OutcomeFailed, &transport.TransportError{
					Op:  "stream",
					Err: fmt.Errorf("read stream: %w", it.err),
				})
			}

			switch it.event.Kind {
			case stream.EventContent:
				if it.event.Source != "" {
					x.result.Source = it.event.Source
				}
				x.buf.Write(it.event.Text)
				if now := time.Now(); x.buf.Due(now) {
					x.deliver(x.buf.Take(now))
				}

			case stream.EventFallback:
				x.drain()
				x.result.Fallback = true
				x.result.Source = "offline"
				log.Printf("STREAM_FALLBACK | session=%s", req.SessionID)
				if hooks.OnFallback != nil {
					hooks.OnFallback()
				}

			case stream.EventError:
				x.result.StreamErrors = append(x.result.StreamErrors, it.event.Message)
				x.buf.Write(it.event.Text)
				x.drain()

			case stream.EventEnd:
				x.drain()
				return x.complete(finish)
			}
		}
	}
}

// complete ends a run whose stream finished. A stream that only ever
// reported errors is a failure.
func (x *run) complete(finish func(Outcome, error) Result) Result {
	if x.text.Len() == 0 && len(x.result.StreamErrors) > 0 {
		return finish(OutcomeFailed, &StreamError{Message: x.result.StreamErrors[0]})
	}
	return finish(OutcomeCompleted, nil)
}

// readEvents decodes body into items until the stream ends, fails, or stop
// is closed. Closing the body unblocks a pending read.
func readEvents(body io.Reader, items chan<- readItem, stop <-chan struct{}) {
	defer close(items)
	reader := stream.NewReader(body)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		select {
		case items <- readItem{event: ev, err: err, malformed: reader.Malformed()}:
		case <-stop:
			return
		}
		if err != nil || ev.Kind == stream.EventEnd {
			return
		}
	}
}
