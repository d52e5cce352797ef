// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/bridgeai/internal/connectivity"
	"github.com/jeranaias/bridgeai/internal/enhance"
	"github.com/jeranaias/bridgeai/internal/model"
	"github.com/jeranaias/bridgeai/internal/offline"
	"github.com/jeranaias/bridgeai/internal/session"
	"github.com/jeranaias/bridgeai/internal/transport"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

// FailureNotice replaces the text of an answer that failed before any
// content arrived.
const FailureNotice = "Error: Could not reach server."

// ErrBusy is returned by Send while another answer is still streaming.
var ErrBusy = errors.New("a response is already being generated")

// =============================================================================
// UPDATES
// =============================================================================

// UpdateKind says what changed in the conversation.
type UpdateKind int

const (
	UpdateContent UpdateKind = iota
	UpdateFallback
	UpdateDone
	UpdateCleared
	UpdateConnectivity
)

// Update is pushed to the listener registered with OnUpdate.
type Update struct {
	Kind      UpdateKind
	MessageID string
	Text      string // chunk for UpdateContent
	Online    bool   // effective status for UpdateConnectivity
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Options configures a Controller.
type Options struct {
	// Streamer talks to the gateway. *transport.Client implements it.
	Streamer session.Streamer

	// Clearer drops old sessions on the gateway. May be nil.
	Clearer session.Clearer

	// Monitor reports connectivity. Defaults to always online.
	Monitor connectivity.Monitor

	// Runner overrides the ResponseSession built from Streamer.
	Runner enhance.Runner

	PreferOnline  bool
	ForcedOffline bool
	FlushInterval time.Duration
	EnhanceDelay  time.Duration
	Settings      enhance.Settings
}

// Controller is the conversation front end. It owns the transcript and
// ties the response session, the enhancement scheduler and the connectivity
// gate together.
type Controller struct {
	transcript *model.Transcript
	runner     enhance.Runner
	scheduler  *enhance.Scheduler
	sessions   *session.Manager
	gate       *offline.Gate
	cancels    *session.CancelManager

	mu           sync.Mutex
	generating   bool
	preferOnline bool
	listener     func(Update)

	// bgCtx outlives single calls; Close cancels it.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

// New creates a controller with a fresh session.
func New(opts Options) *Controller {
	monitor := opts.Monitor
	if monitor == nil {
		monitor = connectivity.NewStatic(true)
	}

	runner := opts.Runner
	if runner == nil {
		responder := session.NewResponder(opts.Streamer)
		if opts.FlushInterval > 0 {
			responder.WithFlushInterval(opts.FlushInterval)
		}
		runner = responder
	}

	c := &Controller{
		transcript:   model.NewTranscript(),
		runner:       runner,
		sessions:     session.NewManager(opts.Clearer),
		gate:         offline.NewGate(monitor, opts.ForcedOffline),
		cancels:      session.NewCancelManager(),
		preferOnline: opts.PreferOnline,
	}
	c.bgCtx, c.bgCancel = context.WithCancel(context.Background())

	c.scheduler = enhance.NewScheduler(c.transcript, c.runner, c.gate, c.sessions.SessionID)
	if opts.EnhanceDelay > 0 {
		c.scheduler.WithDelay(opts.EnhanceDelay)
	}
	if opts.Settings != (enhance.Settings{}) {
		c.scheduler.SetSettings(opts.Settings)
	}

	c.gate.OnChange(c.OnConnectivity)
	return c
}

// OnUpdate registers the single listener for conversation updates. It is
// called from the goroutine that produced the change and must not block.
func (c *Controller) OnUpdate(fn func(Update)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

func (c *Controller) emit(u Update) {
	c.mu.Lock()
	fn := c.listener
	c.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// =============================================================================
// SENDING
// =============================================================================

// Send asks query and blocks until the answer ends. The returned message is
// the assistant answer as stored in the transcript. A canceled answer is
// not an error; a failed one returns the transport or stream error.
func (c *Controller) Send(ctx context.Context, query string) (model.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.Message{}, transport.ErrEmptyQuery
	}

	c.mu.Lock()
	if c.generating {
		c.mu.Unlock()
		return model.Message{}, ErrBusy
	}
	c.generating = true
	c.mu.Unlock()
	c.scheduler.SetGenerating(true)

	online := c.RequestOnline()
	gen := c.transcript.Generation()
	c.transcript.AddUser(query)
	msg := c.transcript.AddAssistant(model.SourceFor(online))

	runCtx, cancel := context.WithCancel(ctx)
	c.cancels.Set(cancel)

	res := c.runner.Run(runCtx, session.Request{
		SessionID: c.sessions.SessionID(),
		Query:     query,
		Online:    online,
	}, session.Hooks{
		OnContent: func(chunk string) {
			c.transcript.AppendText(msg.ID, chunk)
			c.emit(Update{Kind: UpdateContent, MessageID: msg.ID, Text: chunk})
		},
		OnFallback: func() {
			c.transcript.MarkFallback(msg.ID)
			c.emit(Update{Kind: UpdateFallback, MessageID: msg.ID})
		},
	})
	c.cancels.Clear()
	cancel()

	if res.Outcome == session.OutcomeFailed && !res.Delivered() {
		c.transcript.Fail(msg.ID, FailureNotice)
	} else {
		c.transcript.Update(msg.ID, func(m *model.Message) {
			// The gateway knows which model really answered.
			if res.Source != "" {
				m.Source = model.Source(res.Source)
			}
			m.Streaming = false
			m.Duration = res.Duration
		})
	}

	c.mu.Lock()
	c.generating = false
	c.mu.Unlock()
	c.scheduler.SetGenerating(false)

	cleared := c.transcript.Generation() != gen
	log.Printf("CHAT_DONE | id=%s outcome=%s online=%v fallback=%v cleared=%v chars=%d duration=%v",
		msg.ID, res.Outcome, online, res.Fallback, cleared, len(res.Text), res.Duration)
	c.emit(Update{Kind: UpdateDone, MessageID: msg.ID})

	// After a clear the newest message belongs to the next conversation.
	if res.Outcome == session.OutcomeCompleted && !cleared {
		c.background(func(ctx context.Context) {
			c.scheduler.HandleGenerationComplete(ctx)
			c.scheduler.RunQueued(ctx)
		})
	}

	final, ok := c.transcript.Get(msg.ID)
	if !ok {
		// Cleared while streaming.
		final = msg
	}
	return final, res.Err
}

// Cancel stops the answer being streamed. It reports whether one was.
func (c *Controller) Cancel() bool {
	return c.cancels.Cancel()
}

// Generating reports whether an answer is streaming.
func (c *Controller) Generating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generating
}

// RequestOnline reports whether the next question is sent in online mode:
// the user prefers online, the gate allows the online model and the client
// is online.
func (c *Controller) RequestOnline() bool {
	c.mu.Lock()
	prefer := c.preferOnline
	c.mu.Unlock()
	if !prefer {
		return false
	}
	if err := c.gate.CheckCloudAllowed(); err != nil {
		return false
	}
	return c.gate.Online()
}

// SetPreferOnline switches the requested mode.
func (c *Controller) SetPreferOnline(online bool) {
	c.mu.Lock()
	c.preferOnline = online
	c.mu.Unlock()
}

// PreferOnline returns the requested mode.
func (c *Controller) PreferOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preferOnline
}

// =============================================================================
// CONVERSATION
// =============================================================================

// Clear cancels any answer, drops the transcript and the enhancement
// queue, and starts a new session. The old session is cleared on the
// gateway in the background. It returns the new session id.
func (c *Controller) Clear(ctx context.Context) string {
	c.Cancel()
	c.scheduler.Reset()
	c.transcript.Clear()
	id := c.sessions.Reset(ctx)
	log.Printf("CHAT_CLEARED | session=%s", id)
	c.emit(Update{Kind: UpdateCleared})
	return id
}

// Messages returns a snapshot of the transcript.
func (c *Controller) Messages() []model.Message {
	return c.transcript.Messages()
}

// Message returns one message by id.
func (c *Controller) Message(id string) (model.Message, bool) {
	return c.transcript.Get(id)
}

// SessionID returns the current session id.
func (c *Controller) SessionID() string {
	return c.sessions.SessionID()
}

// SessionDuration returns how long the current session has run.
func (c *Controller) SessionDuration() time.Duration {
	return c.sessions.Duration()
}

// =============================================================================
// ENHANCEMENT
// =============================================================================

// ToggleEnhance queues an offline answer for an online re-run, or removes
// it from the queue. It returns whether the message is queued or being
// enhanced afterwards.
func (c *Controller) ToggleEnhance(id string) bool {
	return c.scheduler.Toggle(c.bgCtx, id)
}

// ToggleView switches an enhanced answer between its two versions.
func (c *Controller) ToggleView(id string) bool {
	return c.transcript.ToggleView(id)
}

// EnhanceState returns where a message is in the enhancement lifecycle.
func (c *Controller) EnhanceState(id string) enhance.State {
	if msg, ok := c.transcript.Get(id); ok && msg.IsEnhanced {
		return enhance.StateEnhanced
	}
	return c.scheduler.State(id)
}

// Tray lists queued and in-flight enhancements.
func (c *Controller) Tray() []enhance.TrayEntry {
	return c.scheduler.Tray()
}

// Notifications delivers enhancement progress.
func (c *Controller) Notifications() <-chan enhance.Notification {
	return c.scheduler.Notifications()
}

// Settings returns the active enhancement settings.
func (c *Controller) Settings() enhance.Settings {
	return c.scheduler.Settings()
}

// ApplySettings replaces the enhancement settings. Values are clamped.
func (c *Controller) ApplySettings(s enhance.Settings) {
	c.scheduler.SetSettings(s)
	s = c.scheduler.Settings()
	log.Printf("ENHANCE_SETTINGS | auto=%v recent=%v max=%d", s.AutoEnhance, s.EnhanceRecent, s.MaxMessages)
}

// =============================================================================
// CONNECTIVITY
// =============================================================================

// Gate returns the connectivity gate. Feed monitor flips into it with
// Watcher.OnChange(gate.Observe).
func (c *Controller) Gate() *offline.Gate {
	return c.gate
}

// Online reports the effective connectivity.
func (c *Controller) Online() bool {
	return c.gate.Online()
}

// SetForcedOffline switches forced offline mode.
func (c *Controller) SetForcedOffline(forced bool) {
	c.gate.SetForced(forced)
}

// OnConnectivity reacts to an effective connectivity flip. Coming back
// online starts the reconnect batch in the background.
func (c *Controller) OnConnectivity(wasOnline, isOnline bool) {
	log.Printf("CONNECTIVITY_CHANGED | online=%v", isOnline)
	c.emit(Update{Kind: UpdateConnectivity, Online: isOnline})
	if wasOnline || !isOnline {
		return
	}
	c.background(func(ctx context.Context) {
		c.scheduler.HandleConnectivity(ctx, wasOnline, isOnline)
	})
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (c *Controller) background(fn func(ctx context.Context)) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn(c.bgCtx)
	}()
}

// Wait blocks until background work started so far has finished.
func (c *Controller) Wait() {
	c.bg.Wait()
	c.scheduler.Wait()
	c.sessions.Wait()
}

// Close cancels the current answer and all background work, then waits
// for it to stop.
func (c *Controller) Close() {
	c.Cancel()
	c.scheduler.Reset()
	c.bgCancel()
	c.Wait()
}
