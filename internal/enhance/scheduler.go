// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package enhance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/bridgeai/internal/connectivity"
	"github.com/jeranaias/bridgeai/internal/model"
	"github.com/jeranaias/bridgeai/internal/session"
	"github.com/jeranaias/bridgeai/internal/util"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Transcript is the message store the scheduler reads and merges into.
// *model.Transcript implements it.
type Transcript interface {
	Get(id string) (model.Message, bool)
	Messages() []model.Message
	Last() (model.Message, bool)
	PrecedingUserQuery(id string) (string, bool)
	Enhance(id, enhanced string) error
}

// Runner performs one chat exchange. *session.Responder implements it.
type Runner interface {
	Run(ctx context.Context, req session.Request, hooks session.Hooks) session.Result
}

// =============================================================================
// STATE AND NOTIFICATIONS
// =============================================================================

// State is where a message is in the enhancement lifecycle.
type State int

const (
	StateIdle State = iota
	StateQueued
	StateEnhancing
	StateEnhanced
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateEnhancing:
		return "enhancing"
	case StateEnhanced:
		return "enhanced"
	default:
		return "unknown"
	}
}

// NotificationKind says what happened to a message.
type NotificationKind int

const (
	KindStarted NotificationKind = iota
	KindEnhanced
	KindFailed
	KindSkipped
)

// String returns the kind name.
func (k NotificationKind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindEnhanced:
		return "enhanced"
	case KindFailed:
		return "failed"
	case KindSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Notification reports progress on one message.
type Notification struct {
	MessageID string
	Kind      NotificationKind
	Err       error
	Duration  time.Duration
}

// TrayEntry is one row of the queue tray.
type TrayEntry struct {
	MessageID string
	State     State
	Answer    string // preview of the offline answer
	Question  string // preview of the question that produced it
}

// trayPreviewLen is the rune length of tray previews.
const trayPreviewLen = 60

// BatchReport summarizes a RunBatch call.
type BatchReport struct {
	Enhanced []string
	Failed   map[string]error
	Skipped  []string

	// Remaining lists the ids that were not attempted because the client
	// went offline or the batch was canceled.
	Remaining []string
	Stopped   bool
}

// Attempted returns how many ids were actually re-run.
func (r BatchReport) Attempted() int {
	return len(r.Enhanced) + len(r.Failed)
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler owns the enhancement queue of one transcript.
type Scheduler struct {
	transcript Transcript
	runner     Runner
	monitor    connectivity.Monitor
	sessionID  func() string

	// mu guards every field below it.
	mu         sync.Mutex
	queue      []string // FIFO order of the queued set
	queued     map[string]bool
	inFlight   map[string]time.Time
	generating bool
	settings   Settings
	delay      time.Duration
	batches    map[int]context.CancelFunc
	nextBatch  int

	// batchMu serializes batches.
	batchMu sync.Mutex

	notifyChan chan Notification
	wg         sync.WaitGroup
}

// NewScheduler creates a scheduler with default settings. sessionID is read
// for every re-run so a session reset is picked up.
func NewScheduler(t Transcript, r Runner, m connectivity.Monitor, sessionID func() string) *Scheduler {
	return &Scheduler{
		transcript: t,
		runner:     r,
		monitor:    m,
		sessionID:  sessionID,
		queued:     make(map[string]bool),
		inFlight:   make(map[string]time.Time),
		settings:   DefaultSettings(),
		delay:      DefaultDelay,
		batches:    make(map[int]context.CancelFunc),
		notifyChan: make(chan Notification, 100),
	}
}

// WithDelay sets the pause between two re-runs of a batch.
func (s *Scheduler) WithDelay(d time.Duration) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d >= 0 {
		s.delay = d
	}
	return s
}

// SetSettings replaces the trigger settings.
func (s *Scheduler) SetSettings(settings Settings) {
	s.mu.Lock()
	s.settings = settings.Normalize()
	s.mu.Unlock()
}

// Settings returns the current trigger settings.
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetGenerating marks whether a foreground generation is running. Automatic
// triggers and immediate processing are suppressed while it is.
func (s *Scheduler) SetGenerating(generating bool) {
	s.mu.Lock()
	s.generating = generating
	s.mu.Unlock()
}

// Generating reports whether a foreground generation is running.
func (s *Scheduler) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// Notifications returns the channel of progress notifications.
func (s *Scheduler) Notifications() <-chan Notification {
	return s.notifyChan
}

// Wait blocks until background batches started by Enqueue have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// =============================================================================
// QUEUE OPERATIONS
// =============================================================================

// Enqueue adds id to the queue. It returns false when the id is already
// queued or in flight, or when the message cannot be enhanced. When the
// client is online and idle the id is processed right away on a background
// goroutine; Wait blocks until it is done.
func (s *Scheduler) Enqueue(ctx context.Context, id string) bool {
	msg, ok := s.transcript.Get(id)
	if !ok || !msg.Enhanceable() {
		return false
	}

	s.mu.Lock()
	if !s.addLocked(id) {
		s.mu.Unlock()
		return false
	}
	start := !s.generating
	s.mu.Unlock()

	log.Printf("ENHANCE_QUEUED | id=%s", id)

	if start && s.monitor.Online() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RunBatch(ctx, []string{id})
		}()
	}
	return true
}

// Dequeue removes a queued id. It returns false when the id is not queued,
// including when it is already in flight.
func (s *Scheduler) Dequeue(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeLocked(id) {
		return false
	}
	log.Printf("ENHANCE_DEQUEUED | id=%s", id)
	return true
}

// Toggle queues an idle message or dequeues a queued one. It returns whether
// the id is queued (or being processed) afterwards.
func (s *Scheduler) Toggle(ctx context.Context, id string) bool {
	switch s.State(id) {
	case StateQueued:
		s.Dequeue(id)
		return false
	case StateEnhancing:
		return true
	default:
		return s.Enqueue(ctx, id)
	}
}

// Reset empties the queue and cancels running batches. In-flight items stop
// at their next check point and leave their messages untouched.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.queued = make(map[string]bool)
	for _, cancel := range s.batches {
		cancel()
	}
	log.Printf("ENHANCE_RESET | canceled_batches=%d", len(s.batches))
}

// addLocked appends id to the queued set unless it is queued or in flight.
func (s *Scheduler) addLocked(id string) bool {
	if s.queued[id] {
		return false
	}
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.queued[id] = true
	s.queue = append(s.queue, id)
	return true
}

func (s *Scheduler) removeLocked(id string) bool {
	if !s.queued[id] {
		return false
	}
	delete(s.queued, id)
	for i, q := range s.queue {
		if q == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	return true
}

// tryLock atomically moves id from the queued set into the in-flight set.
// It fails when the id is already in flight or is no longer queued.
func (s *Scheduler) tryLock(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return errInFlight
	}
	if !s.removeLocked(id) {
		return ErrDequeued
	}
	s.inFlight[id] = time.Now()
	return nil
}

func (s *Scheduler) unlock(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// =============================================================================
// INSPECTION
// =============================================================================

// State returns the lifecycle state of a message.
func (s *Scheduler) State(id string) State {
	s.mu.Lock()
	_, busy := s.inFlight[id]
	queued := s.queued[id]
	s.mu.Unlock()

	switch {
	case busy:
		return StateEnhancing
	case queued:
		return StateQueued
	}
	if msg, ok := s.transcript.Get(id); ok && msg.IsEnhanced {
		return StateEnhanced
	}
	return StateIdle
}

// Queued returns the queued ids in FIFO order.
func (s *Scheduler) Queued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queue...)
}

// InFlight returns the ids being re-run.
func (s *Scheduler) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.inFlight))
	for id := range s.inFlight {
		ids = append(ids, id)
	}
	return ids
}

// Tray lists in-flight and queued messages with previews, in-flight first.
func (s *Scheduler) Tray() []TrayEntry {
	s.mu.Lock()
	ids := make([]string, 0, len(s.inFlight)+len(s.queue))
	for id := range s.inFlight {
		ids = append(ids, id)
	}
	ids = append(ids, s.queue...)
	s.mu.Unlock()

	entries := make([]TrayEntry, 0, len(ids))
	for _, id := range ids {
		msg, ok := s.transcript.Get(id)
		if !ok {
			continue
		}
		q, _ := s.transcript.PrecedingUserQuery(id)
		entries = append(entries, TrayEntry{
			MessageID: id,
			State:     s.State(id),
			Answer:    msg.Preview(trayPreviewLen),
			Question:  util.Preview(q, trayPreviewLen),
		})
	}
	return entries
}

// =============================================================================
// BATCH PROCESSING
// =============================================================================

// RunBatch re-runs ids one at a time and blocks until done. Only one batch
// runs at a time; a second caller waits for the first. The batch stops when
// the client goes offline, leaving the remaining ids where they were.
func (s *Scheduler) RunBatch(ctx context.Context, ids []string) BatchReport {
	report := BatchReport{Failed: make(map[string]error)}
	if len(ids) == 0 {
		return report
	}

	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	batchID := s.nextBatch
	s.nextBatch++
	s.batches[batchID] = cancel
	delay := s.delay
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.batches, batchID)
		s.mu.Unlock()
	}()

	log.Printf("ENHANCE_BATCH_START | count=%d", len(ids))
	start := time.Now()
	ran := false

	for i, id := range ids {
		if ran && delay > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				report.Remaining = ids[i:]
				report.Stopped = true
				break
			}
		}
		if ctx.Err() != nil {
			report.Remaining = ids[i:]
			report.Stopped = true
			break
		}
		if !s.monitor.Online() {
			log.Printf("ENHANCE_BATCH_STOPPED | reason=offline remaining=%d", len(ids)-i)
			report.Remaining = ids[i:]
			report.Stopped = true
			break
		}

		attempted, err := s.processOne(ctx, id)
		switch {
		case !attempted:
			report.Skipped = append(report.Skipped, id)
			continue
		case err != nil:
			report.Failed[id] = err
		default:
			report.Enhanced = append(report.Enhanced, id)
		}
		ran = true
	}

	log.Printf("ENHANCE_BATCH_DONE | enhanced=%d failed=%d skipped=%d remaining=%d duration=%v",
		len(report.Enhanced), len(report.Failed), len(report.Skipped), len(report.Remaining), time.Since(start))
	return report
}

// processOne re-runs a single message. attempted is false when the id was
// skipped without running anything.
func (s *Scheduler) processOne(ctx context.Context, id string) (attempted bool, err error) {
	if err := s.tryLock(id); err != nil {
		if errors.Is(err, errInFlight) {
			log.Printf("ENHANCE_SKIPPED | id=%s reason=in_flight", id)
			return false, nil
		}
		log.Printf("ENHANCE_SKIPPED | id=%s reason=dequeued", id)
		s.notify(Notification{MessageID: id, Kind: KindSkipped, Err: err})
		return false, nil
	}
	defer s.unlock(id)

	msg, ok := s.transcript.Get(id)
	if !ok {
		s.notify(Notification{MessageID: id, Kind: KindSkipped, Err: ErrMessageGone})
		return false, nil
	}
	if !msg.Enhanceable() {
		log.Printf("ENHANCE_SKIPPED | id=%s reason=not_eligible", id)
		s.notify(Notification{MessageID: id, Kind: KindSkipped})
		return false, nil
	}

	start := time.Now()
	fail := func(err error) (bool, error) {
		log.Printf("ENHANCE_FAILED | id=%s error=%v", id, err)
		s.notify(Notification{MessageID: id, Kind: KindFailed, Err: err, Duration: time.Since(start)})
		return true, err
	}

	query, ok := s.transcript.PrecedingUserQuery(id)
	if !ok {
		return fail(ErrNoQuery)
	}

	log.Printf("ENHANCE_START | id=%s", id)
	s.notify(Notification{MessageID: id, Kind: KindStarted})

	res := s.runner.Run(ctx, session.Request{
		SessionID: s.sessionID(),
		Query:     query,
		Online:    true,
	}, session.Hooks{})

	switch {
	case res.Outcome == session.OutcomeCanceled:
		return fail(context.Canceled)
	case res.Outcome == session.OutcomeFailed:
		return fail(res.Err)
	case res.Fallback, res.Source == string(model.SourceOffline):
		return fail(ErrFallback)
	case strings.TrimSpace(res.Text) == "":
		return fail(ErrEmptyResponse)
	}

	if err := s.transcript.Enhance(id, res.Text); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			err = ErrMessageGone
		}
		return fail(fmt.Errorf("merge enhancement: %w", err))
	}

	d := time.Since(start)
	log.Printf("ENHANCE_DONE | id=%s chars=%d duration=%v", id, len(res.Text), d)
	s.notify(Notification{MessageID: id, Kind: KindEnhanced, Duration: d})
	return true, nil
}

// =============================================================================
// AUTOMATIC TRIGGERS
// =============================================================================

// HandleConnectivity reacts to a connectivity change. On an offline to
// online flip it runs the manually queued ids first, then, with auto-enhance
// on, the most recent eligible answers.
func (s *Scheduler) HandleConnectivity(ctx context.Context, wasOnline, isOnline bool) BatchReport {
	if wasOnline || !isOnline {
		return BatchReport{Failed: make(map[string]error)}
	}

	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		log.Printf("ENHANCE_TRIGGER_SUPPRESSED | trigger=reconnect reason=generating")
		return BatchReport{Failed: make(map[string]error)}
	}
	ids := append([]string(nil), s.queue...)
	settings := s.settings
	s.mu.Unlock()

	if settings.AutoEnhance {
		ids = append(ids, s.selectRecent(settings)...)
	}
	log.Printf("ENHANCE_TRIGGER | trigger=reconnect count=%d", len(ids))
	return s.RunBatch(ctx, ids)
}

// selectRecent queues the eligible answers picked by the reconnect scan and
// returns them oldest first.
func (s *Scheduler) selectRecent(settings Settings) []string {
	messages := s.transcript.Messages()

	s.mu.Lock()
	defer s.mu.Unlock()

	var picked []string
	for i := len(messages) - 1; i >= 0; i-- {
		if settings.EnhanceRecent && len(picked) >= settings.MaxMessages {
			break
		}
		msg := messages[i]
		if !msg.Enhanceable() || s.queued[msg.ID] {
			continue
		}
		if _, busy := s.inFlight[msg.ID]; busy {
			continue
		}
		picked = append(picked, msg.ID)
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	for _, id := range picked {
		s.addLocked(id)
	}
	return picked
}

// HandleGenerationComplete re-runs the newest answer when it came from the
// offline model while the client is online.
func (s *Scheduler) HandleGenerationComplete(ctx context.Context) BatchReport {
	empty := BatchReport{Failed: make(map[string]error)}

	s.mu.Lock()
	generating, settings := s.generating, s.settings
	s.mu.Unlock()
	if generating || !settings.AutoEnhance || !s.monitor.Online() {
		return empty
	}

	last, ok := s.transcript.Last()
	if !ok || !last.Enhanceable() {
		return empty
	}

	s.mu.Lock()
	added := s.addLocked(last.ID)
	s.mu.Unlock()
	if !added {
		return empty
	}

	log.Printf("ENHANCE_TRIGGER | trigger=generation_complete id=%s", last.ID)
	return s.RunBatch(ctx, []string{last.ID})
}

// RunQueued processes the manually queued ids when the client is online and
// idle. Ids queued during a generation wait for this call.
func (s *Scheduler) RunQueued(ctx context.Context) BatchReport {
	s.mu.Lock()
	ids := append([]string(nil), s.queue...)
	generating := s.generating
	s.mu.Unlock()

	if generating || len(ids) == 0 || !s.monitor.Online() {
		return BatchReport{Failed: make(map[string]error)}
	}
	return s.RunBatch(ctx, ids)
}

// =============================================================================
// HELPERS
// =============================================================================

// notify sends a notification without blocking.
func (s *Scheduler) notify(n Notification) {
	select {
	case s.notifyChan <- n:
	default:
		log.Printf("Warning: enhancement notification channel full, dropping %s notification for %s", n.Kind, n.MessageID)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
