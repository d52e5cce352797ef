// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	robcron "github.com/robfig/cron/v3"
)

// DefaultSchedule is how often the Watcher probes.
const DefaultSchedule = "@every 10s"

// Source produces probe results. *Prober implements it.
type Source interface {
	Probe(ctx context.Context) Status
	Refresh(ctx context.Context) Status
}

// Listener is called on every online/offline flip with the previous and the
// new status. Listeners run on the probing goroutine, one flip at a time.
type Listener func(prev, cur Status)

// ErrWatcherRunning is returned by Start on a running Watcher.
var ErrWatcherRunning = errors.New("connectivity watcher already running")

// Watcher probes on a cron schedule and remembers the last status. Before the
// first probe the status is offline, so a first online result is a flip.
type Watcher struct {
	source   Source
	schedule string

	mu        sync.RWMutex
	status    Status
	listeners []Listener

	checkMu sync.Mutex // one probe at a time, so flips arrive in order

	cron   *robcron.Cron
	cancel context.CancelFunc
}

// NewWatcher creates a watcher. An empty schedule means DefaultSchedule.
func NewWatcher(source Source, schedule string) *Watcher {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Watcher{source: source, schedule: schedule}
}

// OnChange registers a flip listener.
func (w *Watcher) OnChange(fn Listener) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Online implements Monitor.
func (w *Watcher) Online() bool {
	return w.Status().Online
}

// Status returns the last probe result.
func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Start probes once and then keeps probing on the schedule until Stop or
// until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	parser := robcron.NewParser(robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor)
	if _, err := parser.Parse(w.schedule); err != nil {
		return fmt.Errorf("parse probe schedule %q: %w", w.schedule, err)
	}

	w.mu.Lock()
	if w.cron != nil {
		w.mu.Unlock()
		return ErrWatcherRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c := robcron.New(
		robcron.WithParser(parser),
		robcron.WithChain(robcron.SkipIfStillRunning(robcron.PrintfLogger(log.Default()))),
	)
	_, err := c.AddFunc(w.schedule, func() {
		if ctx.Err() == nil {
			w.Check(ctx)
		}
	})
	if err != nil {
		w.mu.Unlock()
		cancel()
		return fmt.Errorf("schedule probe: %w", err)
	}
	w.cron = c
	w.cancel = cancel
	w.mu.Unlock()

	w.Check(ctx)
	c.Start()
	log.Printf("CONNECTIVITY_WATCH | schedule=%q online=%v", w.schedule, w.Online())
	return nil
}

// Stop halts the schedule and waits for a running probe to return.
func (w *Watcher) Stop() {
	w.mu.Lock()
	c, cancel := w.cron, w.cancel
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

// Check probes now and returns the result.
func (w *Watcher) Check(ctx context.Context) Status {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()
	return w.apply(w.source.Probe(ctx))
}

// Refresh asks the gateway to re-check its network, then records the result.
func (w *Watcher) Refresh(ctx context.Context) Status {
	w.checkMu.Lock()
	defer w.checkMu.Unlock()
	return w.apply(w.source.Refresh(ctx))
}

func (w *Watcher) apply(cur Status) Status {
	w.mu.Lock()
	prev := w.status
	w.status = cur
	listeners := append([]Listener(nil), w.listeners...)
	w.mu.Unlock()

	if prev.Online == cur.Online {
		return cur
	}
	if cur.Err != nil {
		log.Printf("CONNECTIVITY_CHANGED | online=%v cloud=%v error=%v", cur.Online, cur.CloudAvailable, cur.Err)
	} else {
		log.Printf("CONNECTIVITY_CHANGED | online=%v cloud=%v", cur.Online, cur.CloudAvailable)
	}
	for _, fn := range listeners {
		fn(prev, cur)
	}
	return cur
}
