// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package enhance re-runs offline answers against the online model.
//
// A Scheduler owns two disjoint sets of message ids: the queued set, waiting
// for a batch, and the in-flight set, currently being re-run. An id moves
// from queued to in-flight under one lock, so overlapping triggers can never
// process the same message twice. Batches run strictly one id at a time with
// a fixed delay between ids, and stop as soon as the client goes offline.
//
// Per message the states are:
//
//	Idle -> Queued -> Enhancing -> Enhanced
//	                           \-> Idle (on failure, not re-queued)
//
// An enhanced message never re-enters the queue.
//
// # Key Types
//
//   - Scheduler: queue, in-flight lock, batch runner and auto-triggers
//   - Settings: auto-enhance switches and the batch size limit
//   - Notification: per-message progress events for the UI
//   - BatchReport: what a batch did
//   - TrayEntry: one row of the queue tray
//
// # Usage
//
//	s := enhance.NewScheduler(transcript, responder, watcher, mgr.SessionID)
//	watcher.OnChange(func(prev, cur connectivity.Status) {
//	    go s.HandleConnectivity(ctx, prev.Online, cur.Online)
//	})
//	for n := range s.Notifications() {
//	    log.Printf("%s %s", n.Kind, n.MessageID)
//	}
package enhance
