// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package connectivity reports whether the online model can be reached.
//
// The client only needs two things from it: a point-in-time read of the
// current status, and an edge notification when the status flips. Both are
// provided by Watcher, which probes the gateway health endpoint on a cron
// schedule.
//
// # Key Types
//
//   - Monitor: the point-in-time contract (Online)
//   - Status: one probe result
//   - Prober: probes a gateway's /health endpoint
//   - Watcher: scheduled prober with flip listeners
//   - Cache: TTL cache around a boolean check, used by the gateway
//
// # Usage
//
//	w := connectivity.NewWatcher(connectivity.NewProber(client), "@every 10s")
//	w.OnChange(func(prev, cur connectivity.Status) { ... })
//	if err := w.Start(ctx); err != nil { ... }
//	defer w.Stop()
package connectivity
