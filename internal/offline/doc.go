// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline implements the user-forced offline mode.
//
// A Gate sits between a connectivity.Monitor and everything that asks
// "are we online?". When offline mode is forced the gate reports offline
// regardless of the network, so chat turns go to the local model and no
// enhancement runs. Releasing the forced mode while the network is up is
// an offline to online flip, and the gate reports it to its listeners like
// any other.
//
// # Key Types
//
//   - Gate: forced-offline switch wrapping a Monitor, with flip listeners
//
// # Usage
//
//	gate := offline.NewGate(watcher, cfg.Client.ForceOffline)
//	watcher.OnChange(gate.Observe)
//	gate.OnChange(func(was, is bool) { go scheduler.HandleConnectivity(ctx, was, is) })
//
//	if err := offline.ValidateURL(cfg.Gateway.OllamaURL, true); err != nil {
//	    return err
//	}
package offline
