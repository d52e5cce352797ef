// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives chat turns against the gateway and tracks the
// conversation session they belong to.
//
// # Key Types
//
//   - Responder: runs one request/response exchange with paced delivery,
//     fallback notification and cooperative cancellation
//   - Result: how an exchange ended and what it delivered
//   - Manager: owns the session id and rotates it on clear
//   - CancelManager: mutex-guarded holder of the current cancel function
//
// # Usage
//
//	r := session.NewResponder(client)
//	res := r.Run(ctx, session.Request{SessionID: mgr.SessionID(), Query: q, Online: true},
//	    session.Hooks{
//	        OnContent:  func(chunk string) { transcript.AppendText(id, chunk) },
//	        OnFallback: func() { transcript.MarkFallback(id) },
//	    })
//
// Hooks run synchronously on the Run goroutine, strictly in stream order,
// and must not block.
package session
