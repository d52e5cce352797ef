// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway provides the HTTP server the chat client talks to.
//
// Each question goes to the online model when the client asks for it and
// the network check passes. If the online model fails, the gateway sends a
// fallback frame and lets the local model answer the same question.
//
// Endpoints:
//   - POST /api/chat                   - event-stream answer for one question
//   - POST /api/chat/clear/{session}   - drop the history of a session
//   - GET  /health                     - cached connectivity report
//   - POST /refresh-network            - re-check the network now
//
// # Key Types
//
//   - Server: routes, middleware chain and lifecycle
//   - LocalModel, CloudModel: streaming backends, see OllamaModel and CloudChatModel
//   - HistoryStore: per-session context (MemoryHistory, SQLiteHistory, RedisHistory)
//   - NetworkChecker: internet reachability probe, cached through connectivity.Cache
//   - RateLimiter: per-client token buckets
//
// # Usage
//
//	cfg := config.Global()
//	srv, err := gateway.FromConfig(cfg.Gateway)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = srv.ListenAndServe(ctx)
package gateway
