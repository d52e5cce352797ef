// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport is the HTTP client for the bridgeai gateway.
//
// # Key Types
//
//   - Client: pooled HTTP client with builder-style configuration
//   - ChatRequest: {session_id, query, online} body of a chat turn
//   - Health: gateway connectivity report
//   - TransportError: a request that could not be completed
//
// # Usage
//
//	c := transport.NewClient("http://localhost:8000")
//	body, err := c.Chat(ctx, transport.ChatRequest{SessionID: id, Query: q, Online: true})
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
package transport
