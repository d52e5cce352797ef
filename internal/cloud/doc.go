// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud streams chat completions from an OpenAI-compatible API.
// The gateway uses it as the online model and falls back to the local
// model when it fails.
//
// # Key Types
//
//   - Client: streaming chat completions client with connect retries
//   - SSEReader: Server-Sent Events parser for chat.completion.chunk data
//   - StreamError: failure after partial content was delivered
//   - APIError: non-2xx response that maps to no sentinel error
//
// # Usage
//
//	client := cloud.NewClient(apiKey).WithModel("gpt-4o-mini")
//	err := client.ChatStream(ctx, []cloud.ChatMessage{
//	    cloud.NewUserMessage("Hello"),
//	}, func(chunk cloud.StreamChunk) {
//	    fmt.Print(chunk.Content())
//	})
//
// API keys are never logged. Logs carry a SHA-256 fingerprint instead.
package cloud
