// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama server,
// which the gateway uses as its offline model.
//
// # Key Types
//
//   - Client: HTTP client for /api/chat streaming and /api/tags
//   - StreamReader: newline-delimited JSON decoder for streamed answers
//   - StreamChunk: one decoded piece of an answer
//   - ClientError: typed error with sentinel values for common failures
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL:      "http://localhost:11434",
//	    DefaultModel: "llama3.2",
//	})
//	err := client.ChatStream(ctx, "", []ollama.Message{
//	    ollama.NewUserMessage("Hello"),
//	}, func(chunk ollama.StreamChunk) {
//	    fmt.Print(chunk.Content)
//	})
package ollama
