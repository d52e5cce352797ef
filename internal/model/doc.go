// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// # Key Types
//
//   - Message: one turn with its text, producing source, fallback and enhancement state
//   - Transcript: ordered, mutex-guarded message list addressed by stable IDs
//   - Role, Source: message role and producing model
//
// Messages are addressed by an opaque ID issued at creation, never by
// position. Every deferred mutation (a streaming chunk, a fallback, an
// enhancement merge) looks the ID up again, so work that outlives a Clear
// simply finds nothing to update.
//
// # Usage
//
//	t := model.NewTranscript()
//	t.AddUser("What is a goroutine?")
//	reply := t.AddAssistant(model.SourceOffline)
//	t.AppendText(reply.ID, "A lightweight thread...")
package model
