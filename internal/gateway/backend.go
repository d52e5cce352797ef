// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"

	"github.com/jeranaias/bridgeai/internal/cloud"
	"github.com/jeranaias/bridgeai/internal/ollama"
)

// Roles used in conversation turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a conversation as the models see it.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model streams an answer for a conversation. emit is called with each
// piece of text in order. A returned error after some emits means the
// answer is incomplete.
type Model interface {
	Stream(ctx context.Context, turns []Turn, emit func(string)) error
}

// LocalModel is the offline model. It is always present.
type LocalModel interface {
	Model
}

// CloudModel is the online model.
type CloudModel interface {
	Model

	// Available reports whether the model is configured to take requests.
	Available() bool
}

// =============================================================================
// ADAPTERS
// =============================================================================

// OllamaModel adapts an ollama.Client to LocalModel.
type OllamaModel struct {
	client *ollama.Client
	model  string
}

// NewOllamaModel wraps client. An empty model uses the client default.
func NewOllamaModel(client *ollama.Client, model string) *OllamaModel {
	return &OllamaModel{client: client, model: model}
}

// Stream implements Model.
func (m *OllamaModel) Stream(ctx context.Context, turns []Turn, emit func(string)) error {
	msgs := make([]ollama.Message, len(turns))
	for i, t := range turns {
		msgs[i] = ollama.Message{Role: t.Role, Content: t.Content}
	}
	return m.client.ChatStream(ctx, m.model, msgs, func(chunk ollama.StreamChunk) {
		if chunk.Content != "" {
			emit(chunk.Content)
		}
	})
}

// CloudChatModel adapts a cloud.Client to CloudModel.
type CloudChatModel struct {
	client *cloud.Client
}

// NewCloudChatModel wraps client.
func NewCloudChatModel(client *cloud.Client) *CloudChatModel {
	return &CloudChatModel{client: client}
}

// Available implements CloudModel.
func (m *CloudChatModel) Available() bool {
	return m.client != nil && m.client.IsConfigured()
}

// Stream implements Model.
func (m *CloudChatModel) Stream(ctx context.Context, turns []Turn, emit func(string)) error {
	msgs := make([]cloud.ChatMessage, len(turns))
	for i, t := range turns {
		msgs[i] = cloud.ChatMessage{Role: t.Role, Content: t.Content}
	}
	return m.client.ChatStream(ctx, msgs, func(chunk cloud.StreamChunk) {
		if text := chunk.Content(); text != "" {
			emit(text)
		}
	})
}
