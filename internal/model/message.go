// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/bridgeai/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source identifies which model produced an assistant message.
type Source string

const (
	SourceUnset   Source = ""
	SourceOnline  Source = "online"
	SourceOffline Source = "offline"
)

// SourceFor maps a requested mode to the source an answer starts with.
func SourceFor(online bool) Source {
	if online {
		return SourceOnline
	}
	return SourceOffline
}

// Badge returns the short label shown next to a message.
func (s Source) Badge() string {
	switch s {
	case SourceOnline:
		return "ONLINE"
	case SourceOffline:
		return "OFFLINE"
	default:
		return ""
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one turn of the conversation.
//
// Text only grows while the message streams. OfflineText is captured once,
// right before an enhancement is merged, and never changes afterwards.
// IsEnhanced only moves from false to true.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	Text   string `json:"text"`
	Source Source `json:"source,omitempty"`

	FallbackOccurred bool `json:"fallback_occurred,omitempty"`
	Streaming        bool `json:"-"`
	Failed           bool `json:"failed,omitempty"`

	IsEnhanced   bool   `json:"is_enhanced,omitempty"`
	EnhancedText string `json:"enhanced_text,omitempty"`
	OfflineText  string `json:"offline_text,omitempty"`
	ShowEnhanced bool   `json:"-"`

	Duration time.Duration `json:"duration_ns,omitempty"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, text string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// DisplayText returns the enhanced answer when one exists and is selected,
// otherwise the original text.
func (m Message) DisplayText() string {
	if m.IsEnhanced && m.ShowEnhanced {
		return m.EnhancedText
	}
	return m.Text
}

// Preview returns a one-line, rune-truncated preview of the message.
func (m Message) Preview(maxLen int) string {
	return util.Preview(m.Text, maxLen)
}

// Enhanceable reports whether the message may be re-run online: a finished,
// offline-sourced assistant answer that has not been enhanced yet.
func (m Message) Enhanceable() bool {
	return m.Role == RoleAssistant &&
		m.Source == SourceOffline &&
		!m.IsEnhanced &&
		!m.Streaming &&
		!m.Failed &&
		m.Text != ""
}

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.NewString()
}
