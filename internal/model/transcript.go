// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when an ID is not in the current transcript.
	ErrNotFound = errors.New("message not found")

	// ErrAlreadyEnhanced is returned when merging into an enhanced message.
	ErrAlreadyEnhanced = errors.New("message already enhanced")
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered list of messages of one conversation.
//
// All methods are safe for concurrent use. Readers get copies, so a Message
// value returned here never changes underneath the caller.
type Transcript struct {
	mu         sync.RWMutex
	messages   []*Message
	index      map[string]int
	generation uint64
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		index: make(map[string]int),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddUser appends a user message.
func (t *Transcript) AddUser(text string) Message {
	return t.add(NewMessage(RoleUser, text))
}

// AddAssistant appends an empty, streaming assistant message.
func (t *Transcript) AddAssistant(source Source) Message {
	msg := NewMessage(RoleAssistant, "")
	msg.Source = source
	msg.Streaming = true
	return t.add(msg)
}

func (t *Transcript) add(msg *Message) Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.index[msg.ID] = len(t.messages)
	t.messages = append(t.messages, msg)
	return *msg
}

// Get returns a copy of the message with the given ID.
func (t *Transcript) Get(id string) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return Message{}, false
	}
	return *t.messages[i], true
}

// Messages returns a copy of every message in order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return *t.messages[len(t.messages)-1], true
}

// Update applies fn to the live message under the write lock. It returns
// false when the ID no longer exists. fn must not call back into t.
func (t *Transcript) Update(id string, fn func(*Message)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	if !ok {
		return false
	}
	fn(t.messages[i])
	return true
}

// AppendText appends streamed text to a message.
func (t *Transcript) AppendText(id, text string) bool {
	return t.Update(id, func(m *Message) {
		m.Text += text
	})
}

// MarkFallback records a mid-stream switch to the offline model.
func (t *Transcript) MarkFallback(id string) bool {
	return t.Update(id, func(m *Message) {
		m.Source = SourceOffline
		m.FallbackOccurred = true
	})
}

// Finish ends streaming for a message.
func (t *Transcript) Finish(id string, d time.Duration) bool {
	return t.Update(id, func(m *Message) {
		m.Streaming = false
		m.Duration = d
	})
}

// Fail replaces a message's text with an error notice.
func (t *Transcript) Fail(id, notice string) bool {
	return t.Update(id, func(m *Message) {
		m.Text = notice
		m.Failed = true
		m.Streaming = false
	})
}

// Enhance merges an online re-run into a message. The current text is kept
// as OfflineText and the new answer is stored alongside it.
func (t *Transcript) Enhance(id, enhanced string) error {
	var err error
	found := t.Update(id, func(m *Message) {
		if m.IsEnhanced {
			err = ErrAlreadyEnhanced
			return
		}
		m.OfflineText = m.Text
		m.EnhancedText = enhanced
		m.IsEnhanced = true
		m.ShowEnhanced = true
	})
	if !found {
		return ErrNotFound
	}
	return err
}

// ToggleView switches an enhanced message between its original and
// enhanced text. It returns false when nothing can be toggled.
func (t *Transcript) ToggleView(id string) bool {
	toggled := false
	t.Update(id, func(m *Message) {
		if m.IsEnhanced {
			m.ShowEnhanced = !m.ShowEnhanced
			toggled = true
		}
	})
	return toggled
}

// PrecedingUserQuery returns the text of the user turn directly before the
// message with the given ID.
func (t *Transcript) PrecedingUserQuery(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok || i == 0 {
		return "", false
	}
	prev := t.messages[i-1]
	if prev.Role != RoleUser || prev.Text == "" {
		return "", false
	}
	return prev.Text, true
}

// Clear drops every message and starts a new generation.
func (t *Transcript) Clear() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.index = make(map[string]int)
	t.generation++
	return t.generation
}

// Generation counts how many times the transcript has been cleared.
func (t *Transcript) Generation() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.generation
}
