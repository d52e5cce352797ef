// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// clearTimeout bounds the background clear-session call.
const clearTimeout = 5 * time.Second

// Clearer drops the server-side history of a session.
type Clearer interface {
	ClearSession(ctx context.Context, sessionID string) error
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns the conversation session id. The id is created once and only
// replaced by Reset.
type Manager struct {
	mu sync.Mutex

	sessionID string
	startTime time.Time
	resets    int

	clearer Clearer
	pending sync.WaitGroup
}

// NewManager creates a manager with a fresh session id. clearer may be nil.
func NewManager(clearer Clearer) *Manager {
	return &Manager{
		sessionID: generateSessionID(),
		startTime: time.Now(),
		clearer:   clearer,
	}
}

// SessionID returns the current session id.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// StartTime returns when the current session started.
func (m *Manager) StartTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startTime
}

// Duration returns how long the current session has been active.
func (m *Manager) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.startTime)
}

// Resets returns how many times the session has been replaced.
func (m *Manager) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Reset replaces the session id and returns the new one. The old session is
// cleared on the gateway in the background; failures are only logged.
func (m *Manager) Reset(ctx context.Context) string {
	m.mu.Lock()
	old := m.sessionID
	m.sessionID = generateSessionID()
	m.startTime = time.Now()
	m.resets++
	next := m.sessionID
	m.mu.Unlock()

	if m.clearer != nil {
		m.pending.Add(1)
		go func() {
			defer m.pending.Done()
			cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
			defer cancel()
			if err := m.clearer.ClearSession(cctx, old); err != nil {
				log.Printf("SESSION_CLEAR_FAILED | session=%s error=%v", old, err)
			}
		}()
	}
	return next
}

// Wait blocks until background clear calls have finished.
func (m *Manager) Wait() {
	m.pending.Wait()
}

// generateSessionID creates a new random session id.
func generateSessionID() string {
	return uuid.NewString()
}

// FormatDuration formats a session duration for status displays.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
