// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jeranaias/bridgeai/internal/config"
)

// DefaultHistoryTurns is how many exchanges of context a session keeps.
const DefaultHistoryTurns = 8

// HistoryStore keeps the conversation of each session. Stores cap each
// session at a fixed number of messages, dropping the oldest first.
type HistoryStore interface {
	// Recent returns up to limit of the newest messages, oldest first.
	Recent(ctx context.Context, session string, limit int) ([]Turn, error)

	// Append adds messages to the end of a session.
	Append(ctx context.Context, session string, turns ...Turn) error

	// Clear drops a session. Clearing an unknown session is not an error.
	Clear(ctx context.Context, session string) error

	Close() error
}

// NewHistoryStore builds the store selected by cfg.HistoryBackend.
func NewHistoryStore(cfg config.GatewayConfig) (HistoryStore, error) {
	turns := cfg.HistoryTurns
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	maxMessages := turns * 2

	switch cfg.HistoryBackend {
	case "", "memory":
		return NewMemoryHistory(maxMessages), nil
	case "sqlite":
		return OpenSQLiteHistory(cfg.HistoryPath, maxMessages)
	case "redis":
		return NewRedisHistory(cfg.RedisURL, maxMessages, cfg.HistoryTTL())
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryHistory is the default in-process store. Sessions are lost on
// restart.
type MemoryHistory struct {
	mu          sync.Mutex
	sessions    map[string][]Turn
	touched     map[string]time.Time
	maxMessages int
}

// NewMemoryHistory creates a store that keeps maxMessages per session.
func NewMemoryHistory(maxMessages int) *MemoryHistory {
	if maxMessages <= 0 {
		maxMessages = DefaultHistoryTurns * 2
	}
	return &MemoryHistory{
		sessions:    make(map[string][]Turn),
		touched:     make(map[string]time.Time),
		maxMessages: maxMessages,
	}
}

// Recent implements HistoryStore.
func (h *MemoryHistory) Recent(ctx context.Context, session string, limit int) ([]Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.sessions[session]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]Turn(nil), turns...), nil
}

// Append implements HistoryStore.
func (h *MemoryHistory) Append(ctx context.Context, session string, turns ...Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	all := append(h.sessions[session], turns...)
	if len(all) > h.maxMessages {
		all = append([]Turn(nil), all[len(all)-h.maxMessages:]...)
	}
	h.sessions[session] = all
	h.touched[session] = time.Now()
	return nil
}

// Clear implements HistoryStore.
func (h *MemoryHistory) Clear(ctx context.Context, session string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, session)
	delete(h.touched, session)
	return nil
}

// Prune drops sessions idle for longer than ttl and returns how many went.
func (h *MemoryHistory) Prune(ttl time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	pruned := 0
	for id, at := range h.touched {
		if at.Before(cutoff) {
			delete(h.sessions, id)
			delete(h.touched, id)
			pruned++
		}
	}
	return pruned
}

// Sessions returns the number of live sessions.
func (h *MemoryHistory) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close implements HistoryStore.
func (h *MemoryHistory) Close() error { return nil }
