// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// MANAGER TESTS
// =============================================================================

type fakeClearer struct {
	mu      sync.Mutex
	cleared []string
	err     error
}

func (f *fakeClearer) ClearSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, id)
	return f.err
}

func TestNewManager(t *testing.T) {
	m := NewManager(nil)
	if m.SessionID() == "" {
		t.Fatal("SessionID should not be empty")
	}
	if m.SessionID() != m.SessionID() {
		t.Error("SessionID should be stable between calls")
	}
	if m.Resets() != 0 {
		t.Errorf("Resets = %d, want 0", m.Resets())
	}
	if m.Duration() < 0 {
		t.Error("Duration should not be negative")
	}
}

func TestManager_ResetRotatesAndClears(t *testing.T) {
	clearer := &fakeClearer{}
	m := NewManager(clearer)
	old := m.SessionID()

	next := m.Reset(context.Background())
	m.Wait()

	if next == old || m.SessionID() != next {
		t.Errorf("Reset did not rotate: old=%s next=%s current=%s", old, next, m.SessionID())
	}
	if m.Resets() != 1 {
		t.Errorf("Resets = %d, want 1", m.Resets())
	}
	if len(clearer.cleared) != 1 || clearer.cleared[0] != old {
		t.Errorf("cleared = %v, want [%s]", clearer.cleared, old)
	}
}

func TestManager_ResetSurvivesClearFailure(t *testing.T) {
	m := NewManager(&fakeClearer{err: errors.New("gateway down")})
	old := m.SessionID()

	// A canceled caller context must not abort the background clear.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Reset(ctx)
	m.Wait()

	if m.SessionID() == old {
		t.Error("session id should rotate even when the clear fails")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tc := range tests {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

// =============================================================================
// CANCEL MANAGER TESTS
// =============================================================================

func TestCancelManager(t *testing.T) {
	cm := NewCancelManager()
	if cm.Cancel() {
		t.Error("Cancel on empty manager should report false")
	}

	calls := 0
	cm.Set(func() { calls++ })
	if !cm.Active() {
		t.Error("Active should be true after Set")
	}
	if !cm.Cancel() || calls != 1 {
		t.Errorf("Cancel: calls = %d", calls)
	}
	if cm.Cancel() || calls != 1 {
		t.Error("second Cancel should be a no-op")
	}

	first, second := 0, 0
	cm.Set(func() { first++ })
	cm.Set(func() { second++ })
	if first != 1 {
		t.Error("Set should cancel the previous function")
	}
	cm.Clear()
	if cm.Active() || second != 0 {
		t.Error("Clear should drop the function without calling it")
	}
}

func TestCancelManager_Concurrent(t *testing.T) {
	cm := NewCancelManager()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancel := context.WithCancel(context.Background())
			cm.Set(cancel)
		}()
		go func() {
			defer wg.Done()
			cm.Cancel()
		}()
	}
	wg.Wait()
	cm.Cancel()
	if cm.Active() {
		t.Error("manager should be empty after final Cancel")
	}
}
