// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"sync"
	"testing"

	"github.com/jeranaias/bridgeai/internal/connectivity"
)

// =============================================================================
// GATE TESTS
// =============================================================================

func TestGate_ForcedOfflineOverridesMonitor(t *testing.T) {
	mon := connectivity.NewStatic(true)
	g := NewGate(mon, false)

	if !g.Online() {
		t.Fatal("gate should follow an online monitor")
	}
	g.SetForced(true)
	if g.Online() {
		t.Error("forced gate should report offline")
	}
	if !errors.Is(g.CheckCloudAllowed(), ErrCloudBlocked) {
		t.Error("cloud should be blocked in forced offline mode")
	}
	if g.StatusBadge() != "[OFFLINE]" {
		t.Errorf("StatusBadge = %q", g.StatusBadge())
	}

	g.SetForced(false)
	if !g.Online() || g.CheckCloudAllowed() != nil || g.StatusBadge() != "" {
		t.Error("gate should be back online")
	}
}

func TestGate_NotifiesEffectiveFlips(t *testing.T) {
	mon := connectivity.NewStatic(false)
	g := NewGate(mon, true)

	var flips [][2]bool
	g.OnChange(func(was, is bool) { flips = append(flips, [2]bool{was, is}) })

	// Network comes up while forced: no effective change.
	mon.Set(true)
	g.Observe(connectivity.Status{}, connectivity.Status{Online: true})
	if len(flips) != 0 {
		t.Fatalf("unexpected flips %v", flips)
	}

	// Releasing forced mode is an offline -> online flip.
	g.SetForced(false)
	// Network drops.
	mon.Set(false)
	g.Observe(connectivity.Status{Online: true}, connectivity.Status{})

	want := [][2]bool{{false, true}, {true, false}}
	if len(flips) != len(want) {
		t.Fatalf("flips = %v, want %v", flips, want)
	}
	for i := range want {
		if flips[i] != want[i] {
			t.Errorf("flip %d = %v, want %v", i, flips[i], want[i])
		}
	}
}

func TestGate_ConcurrentFlipsArriveInOrder(t *testing.T) {
	mon := connectivity.NewStatic(true)
	g := NewGate(mon, false)

	var mu sync.Mutex
	var flips [][2]bool
	g.OnChange(func(was, is bool) {
		mu.Lock()
		flips = append(flips, [2]bool{was, is})
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g.SetForced((i+j)%2 == 0)
				g.Observe(connectivity.Status{}, connectivity.Status{Online: true})
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	online := true
	for i, f := range flips {
		if f[0] != online || f[1] == online {
			t.Fatalf("flip %d = %v after status %v", i, f, online)
		}
		online = f[1]
	}
	if online != g.Online() {
		t.Errorf("last flip reported %v, gate is %v", online, g.Online())
	}
}

// =============================================================================
// LOCALHOST DETECTION TESTS
// =============================================================================

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"localhost:11434", true},
		{"127.0.0.1", true},
		{"127.8.9.10", true},
		{"::1", true},
		{"[::1]:8000", true},
		{"0:0:0:0:0:0:0:1", true},
		{"example.com", false},
		{"10.0.0.1", false},
		{"localhost.evil.com", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsLocalhost(tc.host); got != tc.want {
			t.Errorf("IsLocalhost(%q) = %v, want %v", tc.host, got, tc.want)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url       string
		localOnly bool
		want      error
	}{
		{"http://localhost:11434", true, nil},
		{"https://api.openai.com/v1", false, nil},
		{"https://api.openai.com/v1", true, ErrNonLocalhost},
		{"file:///etc/passwd", false, ErrInvalidURL},
		{"ftp://localhost/x", false, ErrInvalidURLScheme},
		{"javascript://localhost/x", true, ErrInvalidURLScheme},
		{"://broken", false, ErrInvalidURL},
	}
	for _, tc := range tests {
		err := ValidateURL(tc.url, tc.localOnly)
		if !errors.Is(err, tc.want) && !(err == nil && tc.want == nil) {
			t.Errorf("ValidateURL(%q, %v) = %v, want %v", tc.url, tc.localOnly, err, tc.want)
		}
	}
}
