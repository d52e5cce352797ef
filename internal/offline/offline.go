// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"log"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/jeranaias/bridgeai/internal/connectivity"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCloudBlocked is returned when the online model is used in offline mode.
	ErrCloudBlocked = errors.New("online model disabled in offline mode")

	// ErrNonLocalhost is returned for a non-loopback URL where only local
	// services are allowed.
	ErrNonLocalhost = errors.New("only localhost connections are allowed")

	// ErrInvalidURLScheme is returned when a URL scheme is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https URLs are allowed")

	// ErrInvalidURL is returned for a URL that does not parse.
	ErrInvalidURL = errors.New("invalid URL")
)

// =============================================================================
// GATE
// =============================================================================

// Gate reports offline whenever offline mode is forced, and the wrapped
// monitor's status otherwise.
type Gate struct {
	monitor connectivity.Monitor

	mu        sync.Mutex
	forced    bool
	last      bool
	listeners []func(wasOnline, isOnline bool)

	notifyMu sync.Mutex // one change at a time, so flips arrive in order
}

// NewGate wraps m. forced starts the gate in offline mode.
func NewGate(m connectivity.Monitor, forced bool) *Gate {
	g := &Gate{monitor: m, forced: forced}
	g.last = g.effective(m.Online())
	return g
}

// Online implements connectivity.Monitor.
func (g *Gate) Online() bool {
	online := g.monitor.Online()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.effective(online)
}

// Forced reports whether offline mode is forced.
func (g *Gate) Forced() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.forced
}

// SetForced switches forced offline mode and notifies listeners when the
// effective status flips.
func (g *Gate) SetForced(forced bool) {
	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()

	g.mu.Lock()
	g.forced = forced
	g.mu.Unlock()
	log.Printf("OFFLINE_MODE | forced=%v", forced)
	g.update(g.monitor.Online())
}

// OnChange registers a listener for effective status flips. Listeners run
// one flip at a time and must not call SetForced or Observe.
func (g *Gate) OnChange(fn func(wasOnline, isOnline bool)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

// Observe is a connectivity.Listener that feeds monitor flips into the gate.
func (g *Gate) Observe(prev, cur connectivity.Status) {
	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()
	g.update(cur.Online)
}

// CheckCloudAllowed returns ErrCloudBlocked in forced offline mode.
func (g *Gate) CheckCloudAllowed() error {
	if g.Forced() {
		return ErrCloudBlocked
	}
	return nil
}

// StatusBadge returns "[OFFLINE]" in forced offline mode, "" otherwise.
func (g *Gate) StatusBadge() string {
	if g.Forced() {
		return "[OFFLINE]"
	}
	return ""
}

func (g *Gate) effective(monitorOnline bool) bool {
	return monitorOnline && !g.forced
}

// update must be called with notifyMu held.
func (g *Gate) update(monitorOnline bool) {
	g.mu.Lock()
	was := g.last
	now := g.effective(monitorOnline)
	g.last = now
	listeners := append(([]func(bool, bool))(nil), g.listeners...)
	g.mu.Unlock()

	if was == now {
		return
	}
	for _, fn := range listeners {
		fn(was, now)
	}
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost reports whether host (optionally with a port) is a loopback
// name or address.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateURL checks that rawURL is an http or https URL. With localOnly
// the host must also be a loopback address.
func ValidateURL(rawURL string, localOnly bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ErrInvalidURL
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if localOnly && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}
