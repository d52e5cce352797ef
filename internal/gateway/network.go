// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jeranaias/bridgeai/internal/connectivity"
)

// Network check defaults.
const (
	DefaultNetworkTimeout  = 3 * time.Second
	DefaultNetworkCacheTTL = 10 * time.Second
)

// DefaultNetworkTargets are tried in order until one answers.
var DefaultNetworkTargets = []string{
	"https://www.google.com/generate_204",
	"https://1.1.1.1",
}

// NetworkChecker decides whether the internet is reachable by sending a
// small request to well-known endpoints.
type NetworkChecker struct {
	targets []string
	client  *http.Client
}

// NewNetworkChecker checks targets with the given per-request timeout.
func NewNetworkChecker(timeout time.Duration, targets ...string) *NetworkChecker {
	if timeout <= 0 {
		timeout = DefaultNetworkTimeout
	}
	if len(targets) == 0 {
		targets = DefaultNetworkTargets
	}
	return &NetworkChecker{
		targets: targets,
		client:  &http.Client{Timeout: timeout},
	}
}

// Check returns true as soon as any target answers below HTTP 500.
func (n *NetworkChecker) Check(ctx context.Context) bool {
	for _, target := range n.targets {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			continue
		}
		resp, err := n.client.Do(req)
		if err != nil {
			log.Printf("NETWORK_CHECK | target=%s ok=false err=%v", target, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < http.StatusInternalServerError {
			return true
		}
	}
	log.Printf("NETWORK_CHECK | online=false targets=%d", len(n.targets))
	return false
}

// Cached wraps the checker in a connectivity.Cache with the given TTL.
func (n *NetworkChecker) Cached(ttl time.Duration) *connectivity.Cache {
	if ttl <= 0 {
		ttl = DefaultNetworkCacheTTL
	}
	return connectivity.NewCache(n.Check, ttl)
}
