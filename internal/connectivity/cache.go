// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectivity

import (
	"context"
	"sync"
	"time"
)

// CheckFunc performs one uncached check.
type CheckFunc func(ctx context.Context) bool

// Cache remembers the result of a check for a fixed TTL. Concurrent callers
// that find the entry stale wait for a single check.
type Cache struct {
	mu        sync.Mutex
	check     CheckFunc
	ttl       time.Duration
	value     bool
	checkedAt time.Time
	valid     bool

	now func() time.Time
}

// NewCache creates a cache around check.
func NewCache(check CheckFunc, ttl time.Duration) *Cache {
	return &Cache{check: check, ttl: ttl, now: time.Now}
}

// Online implements Monitor using a background context.
func (c *Cache) Online() bool {
	return c.Get(context.Background())
}

// Get returns the cached value, running the check when the entry expired.
func (c *Cache) Get(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.now().Sub(c.checkedAt) < c.ttl {
		return c.value
	}
	return c.refreshLocked(ctx)
}

// Refresh runs the check now and stores the result.
func (c *Cache) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// Invalidate forces the next Get to run the check.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

// CheckedAt returns when the cached value was produced.
func (c *Cache) CheckedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkedAt
}

func (c *Cache) refreshLocked(ctx context.Context) bool {
	c.value = c.check(ctx)
	c.checkedAt = c.now()
	c.valid = true
	return c.value
}
