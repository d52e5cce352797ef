// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectivity

import (
	"sync/atomic"
	"time"
)

// Monitor reports the current online status.
type Monitor interface {
	Online() bool
}

// MonitorFunc adapts a function to Monitor.
type MonitorFunc func() bool

// Online implements Monitor.
func (f MonitorFunc) Online() bool { return f() }

// Status is the result of one connectivity probe.
type Status struct {
	Online         bool
	CloudAvailable bool
	CheckedAt      time.Time
	Err            error
}

// Label returns "online" or "offline".
func (s Status) Label() string {
	if s.Online {
		return "online"
	}
	return "offline"
}

// Static is a Monitor whose status is set by hand.
type Static struct {
	online atomic.Bool
}

// NewStatic creates a Static monitor with the given status.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

// Online implements Monitor.
func (s *Static) Online() bool { return s.online.Load() }

// Set changes the status and returns the previous one.
func (s *Static) Set(online bool) bool { return s.online.Swap(online) }
