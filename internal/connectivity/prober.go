// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package connectivity

import (
	"context"
	"time"

	"github.com/jeranaias/bridgeai/internal/transport"
)

// DefaultProbeTimeout bounds a single health probe.
const DefaultProbeTimeout = 3 * time.Second

// HealthChecker is the part of the gateway client a Prober needs.
// *transport.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) (transport.Health, error)
	RefreshNetwork(ctx context.Context) (transport.Health, error)
}

// Prober turns gateway health reports into Status values. A gateway that
// cannot be reached counts as offline.
type Prober struct {
	checker HealthChecker
	timeout time.Duration
}

// NewProber creates a prober with the default timeout.
func NewProber(checker HealthChecker) *Prober {
	return &Prober{checker: checker, timeout: DefaultProbeTimeout}
}

// WithTimeout sets the per-probe timeout.
func (p *Prober) WithTimeout(d time.Duration) *Prober {
	if d > 0 {
		p.timeout = d
	}
	return p
}

// Probe asks the gateway for its current status.
func (p *Prober) Probe(ctx context.Context) Status {
	return p.call(ctx, p.checker.Health)
}

// Refresh makes the gateway re-check its own network before answering.
func (p *Prober) Refresh(ctx context.Context) Status {
	return p.call(ctx, p.checker.RefreshNetwork)
}

func (p *Prober) call(ctx context.Context, fn func(context.Context) (transport.Health, error)) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	h, err := fn(ctx)
	st := Status{CheckedAt: time.Now()}
	if err != nil {
		st.Err = err
		return st
	}
	st.Online = h.Online
	st.CloudAvailable = h.CloudAvailable
	return st
}
