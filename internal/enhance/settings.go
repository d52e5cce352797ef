// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package enhance

import "time"

// Batch size limits.
const (
	MinMessages     = 1
	MaxMessages     = 20
	DefaultMessages = 5

	// DefaultDelay separates two re-runs in a batch.
	DefaultDelay = 500 * time.Millisecond
)

// Settings controls the automatic triggers.
type Settings struct {
	// AutoEnhance enables both automatic triggers.
	AutoEnhance bool
	// EnhanceRecent limits the reconnect scan to the MaxMessages most recent
	// answers. When false every eligible answer is picked.
	EnhanceRecent bool
	// MaxMessages is clamped to [MinMessages, MaxMessages].
	MaxMessages int
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		AutoEnhance:   true,
		EnhanceRecent: true,
		MaxMessages:   DefaultMessages,
	}
}

// Normalize returns s with MaxMessages clamped into range.
func (s Settings) Normalize() Settings {
	switch {
	case s.MaxMessages < MinMessages:
		s.MaxMessages = MinMessages
	case s.MaxMessages > MaxMessages:
		s.MaxMessages = MaxMessages
	}
	return s
}
