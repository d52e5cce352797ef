// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
)

// =============================================================================
// CANCEL FUNCTION MANAGEMENT (THREAD-SAFE)
// =============================================================================

// CancelManager holds the cancel function of the in-progress generation.
// The UI goroutine cancels while the streaming goroutine installs and clears,
// so every access goes through the mutex. Use it as a pointer.
type CancelManager struct {
	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// NewCancelManager creates an empty CancelManager.
func NewCancelManager() *CancelManager {
	return &CancelManager{}
}

// Set stores fn, canceling any previous function first.
func (cm *CancelManager) Set(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc != nil {
		cm.cancelFunc()
	}
	cm.cancelFunc = fn
}

// Cancel invokes and clears the stored function. It reports whether there
// was anything to cancel. Safe to call repeatedly.
func (cm *CancelManager) Cancel() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancelFunc == nil {
		return false
	}
	cm.cancelFunc()
	cm.cancelFunc = nil
	return true
}

// Active reports whether a cancel function is installed.
func (cm *CancelManager) Active() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.cancelFunc != nil
}

// Clear drops the stored function without calling it. The streaming
// goroutine uses it once a generation has finished on its own.
func (cm *CancelManager) Clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cancelFunc = nil
}
