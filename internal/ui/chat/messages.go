// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	conv "github.com/jeranaias/bridgeai/internal/chat"
	"github.com/jeranaias/bridgeai/internal/enhance"
	"github.com/jeranaias/bridgeai/internal/model"
)

// =============================================================================
// CONTROLLER MESSAGES
// =============================================================================

// ControllerUpdateMsg carries a conversation update into the event loop.
// The view re-reads the transcript on every update, so a dropped update
// only delays a redraw.
type ControllerUpdateMsg struct {
	Update conv.Update
}

// SendDoneMsg is returned by the send command once the answer has ended.
type SendDoneMsg struct {
	Message model.Message
	Err     error
}

// NotificationMsg carries one enhancement progress event.
type NotificationMsg struct {
	Notification enhance.Notification
}

// notificationsClosedMsg stops the notification listener.
type notificationsClosedMsg struct{}

// ClearedMsg is returned after the conversation was cleared.
type ClearedMsg struct {
	SessionID string
}

// =============================================================================
// BRIDGE
// =============================================================================

// updateBuffer bounds the updates waiting for the event loop.
const updateBuffer = 64

// Bind forwards controller updates to send, usually tea.Program.Send.
//
// The controller calls its listener synchronously, sometimes from inside
// Update (clearing, switching modes), while Program.Send blocks until the
// event loop is free. Updates are therefore queued and pumped from a
// separate goroutine. The returned function stops forwarding.
func Bind(ctrl *conv.Controller, send func(tea.Msg)) (stop func()) {
	ch := make(chan conv.Update, updateBuffer)
	done := make(chan struct{})

	ctrl.OnUpdate(func(u conv.Update) {
		select {
		case ch <- u:
		default:
			// A redraw is already pending.
		}
	})

	go func() {
		for {
			select {
			case u := <-ch:
				send(ControllerUpdateMsg{Update: u})
			case <-done:
				return
			}
		}
	}()

	return func() {
		ctrl.OnUpdate(nil)
		close(done)
	}
}

// waitForNotification reads the next enhancement notification.
func waitForNotification(ch <-chan enhance.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return notificationsClosedMsg{}
		}
		return NotificationMsg{Notification: n}
	}
}
