// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen chat view.
//
// The view is a Bubble Tea model over a conversation controller. It never
// talks to the gateway itself: questions go through Controller.Send in a
// tea.Cmd, streamed content arrives as controller updates, and enhancement
// progress is read from the controller's notification channel.
//
// # Key Types
//
//   - Model: the Bubble Tea model (viewport, textarea, spinner, help)
//   - KeyMap: key bindings, also used by the help bar
//   - ControllerUpdateMsg, SendDoneMsg, NotificationMsg: messages fed into
//     Update from outside the event loop
//
// # Usage
//
//	m := chat.New(ctrl, styles.NewTheme(), chat.Options{})
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	stop := chat.Bind(ctrl, p.Send)
//	defer stop()
//	_, err := p.Run()
package chat
