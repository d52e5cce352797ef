// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the conversation front end shared by the TUI and the
// line-mode REPL.
//
// A Controller owns the transcript of one conversation. Send streams an
// answer from the gateway into the transcript, Cancel stops it, and Clear
// starts over with a new session. Offline answers are re-run online by the
// enhancement scheduler, either on request (ToggleEnhance) or automatically
// after an answer completes and when connectivity comes back.
//
// # Key Types
//
//   - Controller: transcript, response session, scheduler and gate in one place
//   - Options: gateway client, monitor and enhancement settings
//   - Update: change notifications for a UI
//
// # Usage
//
//	client := transport.NewClient(cfg.Client.GatewayURL)
//	c := chat.New(chat.Options{Streamer: client, Clearer: client, PreferOnline: true})
//	defer c.Close()
//	watcher.OnChange(c.Gate().Observe)
//	msg, err := c.Send(ctx, "What is a goroutine?")
package chat
