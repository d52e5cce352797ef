// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands.
//
// # Commands
//
//   - ask: one question, streamed or rendered as markdown
//   - chat: line-mode REPL with history, enhancement and mode commands
//   - status: gateway connectivity report
//   - config: show, get, set and path
//   - gateway: run the gateway server
//   - version, help
//
// # Key Types
//
//   - Command, Args: result of Parse
//   - ArgParser: flag and positional parsing for subcommands
//   - Runtime: gateway client, connectivity watcher and chat controller
//     wired from the configuration
//   - ChatSession: the REPL state
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAsk:
//		cli.HandleErrorAndExit("ask", cli.HandleAsk(args), args.JSON)
//	}
package cli
