// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across bridgeai.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, StringWidth: display-width aware helpers backed by go-runewidth
//   - Preview: single-line, width-bounded preview of a message body
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	line := util.Preview(answer, 60)
package util
