// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the bridgeai TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Colors

  - Cyan: brand color, prompts
  - Purple: assistant answers, the selected answer
  - Emerald: online mode and enhanced answers
  - Amber: offline mode, fallback and queued enhancements
  - Rose: failed answers

# Key Types

  - Theme: every lipgloss.Style the chat view renders with
  - LayoutMode: narrow, medium or wide, from the terminal width

# Usage

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	out := theme.UserBubble.Width(theme.BubbleWidth()).Render(text)
*/
package styles
