// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat view.
type KeyMap struct {
	Submit     key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	SelectPrev key.Binding
	SelectNext key.Binding
	Enhance    key.Binding
	View       key.Binding
	Tray       key.Binding
	Mode       key.Binding
	Clear      key.Binding
	Help       key.Binding
}

// DefaultKeyMap returns the default key bindings. Plain letters are left to
// the input so typing never triggers a command.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("Esc/C-c", "stop answer"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q"),
			key.WithHelp("C-q", "quit"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn", "scroll down"),
		),
		SelectPrev: key.NewBinding(
			key.WithKeys("ctrl+p", "alt+up"),
			key.WithHelp("C-p", "previous answer"),
		),
		SelectNext: key.NewBinding(
			key.WithKeys("ctrl+n", "alt+down"),
			key.WithHelp("C-n", "next answer"),
		),
		Enhance: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "enhance answer"),
		),
		View: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "offline/enhanced"),
		),
		Tray: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "queue tray"),
		),
		Mode: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "online/offline"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "new conversation"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Cancel, k.Enhance, k.Mode, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Cancel, k.Clear, k.Quit},
		{k.PageUp, k.PageDown, k.SelectPrev, k.SelectNext},
		{k.Enhance, k.View, k.Tray, k.Mode, k.Help},
	}
}
