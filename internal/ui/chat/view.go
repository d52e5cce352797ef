// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/bridgeai/internal/enhance"
	"github.com/jeranaias/bridgeai/internal/model"
	"github.com/jeranaias/bridgeai/internal/session"
	"github.com/jeranaias/bridgeai/internal/ui/styles"
	"github.com/jeranaias/bridgeai/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// renderChat renders the complete view.
// Layout: header, messages (viewport), notices, [tray], input, status bar.
func (m Model) renderChat() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	parts := []string{m.renderHeader(), m.viewport.View()}
	if n := m.renderNotices(); n != "" {
		parts = append(parts, n)
	}
	if m.showTray {
		parts = append(parts, m.renderTray())
	}
	parts = append(parts, m.renderInput(), m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("bridgeai")
	if m.opts.Version != "" {
		title += m.theme.HeaderMeta.Render(" v" + m.opts.Version)
	}

	meta := []string{"session " + shortID(m.ctrl.SessionID())}
	if m.opts.Gateway != "" && m.theme.GetLayoutMode() != styles.LayoutNarrow {
		meta = append(meta, m.opts.Gateway)
	}
	right := m.theme.HeaderMeta.Render(strings.Join(meta, " | "))

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + right)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m Model) renderMessages() string {
	msgs := m.ctrl.Messages()
	if len(msgs) == 0 {
		return m.renderEmptyState()
	}

	var b strings.Builder
	answer := 0
	for _, msg := range msgs {
		switch msg.Role {
		case model.RoleUser:
			b.WriteString(m.renderUserMessage(msg))
		case model.RoleAssistant:
			answer++
			b.WriteString(m.renderAssistantMessage(msg, answer))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEmptyState() string {
	lines := []string{
		m.theme.HeaderTitle.Render("Ask anything."),
		"",
		m.theme.MessageMeta.Render("Answers come from the online model when the gateway can reach it,"),
		m.theme.MessageMeta.Render("and from the local model otherwise. Offline answers can be"),
		m.theme.MessageMeta.Render("enhanced online later with Ctrl+E."),
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
}

func (m Model) renderUserMessage(msg model.Message) string {
	width := m.theme.BubbleWidth()
	bubble := m.theme.UserBubble.Width(width).Render(msg.Text)
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubble)
}

func (m Model) renderAssistantMessage(msg model.Message, number int) string {
	width := m.theme.BubbleWidth()
	selected := m.selected == number

	text := msg.DisplayText()
	stopped := false
	if strings.HasSuffix(text, session.StopAnnotation) {
		text = strings.TrimSuffix(text, session.StopAnnotation)
		stopped = true
	}
	if msg.Streaming && m.generating {
		text += m.spinner.View()
	}
	if stopped {
		text += "\n\n" + m.theme.StoppedAnnotation.Render(strings.TrimSpace(session.StopAnnotation))
	}

	style := m.theme.AssistantBubble
	switch {
	case selected:
		style = m.theme.SelectedBubble
	case msg.Failed:
		style = m.theme.FailedBubble
	case msg.IsEnhanced && msg.ShowEnhanced:
		style = m.theme.EnhancedBubble
	}

	return m.renderAnswerMeta(msg, number) + "\n" + style.Width(width).Render(text)
}

// renderAnswerMeta is the line above an answer: number, source badge and
// enhancement state.
func (m Model) renderAnswerMeta(msg model.Message, number int) string {
	parts := []string{m.theme.MessageMeta.Render(fmt.Sprintf("#%d", number))}

	switch msg.Source {
	case model.SourceOnline:
		parts = append(parts, m.theme.BadgeOnline.Render(msg.Source.Badge()))
	case model.SourceOffline:
		parts = append(parts, m.theme.BadgeOffline.Render(msg.Source.Badge()))
	}
	if msg.FallbackOccurred {
		parts = append(parts, m.theme.WarningStyle.Render("fallback"))
	}

	switch m.ctrl.EnhanceState(msg.ID) {
	case enhance.StateQueued:
		parts = append(parts, m.theme.BadgeQueued.Render("queued for enhancement"))
	case enhance.StateEnhancing:
		parts = append(parts, m.theme.BadgeQueued.Render("enhancing "+m.spinner.View()))
	case enhance.StateEnhanced:
		version := "showing offline version"
		if msg.ShowEnhanced {
			version = "showing enhanced version"
		}
		parts = append(parts, m.theme.BadgeEnhanced.Render("enhanced"), m.theme.MessageMeta.Render(version))
	}

	if msg.Duration > 0 {
		parts = append(parts, m.theme.MessageMeta.Render(msg.Duration.Round(time.Millisecond).String()))
	}
	return "  " + strings.Join(parts, " ")
}

// =============================================================================
// NOTICES AND TRAY
// =============================================================================

func (m Model) renderNotices() string {
	if len(m.notices) == 0 {
		return ""
	}
	lines := make([]string, len(m.notices))
	for i, n := range m.notices {
		lines[i] = m.theme.Notice.Render(" " + n.text)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTray() string {
	entries := m.ctrl.Tray()
	title := m.theme.TrayTitle.Render(fmt.Sprintf("Enhancement queue (%d)", len(entries)))
	if len(entries) == 0 {
		return m.theme.TrayBox.Width(m.width - 2).Render(title + "\n" + m.theme.TrayItem.Render("Nothing queued."))
	}

	lines := []string{title}
	for _, e := range entries {
		state := styles.StatusIndicators.Pending
		if e.State == enhance.StateEnhancing {
			state = styles.StatusIndicators.Active
		}
		label := fmt.Sprintf("%s #%d %s", state, m.answerIndex(e.MessageID), util.Preview(e.Question, m.width-20))
		lines = append(lines, m.theme.TrayItem.Render(label))
	}
	return m.theme.TrayBox.Width(m.width - 2).Render(strings.Join(lines, "\n"))
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var mode string
	switch badge := m.ctrl.Gate().StatusBadge(); {
	case m.ctrl.RequestOnline():
		mode = m.theme.ModeOnline.Render("ONLINE")
	case badge != "":
		mode = m.theme.BadgeOffline.Render(badge) + " " + m.theme.ShortcutDesc.Render("forced")
	case m.ctrl.PreferOnline():
		mode = m.theme.ModeOffline.Render("OFFLINE (unreachable)")
	default:
		mode = m.theme.ModeOffline.Render("OFFLINE")
	}

	left := []string{mode}
	if m.generating {
		left = append(left, m.spinner.View()+" "+m.theme.ShortcutDesc.Render(
			fmt.Sprintf("answering %ds", int(m.now().Sub(m.sendStart).Seconds()))))
	}
	if queued := len(m.ctrl.Tray()); queued > 0 {
		left = append(left, m.theme.BadgeQueued.Render(fmt.Sprintf("%d queued", queued)))
	}
	if m.selected > 0 {
		left = append(left, m.theme.ShortcutDesc.Render(fmt.Sprintf("answer #%d selected", m.selected)))
	}

	leftStr := strings.Join(left, "  ")
	helpWidth := m.width - lipgloss.Width(leftStr) - 4
	h := m.help
	h.Width = helpWidth
	right := ""
	if helpWidth > 10 {
		right = h.View(m.keys)
	}

	gap := m.width - lipgloss.Width(leftStr) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(leftStr + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelpOverlay() string {
	h := m.help
	h.ShowAll = true
	h.Width = m.width - 4

	body := strings.Join([]string{
		m.theme.HeaderTitle.Render("Keys"),
		"",
		h.View(m.keys),
		"",
		m.theme.HeaderTitle.Render("Commands"),
		"",
		"/enhance [N]   queue answer N for an online re-run",
		"/view [N]      switch answer N between offline and enhanced",
		"/online        prefer the online model",
		"/offline       always use the local model",
		"/tray          show the enhancement queue",
		"/clear         start a new conversation",
		"/quit          exit",
		"",
		m.theme.MessageMeta.Render("Press F1 or Esc to close."),
	}, "\n")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		m.theme.TrayBox.BorderForeground(styles.Purple).Padding(1, 2).Render(body))
}
