// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	conv "github.com/jeranaias/bridgeai/internal/chat"
	"github.com/jeranaias/bridgeai/internal/cli"
	"github.com/jeranaias/bridgeai/internal/enhance"
	"github.com/jeranaias/bridgeai/internal/model"
)

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.ctrl.Cancel()
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help) || msg.String() == "esc" || msg.String() == "q" {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.generating {
			m.ctrl.Cancel()
			return m, nil
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.selected = 0
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.SelectPrev):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.SelectNext):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Enhance):
		m.runCommand(m.enhanceAnswer(""))
		return m, nil

	case key.Matches(msg, m.keys.View):
		m.runCommand(m.toggleView(""))
		return m, nil

	case key.Matches(msg, m.keys.Tray):
		m.showTray = !m.showTray
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Mode):
		m.setPreferOnline(!m.ctrl.PreferOnline())
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		return m, m.clear()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// SENDING
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.handleSlashCommand(text)
	}
	if m.generating {
		m.addNotice("An answer is still streaming. Press Esc to stop it.")
		m.refresh()
		return m, nil
	}

	m.input.Reset()
	m.generating = true
	m.sendStart = m.now()
	m.selected = 0
	if !m.ctrl.RequestOnline() && m.ctrl.PreferOnline() {
		m.addNotice("Offline: answering with the local model.")
	}
	m.refresh()
	m.viewport.GotoBottom()

	ctrl, ctx := m.ctrl, m.ctx
	send := func() tea.Msg {
		reply, err := ctrl.Send(ctx, text)
		return SendDoneMsg{Message: reply, Err: err}
	}
	return m, tea.Batch(send, m.spinner.Tick)
}

func (m Model) handleSendDone(msg SendDoneMsg) (tea.Model, tea.Cmd) {
	m.generating = false
	switch {
	case msg.Err == nil:
	case errors.Is(msg.Err, conv.ErrBusy):
		m.addNotice("An answer is still streaming. Press Esc to stop it.")
	default:
		m.addNotice(m.theme.ErrorStyle.Render("Error: " + msg.Err.Error()))
	}
	m.refresh()
	return m, nil
}

func (m Model) handleControllerUpdate(u conv.Update) (tea.Model, tea.Cmd) {
	switch u.Kind {
	case conv.UpdateFallback:
		m.addNotice(m.theme.WarningStyle.Render("Online model unavailable, answering with the local model."))
	case conv.UpdateConnectivity:
		if u.Online {
			m.addNotice(m.theme.SuccessStyle.Render("Back online."))
		} else {
			m.addNotice(m.theme.WarningStyle.Render("Connection lost. Answers come from the local model."))
		}
	}
	m.refresh()
	return m, nil
}

func (m Model) clear() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return ClearedMsg{SessionID: ctrl.Clear(ctx)}
	}
}

func (m *Model) setPreferOnline(online bool) {
	m.ctrl.SetPreferOnline(online)
	switch {
	case !online:
		m.addNotice("Offline mode: answers come from the local model.")
	case m.ctrl.Online():
		m.addNotice("Online mode.")
	default:
		m.addNotice("Online mode requested. The gateway is unreachable, so answers stay local for now.")
	}
	m.refresh()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (m Model) handleSlashCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "/quit", "/exit", "/q":
		m.ctrl.Cancel()
		return m, tea.Quit
	case "/clear", "/new":
		return m, m.clear()
	case "/online":
		m.setPreferOnline(true)
	case "/offline":
		m.setPreferOnline(false)
	case "/enhance", "/e":
		m.runCommand(m.enhanceAnswer(arg))
	case "/view", "/v":
		m.runCommand(m.toggleView(arg))
	case "/tray", "/queue":
		m.showTray = !m.showTray
		m.refresh()
	case "/help", "/?":
		m.showHelp = true
	default:
		m.runCommand(fmt.Errorf("unknown command %s (try /help)", cmd))
	}
	return m, nil
}

// runCommand shows err as a notice and redraws.
func (m *Model) runCommand(err error) {
	if err != nil {
		m.addNotice(m.theme.ErrorStyle.Render(err.Error()))
	}
	m.refresh()
}

func (m *Model) enhanceAnswer(arg string) error {
	msg, n, err := m.target(arg)
	if err != nil {
		return err
	}
	switch m.ctrl.EnhanceState(msg.ID) {
	case enhance.StateEnhanced:
		return fmt.Errorf("answer #%d is already enhanced", n)
	case enhance.StateEnhancing:
		return fmt.Errorf("answer #%d is being enhanced", n)
	case enhance.StateIdle:
		if !msg.Enhanceable() {
			return fmt.Errorf("answer #%d is not an offline answer", n)
		}
	}
	if m.ctrl.ToggleEnhance(msg.ID) {
		if m.ctrl.Online() {
			m.addNotice(fmt.Sprintf("Answer #%d queued for enhancement.", n))
		} else {
			m.addNotice(fmt.Sprintf("Answer #%d queued until the connection is back.", n))
		}
	} else {
		m.addNotice(fmt.Sprintf("Answer #%d removed from the queue.", n))
	}
	return nil
}

func (m *Model) toggleView(arg string) error {
	msg, n, err := m.target(arg)
	if err != nil {
		return err
	}
	if !m.ctrl.ToggleView(msg.ID) {
		return fmt.Errorf("answer #%d has no enhanced version", n)
	}
	return nil
}

// target resolves an answer number argument, falling back to the selected
// answer and then the latest one.
func (m Model) target(arg string) (model.Message, int, error) {
	answers := m.answers()
	if len(answers) == 0 {
		return model.Message{}, 0, errors.New("no answers yet")
	}
	n := m.selected
	if arg != "" {
		idx, err := cli.ParseIndex(arg, len(answers))
		if err != nil {
			return model.Message{}, 0, err
		}
		n = idx
	}
	if n == 0 || n > len(answers) {
		n = len(answers)
	}
	return answers[n-1], n, nil
}

// =============================================================================
// SELECTION
// =============================================================================

// answers returns the assistant messages in order. Answer numbers shown to
// the user are 1-based positions in this list.
func (m Model) answers() []model.Message {
	var out []model.Message
	for _, msg := range m.ctrl.Messages() {
		if msg.Role == model.RoleAssistant {
			out = append(out, msg)
		}
	}
	return out
}

// answerIndex returns the answer number of id, or 0.
func (m Model) answerIndex(id string) int {
	for i, msg := range m.answers() {
		if msg.ID == id {
			return i + 1
		}
	}
	return 0
}

func (m *Model) moveSelection(delta int) {
	count := len(m.answers())
	if count == 0 {
		return
	}
	sel := m.selected
	if sel == 0 {
		sel = count + 1
		if delta > 0 {
			return
		}
	}
	sel += delta
	switch {
	case sel < 1:
		sel = 1
	case sel > count:
		sel = 0
	}
	m.selected = sel
	m.refresh()
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (m Model) describe(n enhance.Notification) string {
	label := "answer"
	if idx := m.answerIndex(n.MessageID); idx > 0 {
		label = fmt.Sprintf("answer #%d", idx)
	}
	switch n.Kind {
	case enhance.KindStarted:
		return fmt.Sprintf("Enhancing %s...", label)
	case enhance.KindEnhanced:
		return m.theme.SuccessStyle.Render(fmt.Sprintf("Enhanced %s online (%s). Ctrl+R switches versions.",
			label, n.Duration.Round(time.Millisecond)))
	case enhance.KindFailed:
		return m.theme.ErrorStyle.Render(fmt.Sprintf("Could not enhance %s: %v", label, n.Err))
	case enhance.KindSkipped:
		return fmt.Sprintf("Skipped %s: %v", label, n.Err)
	}
	return ""
}
