// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	conv "github.com/jeranaias/bridgeai/internal/chat"
	"github.com/jeranaias/bridgeai/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// maxNotices is how many notices stay on screen.
	maxNotices = 3

	// noticeTTL is how long a notice stays on screen.
	noticeTTL = 8 * time.Second

	// inputHeight is the number of textarea rows.
	inputHeight = 3

	// maxInputChars bounds one question.
	maxInputChars = 8192
)

// =============================================================================
// MODEL
// =============================================================================

// Options configures the chat view.
type Options struct {
	// Version is shown in the header.
	Version string

	// Gateway is the gateway address shown in the header.
	Gateway string
}

// notice is a transient line shown above the input.
type notice struct {
	text string
	at   time.Time
}

// Model is the Bubble Tea model of the chat view.
type Model struct {
	ctrl  *conv.Controller
	theme *styles.Theme
	opts  Options
	ctx   context.Context

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	generating bool
	sendStart  time.Time

	// selected is the 1-based number of the selected answer; 0 follows the
	// latest one.
	selected int

	showTray bool
	showHelp bool
	notices  []notice
	now      func() time.Time
}

// New creates the chat view over ctrl.
func New(ctrl *conv.Controller, theme *styles.Theme, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask anything... (Alt+Enter for a new line)"
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = maxInputChars
	ta.SetHeight(inputHeight)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = theme.InputPrompt
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = theme.Spinner

	return Model{
		ctrl:     ctrl,
		theme:    theme,
		opts:     opts,
		ctx:      context.Background(),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		viewport: vp,
		input:    ta,
		spinner:  sp,
		now:      time.Now,
	}
}

// WithContext sets the context questions are sent with. Canceling it stops
// the current answer.
func (m Model) WithContext(ctx context.Context) Model {
	m.ctx = ctx
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and the notification listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForNotification(m.ctrl.Notifications()),
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case ControllerUpdateMsg:
		return m.handleControllerUpdate(msg.Update)

	case SendDoneMsg:
		return m.handleSendDone(msg)

	case NotificationMsg:
		m.addNotice(m.describe(msg.Notification))
		m.refresh()
		return m, waitForNotification(m.ctrl.Notifications())

	case notificationsClosedMsg:
		return m, nil

	case ClearedMsg:
		m.selected = 0
		m.addNotice("New conversation started.")
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.generating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the model.
func (m Model) View() string {
	return m.renderChat()
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) handleResize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.help.Width = width
	m.input.SetWidth(width - 4)

	m.viewport.Width = width
	m.viewport.Height = m.viewportHeight()
	m.ready = true
	m.refresh()
}

// viewportHeight is what is left after the fixed rows: header, input with
// its border, notices, optional tray and the status bar.
func (m Model) viewportHeight() int {
	fixed := lipgloss.Height(m.renderHeader()) +
		lipgloss.Height(m.renderInput()) +
		lipgloss.Height(m.renderStatusBar())
	if n := m.renderNotices(); n != "" {
		fixed += lipgloss.Height(n)
	}
	if m.showTray {
		fixed += lipgloss.Height(m.renderTray())
	}
	h := m.height - fixed
	if h < 1 {
		h = 1
	}
	return h
}

// refresh re-renders the transcript into the viewport. The viewport keeps
// following the bottom unless the user scrolled up.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.pruneNotices()
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() <= m.viewport.Height
	m.viewport.Height = m.viewportHeight()
	m.viewport.SetContent(m.renderMessages())
	if atBottom && m.selected == 0 {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// NOTICES
// =============================================================================

func (m *Model) addNotice(text string) {
	if text == "" {
		return
	}
	m.notices = append(m.notices, notice{text: text, at: m.now()})
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

func (m *Model) pruneNotices() {
	now := m.now()
	var kept []notice
	for _, n := range m.notices {
		if now.Sub(n.at) < noticeTTL {
			kept = append(kept, n)
		}
	}
	m.notices = kept
}

// Notices returns the notices currently shown.
func (m Model) Notices() []string {
	out := make([]string, len(m.notices))
	for i, n := range m.notices {
		out[i] = n.text
	}
	return out
}
