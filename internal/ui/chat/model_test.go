// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conv "github.com/jeranaias/bridgeai/internal/chat"
	"github.com/jeranaias/bridgeai/internal/connectivity"
	"github.com/jeranaias/bridgeai/internal/enhance"
	"github.com/jeranaias/bridgeai/internal/transport"
	"github.com/jeranaias/bridgeai/internal/ui/styles"
)

// =============================================================================
// HELPERS
// =============================================================================

// staticStreamer answers every question with the same SSE body.
type staticStreamer struct {
	body string
}

func (s staticStreamer) Chat(ctx context.Context, req transport.ChatRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

const offlineAnswer = "data: {\"content\":\"Hi there\",\"source\":\"offline\"}\ndata: [DONE]\n"

func newTestModel(t *testing.T, online bool) (Model, *conv.Controller) {
	t.Helper()
	ctrl := conv.New(conv.Options{
		Streamer:      staticStreamer{body: offlineAnswer},
		Monitor:       connectivity.NewStatic(online),
		PreferOnline:  true,
		FlushInterval: time.Millisecond,
		EnhanceDelay:  time.Millisecond,
		Settings:      enhance.Settings{AutoEnhance: false, MaxMessages: 5},
	})
	t.Cleanup(ctrl.Close)

	m := New(ctrl, styles.NewTheme(), Options{Version: "test", Gateway: "127.0.0.1:8787"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), ctrl
}

// collect runs cmd, expanding batches, and returns the messages produced.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func sendDone(t *testing.T, cmd tea.Cmd) SendDoneMsg {
	t.Helper()
	for _, msg := range collect(cmd) {
		if done, ok := msg.(SendDoneMsg); ok {
			return done
		}
	}
	t.Fatal("no SendDoneMsg produced")
	return SendDoneMsg{}
}

// ask types query, presses Enter and feeds the finished answer back.
func ask(t *testing.T, m Model, query string) Model {
	t.Helper()
	m.input.SetValue(query)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.True(t, m.generating)

	next, _ = m.Update(sendDone(t, cmd))
	return next.(Model)
}

func press(m Model, kt tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: kt})
	return next.(Model), cmd
}

// =============================================================================
// SENDING
// =============================================================================

func TestModel_SubmitShowsAnswer(t *testing.T) {
	m, ctrl := newTestModel(t, false)

	m = ask(t, m, "hello")

	assert.False(t, m.generating)
	assert.Empty(t, m.input.Value())
	require.Len(t, ctrl.Messages(), 2)

	view := m.View()
	assert.Contains(t, view, "hello")
	assert.Contains(t, view, "Hi there")
	assert.Contains(t, view, "OFFLINE")
}

func TestModel_EmptyInputIsIgnored(t *testing.T) {
	m, ctrl := newTestModel(t, true)

	m.input.SetValue("   ")
	m, cmd := press(m, tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.False(t, m.generating)
	assert.Empty(t, ctrl.Messages())
}

func TestModel_SubmitWhileGenerating(t *testing.T) {
	m, _ := newTestModel(t, true)
	m.generating = true

	m.input.SetValue("second question")
	m, cmd := press(m, tea.KeyEnter)

	assert.Nil(t, cmd)
	assert.Equal(t, "second question", m.input.Value(), "input is kept for later")
	require.NotEmpty(t, m.Notices())
	assert.Contains(t, m.Notices()[0], "still streaming")
}

func TestModel_SendErrorBecomesNotice(t *testing.T) {
	m, _ := newTestModel(t, true)
	m.generating = true

	next, _ := m.Update(SendDoneMsg{Err: errors.New("gateway down")})
	m = next.(Model)

	assert.False(t, m.generating)
	require.Len(t, m.Notices(), 1)
	assert.Contains(t, m.Notices()[0], "gateway down")
}

// =============================================================================
// KEYS
// =============================================================================

func TestModel_CtrlCQuitsWhenIdle(t *testing.T) {
	m, _ := newTestModel(t, true)

	_, cmd := press(m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_EscStopsAnswerInsteadOfQuitting(t *testing.T) {
	m, _ := newTestModel(t, true)
	m.generating = true

	m, cmd := press(m, tea.KeyEsc)
	assert.Nil(t, cmd)
	assert.True(t, m.generating, "generating ends with SendDoneMsg")
}

func TestModel_ModeToggle(t *testing.T) {
	m, ctrl := newTestModel(t, true)
	require.True(t, ctrl.PreferOnline())

	m, _ = press(m, tea.KeyCtrlO)
	assert.False(t, ctrl.PreferOnline())
	assert.Contains(t, m.renderStatusBar(), "OFFLINE")

	m, _ = press(m, tea.KeyCtrlO)
	assert.True(t, ctrl.PreferOnline())
	assert.Contains(t, m.renderStatusBar(), "ONLINE")
}

func TestModel_ForcedOfflineBadge(t *testing.T) {
	m, ctrl := newTestModel(t, true)
	assert.NotContains(t, m.renderStatusBar(), "[OFFLINE]")

	ctrl.SetForcedOffline(true)
	bar := m.renderStatusBar()
	assert.Contains(t, bar, ctrl.Gate().StatusBadge())
	assert.Contains(t, bar, "forced")
	assert.NotContains(t, bar, "ONLINE")

	ctrl.SetForcedOffline(false)
	assert.Contains(t, m.renderStatusBar(), "ONLINE")
}

func TestModel_SelectionWraps(t *testing.T) {
	m, _ := newTestModel(t, false)
	m = ask(t, m, "one")
	m = ask(t, m, "two")

	m, _ = press(m, tea.KeyCtrlP)
	assert.Equal(t, 2, m.selected)
	m, _ = press(m, tea.KeyCtrlP)
	assert.Equal(t, 1, m.selected)
	m, _ = press(m, tea.KeyCtrlP)
	assert.Equal(t, 1, m.selected, "stays on the first answer")

	m, _ = press(m, tea.KeyCtrlN)
	assert.Equal(t, 2, m.selected)
	m, _ = press(m, tea.KeyCtrlN)
	assert.Equal(t, 0, m.selected, "past the last answer follows the latest again")
}

func TestModel_HelpOverlay(t *testing.T) {
	m, _ := newTestModel(t, true)

	m, _ = press(m, tea.KeyF1)
	require.True(t, m.showHelp)
	assert.Contains(t, m.View(), "/enhance [N]")

	m, _ = press(m, tea.KeyEsc)
	assert.False(t, m.showHelp)
}

// =============================================================================
// ENHANCEMENT
// =============================================================================

func TestModel_EnhanceQueuesOfflineAnswer(t *testing.T) {
	m, ctrl := newTestModel(t, false)
	m = ask(t, m, "hello")

	answer := m.answers()[0]
	require.True(t, answer.Enhanceable())

	m, _ = press(m, tea.KeyCtrlE)
	assert.Equal(t, enhance.StateQueued, ctrl.EnhanceState(answer.ID))
	assert.Contains(t, strings.Join(m.Notices(), "\n"), "queued until the connection is back")
	assert.Contains(t, m.View(), "queued for enhancement")

	m, _ = press(m, tea.KeyCtrlT)
	assert.Contains(t, m.View(), "Enhancement queue (1)")

	m, _ = press(m, tea.KeyCtrlE)
	assert.Equal(t, enhance.StateIdle, ctrl.EnhanceState(answer.ID))
}

func TestModel_SlashCommands(t *testing.T) {
	m, ctrl := newTestModel(t, false)
	m = ask(t, m, "hello")

	m.input.SetValue("/offline")
	m, _ = press(m, tea.KeyEnter)
	assert.False(t, ctrl.PreferOnline())

	m.input.SetValue("/view 1")
	m, _ = press(m, tea.KeyEnter)
	assert.Contains(t, strings.Join(m.Notices(), "\n"), "has no enhanced version")

	m.input.SetValue("/enhance 3")
	m, _ = press(m, tea.KeyEnter)
	assert.Contains(t, strings.Join(m.Notices(), "\n"), "3")

	m.input.SetValue("/bogus")
	m, _ = press(m, tea.KeyEnter)
	assert.Contains(t, strings.Join(m.Notices(), "\n"), "unknown command /bogus")

	m.input.SetValue("/clear")
	m, cmd := press(m, tea.KeyEnter)
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	next, _ := m.Update(msgs[0])
	m = next.(Model)
	assert.Empty(t, ctrl.Messages())
	assert.Contains(t, m.View(), "Ask anything.")
}

func TestModel_DescribeNotifications(t *testing.T) {
	m, _ := newTestModel(t, false)
	m = ask(t, m, "hello")
	id := m.answers()[0].ID

	tests := []struct {
		n    enhance.Notification
		want string
	}{
		{enhance.Notification{MessageID: id, Kind: enhance.KindStarted}, "Enhancing answer #1"},
		{enhance.Notification{MessageID: id, Kind: enhance.KindEnhanced, Duration: time.Second}, "Enhanced answer #1 online"},
		{enhance.Notification{MessageID: id, Kind: enhance.KindFailed, Err: errors.New("boom")}, "boom"},
		{enhance.Notification{MessageID: "gone", Kind: enhance.KindSkipped, Err: errors.New("cleared")}, "Skipped answer: cleared"},
	}
	for _, tt := range tests {
		assert.Contains(t, m.describe(tt.n), tt.want)
	}
}

// =============================================================================
// BRIDGE
// =============================================================================

func TestBind_ForwardsUpdates(t *testing.T) {
	_, ctrl := newTestModel(t, true)

	got := make(chan tea.Msg, 4)
	stop := Bind(ctrl, func(msg tea.Msg) { got <- msg })
	defer stop()

	ctrl.SetForcedOffline(true)

	select {
	case msg := <-got:
		update, ok := msg.(ControllerUpdateMsg)
		require.True(t, ok)
		assert.Equal(t, conv.UpdateConnectivity, update.Update.Kind)
		assert.False(t, update.Update.Online)
	case <-time.After(2 * time.Second):
		t.Fatal("update was not forwarded")
	}
}

func TestModel_ConnectivityNotice(t *testing.T) {
	m, _ := newTestModel(t, true)

	next, _ := m.Update(ControllerUpdateMsg{Update: conv.Update{Kind: conv.UpdateConnectivity, Online: false}})
	m = next.(Model)
	require.Len(t, m.Notices(), 1)
	assert.Contains(t, m.Notices()[0], "Connection lost")

	next, _ = m.Update(ControllerUpdateMsg{Update: conv.Update{Kind: conv.UpdateConnectivity, Online: true}})
	m = next.(Model)
	assert.Contains(t, m.Notices()[1], "Back online")
}

func TestModel_NoticesExpire(t *testing.T) {
	m, _ := newTestModel(t, true)
	now := time.Now()
	m.now = func() time.Time { return now }

	for i := 0; i < maxNotices+2; i++ {
		m.addNotice("notice")
	}
	assert.Len(t, m.Notices(), maxNotices)

	now = now.Add(noticeTTL + time.Second)
	m.refresh()
	assert.Empty(t, m.Notices())
}
