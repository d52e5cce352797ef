// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-mode chat.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Examples:
//   bridgeai chat                  Start chatting
//   bridgeai chat --offline        Local model only
//   bridgeai chat --gateway URL    Use another gateway
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Start a new conversation
//   /enhance N, /e N    Queue or unqueue answer N for an online re-run
//   /view N, /v N       Switch answer N between offline and enhanced text
//   /tray, /t           Show queued and running enhancements
//   /history            List the answers of this conversation
//   /online, /offline   Switch the requested mode
//   /refresh            Make the gateway re-check its network
//   /settings [...]     Show or change enhancement settings
//   /status, /s         Show connectivity and session information
//   /quit, /q           Exit chat
//   Ctrl+C              Stop the answer being generated
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/bridgeai/internal/chat"
	"github.com/jeranaias/bridgeai/internal/config"
	"github.com/jeranaias/bridgeai/internal/connectivity"
	"github.com/jeranaias/bridgeai/internal/enhance"
	"github.com/jeranaias/bridgeai/internal/model"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides line editing and a persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlashCommand)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads the input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads one line. Non-empty lines are added to the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the input history with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves the history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

var slashCommands = []string{
	"/help", "/clear", "/enhance ", "/view ", "/tray", "/history",
	"/online", "/offline", "/refresh", "/settings", "/status", "/quit",
}

func completeSlashCommand(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, c := range slashCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// SESSION
// =============================================================================

// ChatSession is one interactive conversation.
type ChatSession struct {
	ctrl    *chat.Controller
	watcher *connectivity.Watcher
	out     io.Writer
	quiet   bool

	mu      sync.Mutex
	notices []string // printed before the next prompt
}

// NewChatSession creates a session writing to out. watcher may be nil.
func NewChatSession(ctrl *chat.Controller, watcher *connectivity.Watcher, out io.Writer, quiet bool) *ChatSession {
	s := &ChatSession{ctrl: ctrl, watcher: watcher, out: out, quiet: quiet}
	ctrl.OnUpdate(s.onUpdate)
	return s
}

func (s *ChatSession) onUpdate(u chat.Update) {
	switch u.Kind {
	case chat.UpdateContent:
		fmt.Fprint(s.out, u.Text)
	case chat.UpdateFallback:
		fmt.Fprint(s.out, WarningStyle.Render("[online model unavailable, answering locally] "))
	case chat.UpdateConnectivity:
		if u.Online {
			s.notice(SuccessStyle.Render("Back online."))
		} else {
			s.notice(WarningStyle.Render("Offline: answers will come from the local model."))
		}
	}
}

func (s *ChatSession) notice(text string) {
	s.mu.Lock()
	s.notices = append(s.notices, text)
	s.mu.Unlock()
}

// FlushNotices prints and drops the pending notices.
func (s *ChatSession) FlushNotices() {
	s.mu.Lock()
	notices := s.notices
	s.notices = nil
	s.mu.Unlock()
	for _, n := range notices {
		fmt.Fprintln(s.out, n)
	}
}

// collectNotifications turns enhancement progress into notices until ctx
// ends.
func (s *ChatSession) collectNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.ctrl.Notifications():
			if !ok {
				return
			}
			if text := s.describe(n); text != "" {
				s.notice(text)
			}
		}
	}
}

func (s *ChatSession) describe(n enhance.Notification) string {
	idx := s.answerIndex(n.MessageID)
	label := "answer"
	if idx > 0 {
		label = fmt.Sprintf("answer #%d", idx)
	}
	switch n.Kind {
	case enhance.KindEnhanced:
		return SuccessStyle.Render(fmt.Sprintf("Enhanced %s online (%s). Use /view %d to compare.",
			label, n.Duration.Round(time.Millisecond), idx))
	case enhance.KindFailed:
		return ErrorStyle.Render(fmt.Sprintf("Could not enhance %s: %v", label, n.Err))
	case enhance.KindSkipped:
		if s.quiet {
			return ""
		}
		return DimStyle.Render(fmt.Sprintf("Skipped %s: %v", label, n.Err))
	default:
		if s.quiet {
			return ""
		}
		return DimStyle.Render(fmt.Sprintf("Enhancing %s...", label))
	}
}

// answers returns the assistant messages in order. Answer numbers shown to
// the user are 1-based positions in this list.
func (s *ChatSession) answers() []model.Message {
	var out []model.Message
	for _, m := range s.ctrl.Messages() {
		if m.Role == model.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

func (s *ChatSession) answerIndex(id string) int {
	for i, m := range s.answers() {
		if m.ID == id {
			return i + 1
		}
	}
	return 0
}

func (s *ChatSession) answerAt(arg string) (model.Message, int, error) {
	answers := s.answers()
	if len(answers) == 0 {
		return model.Message{}, 0, errors.New("no answers yet")
	}
	if arg == "" {
		return answers[len(answers)-1], len(answers), nil
	}
	n, err := ParseIndex(arg, len(answers))
	if err != nil {
		return model.Message{}, 0, err
	}
	return answers[n-1], n, nil
}

// Ask sends one question. Ctrl+C while the answer streams cancels it.
func (s *ChatSession) Ask(ctx context.Context, query string) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCh:
			s.ctrl.Cancel()
		case <-done:
		}
	}()

	msg, err := s.ctrl.Send(ctx, query)
	if msg.Failed {
		fmt.Fprintln(s.out, ErrorStyle.Render(msg.Text))
	} else if !strings.HasSuffix(msg.Text, "\n") {
		fmt.Fprintln(s.out)
	}
	if msg.ID != "" && !s.quiet {
		fmt.Fprintln(s.out, answerSummary(msg, s.answerIndex(msg.ID)))
	}
	return err
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat handles the "chat" command.
func HandleChat(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	rt, err := NewRuntime(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Close()

	s := NewChatSession(rt.Controller, rt.Watcher, os.Stdout, args.Quiet)
	go s.collectNotifications(ctx)

	input := NewChatCLI()
	defer input.Close()

	if !args.Quiet {
		s.printWelcome(rt.Client.BaseURL())
	}

	for {
		s.FlushNotices()

		line, err := input.ReadInput(s.prompt())
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := s.HandleSlashCommand(ctx, line)
			if err != nil {
				fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("Error:"), err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := s.Ask(ctx, line); err != nil && !s.quiet {
			fmt.Fprintln(s.out, DimStyle.Render(err.Error()))
		}
	}
}

func (s *ChatSession) prompt() string {
	mode := "online"
	if !s.ctrl.RequestOnline() {
		mode = "offline"
	}
	// liner measures the prompt in runes, so it stays unstyled.
	return fmt.Sprintf("[%s] > ", mode)
}

// HandleSlashCommand runs one /command. It reports whether chat should end.
func (s *ChatSession) HandleSlashCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, rest := strings.ToLower(fields[0]), fields[1:]
	arg := ""
	if len(rest) > 0 {
		arg = rest[0]
	}

	switch cmd {
	case "/quit", "/q", "/exit":
		return true, nil

	case "/help", "/h", "/?":
		s.printHelp()

	case "/clear", "/c":
		id := s.ctrl.Clear(ctx)
		fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("New conversation."), DimStyle.Render("session "+id))

	case "/enhance", "/e":
		msg, n, err := s.answerAt(arg)
		if err != nil {
			return false, err
		}
		switch s.ctrl.EnhanceState(msg.ID) {
		case enhance.StateEnhanced:
			return false, fmt.Errorf("answer #%d is already enhanced", n)
		case enhance.StateEnhancing:
			return false, fmt.Errorf("answer #%d is being enhanced", n)
		case enhance.StateIdle:
			if !msg.Enhanceable() {
				return false, fmt.Errorf("answer #%d is not an offline answer", n)
			}
		}
		if s.ctrl.ToggleEnhance(msg.ID) {
			state := "queued"
			if !s.ctrl.Online() {
				state = "queued until the connection is back"
			}
			fmt.Fprintf(s.out, "Answer #%d %s.\n", n, state)
		} else {
			fmt.Fprintf(s.out, "Answer #%d removed from the queue.\n", n)
		}

	case "/view", "/v":
		msg, n, err := s.answerAt(arg)
		if err != nil {
			return false, err
		}
		if !s.ctrl.ToggleView(msg.ID) {
			return false, fmt.Errorf("answer #%d has no enhanced version", n)
		}
		msg, _ = s.ctrl.Message(msg.ID)
		version := "offline"
		if msg.ShowEnhanced {
			version = "enhanced"
		}
		fmt.Fprintln(s.out, TitleStyle.Render(fmt.Sprintf("Answer #%d (%s)", n, version)))
		displayResponse(s.out, msg.DisplayText(), true)

	case "/tray", "/t":
		s.printTray()

	case "/history":
		s.printHistory()

	case "/online":
		s.ctrl.SetPreferOnline(true)
		if !s.ctrl.Online() {
			fmt.Fprintln(s.out, WarningStyle.Render("Online mode selected, but the gateway is offline. Answers stay local until it is back."))
		} else {
			fmt.Fprintln(s.out, "Online mode.")
		}

	case "/offline":
		s.ctrl.SetPreferOnline(false)
		fmt.Fprintln(s.out, "Offline mode: answers come from the local model.")

	case "/refresh":
		if s.watcher == nil {
			return false, errors.New("connectivity watcher not running")
		}
		st := s.watcher.Refresh(ctx)
		fmt.Fprintf(s.out, "Gateway reports %s.\n", RenderStatus(st.Label()))

	case "/settings":
		return false, s.handleSettings(rest)

	case "/status", "/s":
		s.printStatus()

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func (s *ChatSession) handleSettings(rest []string) error {
	settings := s.ctrl.Settings()
	if len(rest) == 0 {
		s.printSettings(settings)
		return nil
	}
	if len(rest) != 2 {
		return errors.New("usage: /settings auto|recent on|off, /settings max N")
	}

	switch strings.ToLower(rest[0]) {
	case "auto":
		v, err := ParseBoolString(rest[1])
		if err != nil {
			return err
		}
		settings.AutoEnhance = v
	case "recent":
		v, err := ParseBoolString(rest[1])
		if err != nil {
			return err
		}
		settings.EnhanceRecent = v
	case "max":
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return NewValidationError("max", rest[1], "must be a whole number")
		}
		settings.MaxMessages = n
	default:
		return fmt.Errorf("unknown setting %q", rest[0])
	}

	s.ctrl.ApplySettings(settings)
	s.printSettings(s.ctrl.Settings())
	return nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *ChatSession) printWelcome(gateway string) {
	fmt.Fprintln(s.out, TitleStyle.Render("bridgeai chat"))
	status := "offline"
	if s.ctrl.Online() {
		status = "online"
	}
	fmt.Fprintf(s.out, "%s%s %s\n", RenderLabel("Gateway:"), gateway, RenderStatus(status))
	fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands, Ctrl+C to stop an answer, Ctrl+D to exit."))
	fmt.Fprintln(s.out)
}

func (s *ChatSession) printHelp() {
	fmt.Fprintln(s.out, TitleStyle.Render("Chat commands"))
	rows := [][2]string{
		{"/clear", "Start a new conversation"},
		{"/enhance [N]", "Queue or unqueue answer N (default: last) for an online re-run"},
		{"/view [N]", "Switch answer N between offline and enhanced text"},
		{"/tray", "Show queued and running enhancements"},
		{"/history", "List the answers of this conversation"},
		{"/online, /offline", "Switch the requested mode"},
		{"/refresh", "Make the gateway re-check its network"},
		{"/settings", "Show settings; /settings auto|recent on|off, /settings max N"},
		{"/status", "Show connectivity and session information"},
		{"/quit", "Exit"},
	}
	for _, r := range rows {
		fmt.Fprintf(s.out, "  %s%s\n", RenderLabel(r[0]), r[1])
	}
}

func (s *ChatSession) printTray() {
	entries := s.ctrl.Tray()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, DimStyle.Render("Enhancement queue is empty."))
		return
	}
	fmt.Fprintln(s.out, TitleStyle.Render(fmt.Sprintf("Enhancement queue (%d)", len(entries))))
	for _, e := range entries {
		state := WarningStyle.Render("queued   ")
		if e.State == enhance.StateEnhancing {
			state = InfoStyle.Render("enhancing")
		}
		fmt.Fprintf(s.out, "  #%-3d %s %s\n", s.answerIndex(e.MessageID), state, e.Question)
		fmt.Fprintf(s.out, "       %s\n", DimStyle.Render(e.Answer))
	}
}

func (s *ChatSession) printHistory() {
	answers := s.answers()
	if len(answers) == 0 {
		fmt.Fprintln(s.out, DimStyle.Render("No answers yet."))
		return
	}
	for i, m := range answers {
		state := ""
		if st := s.ctrl.EnhanceState(m.ID); st != enhance.StateIdle {
			state = DimStyle.Render("(" + st.String() + ")")
		}
		fmt.Fprintf(s.out, "  #%-3d %s %s %s\n", i+1, RenderBadge(m.Source.Badge()), m.Preview(60), state)
	}
}

func (s *ChatSession) printSettings(st enhance.Settings) {
	fmt.Fprintf(s.out, "  %s%v\n", RenderLabel("Auto enhance:"), st.AutoEnhance)
	fmt.Fprintf(s.out, "  %s%v\n", RenderLabel("Recent only:"), st.EnhanceRecent)
	fmt.Fprintf(s.out, "  %s%d\n", RenderLabel("Max messages:"), st.MaxMessages)
}

func (s *ChatSession) printStatus() {
	status := "offline"
	if s.ctrl.Online() {
		status = "online"
	}
	mode := "offline"
	if s.ctrl.PreferOnline() {
		mode = "online"
	}
	fmt.Fprintf(s.out, "  %s%s\n", RenderLabel("Connectivity:"), RenderStatus(status))
	if badge := s.ctrl.Gate().StatusBadge(); badge != "" {
		fmt.Fprintf(s.out, "  %s%s\n", RenderLabel("Forced offline:"), WarningStyle.Render(badge))
	}
	fmt.Fprintf(s.out, "  %s%s\n", RenderLabel("Requested mode:"), mode)
	fmt.Fprintf(s.out, "  %s%s\n", RenderLabel("Session:"), s.ctrl.SessionID())
	fmt.Fprintf(s.out, "  %s%s\n", RenderLabel("Session age:"), s.ctrl.SessionDuration().Round(time.Second))
	fmt.Fprintf(s.out, "  %s%d\n", RenderLabel("Answers:"), len(s.answers()))
	fmt.Fprintf(s.out, "  %s%d\n", RenderLabel("Queue:"), len(s.ctrl.Tray()))
	s.printSettings(s.ctrl.Settings())
}
