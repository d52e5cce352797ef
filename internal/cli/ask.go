// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command.
//
// Command: ask
// Short:   Ask a single question
//
// Examples:
//   bridgeai ask "What is a goroutine?"
//   bridgeai ask --offline "Summarise RFC 2119"
//   echo "Explain channels" | bridgeai ask
//   bridgeai ask --json "Hello"
//
// The answer streams to stdout as it arrives. On a terminal with markdown
// enabled it is rendered with glamour once complete instead.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jeranaias/bridgeai/internal/chat"
	"github.com/jeranaias/bridgeai/internal/model"
)

// maxStdinQuery bounds a question read from a pipe.
const maxStdinQuery = 100000

// HandleAsk handles the "ask" command.
func HandleAsk(args Args) error {
	if args.Query == "" && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdinQuery+1))
		if err != nil {
			return fmt.Errorf("read question from stdin: %w", err)
		}
		args.Query = strings.TrimSpace(string(data))
	}
	if strings.TrimSpace(args.Query) == "" {
		return &UsageError{Command: "ask", Hint: `a question is required, e.g. bridgeai ask "What is a goroutine?"`}
	}

	rt, err := NewRuntime(args)
	if err != nil {
		return err
	}

	// Ctrl+C stops the answer; what arrived so far is kept.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Close()

	markdown := rt.Config.UI.Markdown && !args.NoMarkdown
	return runAsk(ctx, os.Stdout, os.Stderr, rt.Controller, args, markdown)
}

// runAsk sends args.Query through ctrl and prints the answer to out.
// Notices go to errOut so piped answers stay clean.
func runAsk(ctx context.Context, out, errOut io.Writer, ctrl *chat.Controller, args Args, markdown bool) error {
	render := markdown && !args.JSON && IsStdoutTTY()
	streaming := !args.JSON && !render

	ctrl.OnUpdate(func(u chat.Update) {
		switch u.Kind {
		case chat.UpdateContent:
			if streaming {
				fmt.Fprint(out, u.Text)
			}
		case chat.UpdateFallback:
			if !args.Quiet && !args.JSON {
				fmt.Fprintln(errOut, WarningStyle.Render("[online model unavailable, answering with the local model]"))
			}
		}
	})

	if !args.Quiet && !args.JSON && !ctrl.RequestOnline() {
		fmt.Fprintln(errOut, DimStyle.Render("(offline: answering with the local model)"))
	}

	msg, err := ctrl.Send(ctx, args.Query)
	if err != nil {
		if streaming && !msg.Failed && msg.Text != "" {
			fmt.Fprintln(out)
		}
		return err
	}

	if args.JSON {
		return NewJSONResponse("ask", AskData{
			Query:      args.Query,
			Answer:     msg.Text,
			Source:     string(msg.Source),
			Fallback:   msg.FallbackOccurred,
			SessionID:  ctrl.SessionID(),
			DurationMs: msg.Duration.Milliseconds(),
		}).Write(out)
	}

	if render {
		displayResponse(out, msg.Text, true)
	} else if !strings.HasSuffix(msg.Text, "\n") {
		fmt.Fprintln(out)
	}

	if args.Verbose {
		fmt.Fprintf(errOut, "%s %s\n", RenderBadge(msg.Source.Badge()), DimStyle.Render(msg.Duration.Round(time.Millisecond).String()))
	}
	return nil
}

// answerSummary is the one-line footer printed under an answer in chat.
func answerSummary(msg model.Message, index int) string {
	parts := []string{fmt.Sprintf("#%d", index)}
	if b := RenderBadge(msg.Source.Badge()); b != "" {
		parts = append(parts, b)
	}
	if msg.FallbackOccurred {
		parts = append(parts, WarningStyle.Render("fallback"))
	}
	if msg.Duration > 0 {
		parts = append(parts, DimStyle.Render(msg.Duration.Round(time.Millisecond).String()))
	}
	if msg.Enhanceable() {
		parts = append(parts, DimStyle.Render(fmt.Sprintf("/enhance %d to re-run online", index)))
	}
	return strings.Join(parts, " ")
}
