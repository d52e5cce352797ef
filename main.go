// bridgeai - A hybrid online/offline assistant for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/bridgeai/internal/cli"
	"github.com/jeranaias/bridgeai/internal/config"
	"github.com/jeranaias/bridgeai/internal/gateway"
	"github.com/jeranaias/bridgeai/internal/ui/chat"
	"github.com/jeranaias/bridgeai/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// logFileName is where diagnostics go while a terminal UI owns the screen.
const logFileName = "bridgeai.log"

func init() {
	// Sync version info with the packages that report it
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
	gateway.Version = Version
}

func main() {
	cmd, args := cli.Parse()

	closeLog := setupLogging(cmd, args)
	defer closeLog()

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI(args)
	case cli.CmdAsk:
		err = cli.HandleAsk(args)
	case cli.CmdChat:
		err = cli.HandleChat(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdGateway:
		err = cli.HandleGateway(args)
	case cli.CmdVersion:
		err = cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.PrintUsage()
		return
	default:
		err = runTUI(args)
	}

	if err != nil {
		closeLog()
		cli.HandleErrorAndExit(cmd.String(), err, args.JSON)
	}
}

// setupLogging sends log output to a file in the config directory, except
// for the gateway and in verbose mode where it stays on stderr.
func setupLogging(cmd cli.Command, args cli.Args) func() {
	if cmd == cli.CmdGateway || args.Verbose {
		return func() {}
	}
	dir, err := config.ConfigDir()
	if err == nil {
		err = config.EnsureConfigDir()
	}
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	f, err := tea.LogToFile(filepath.Join(dir, logFileName), "bridgeai")
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	return func() { f.Close() }
}

// runTUI starts the full-screen chat view.
func runTUI(args cli.Args) error {
	if err := cli.RequiresTTY("bridgeai"); err != nil {
		return err
	}

	rt, err := cli.NewRuntime(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Close()

	m := chat.New(rt.Controller, styles.NewTheme(), chat.Options{
		Version: Version,
		Gateway: rt.Config.Client.GatewayURL,
	}).WithContext(ctx)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse wheel scrolling
		tea.WithContext(ctx),
	)

	unbind := chat.Bind(rt.Controller, p.Send)
	defer unbind()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}
