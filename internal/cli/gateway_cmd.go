// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// gateway_cmd.go - Gateway server command.
//
// Command: gateway
// Short:   Run the gateway server
// Aliases: serve
//
// Examples:
//   bridgeai gateway                          Serve on the configured address
//   bridgeai gateway --listen :9000           Serve on another address
//   bridgeai gateway --history sqlite         Keep history across restarts
//   bridgeai gateway --local-only             Never call the online model
//
// The online model needs gateway.cloud_key (or BRIDGEAI_CLOUD_KEY). Without
// it every answer comes from the local Ollama model.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jeranaias/bridgeai/internal/config"
	"github.com/jeranaias/bridgeai/internal/gateway"
)

// HandleGateway handles the "gateway" command. It blocks until SIGINT or
// SIGTERM.
func HandleGateway(args Args) error {
	cfg, _, err := LoadConfig(args)
	if err != nil {
		return err
	}
	gw, err := gatewayConfig(cfg, args)
	if err != nil {
		return err
	}

	srv, err := gateway.FromConfig(gw)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s listening on %s (history: %s, online model: %s)\n",
			TitleStyle.UnsetMarginBottom().Render("bridgeai gateway"), srv.Addr(), gw.HistoryBackend, onlineModelLabel(gw))
	}
	return srv.ListenAndServe(ctx)
}

// gatewayConfig applies the gateway flags to the config section.
func gatewayConfig(cfg *config.Config, args Args) (config.GatewayConfig, error) {
	gw := cfg.Gateway
	gw.AllowedOrigins = append([]string(nil), cfg.Gateway.AllowedOrigins...)

	p := NewArgParser(args.Raw)
	if listen := p.Flag("listen"); listen != "" {
		gw.Listen = listen
	}
	if backend := p.Flag("history"); backend != "" {
		switch backend {
		case "memory", "sqlite", "redis":
			gw.HistoryBackend = backend
		default:
			return gw, NewValidationError("history", backend, "must be one of memory, sqlite, redis")
		}
	}
	if p.BoolFlag("local-only") || args.Offline {
		gw.Offline = true
	}
	if gw.HistoryBackend == "sqlite" && gw.HistoryPath == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return gw, err
		}
		if err := config.EnsureConfigDir(); err != nil {
			return gw, err
		}
		gw.HistoryPath = filepath.Join(dir, "history.db")
	}
	return gw, nil
}

func onlineModelLabel(gw config.GatewayConfig) string {
	switch {
	case gw.Offline:
		return "disabled"
	case gw.CloudConfigured():
		return gw.CloudModel
	default:
		return "not configured"
	}
}
