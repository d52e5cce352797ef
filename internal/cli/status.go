// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Gateway connectivity report.
//
// Command: status
// Short:   Show gateway connectivity
// Aliases: s
//
// Examples:
//   bridgeai status              Ask the gateway for its cached status
//   bridgeai status --refresh    Make the gateway re-check its network
//   bridgeai status --json       Machine-readable output

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/bridgeai/internal/config"
	"github.com/jeranaias/bridgeai/internal/connectivity"
	"github.com/jeranaias/bridgeai/internal/offline"
	"github.com/jeranaias/bridgeai/internal/transport"
)

// HandleStatus handles the "status" command.
func HandleStatus(args Args) error {
	cfg, _, err := LoadConfig(args)
	if err != nil {
		return err
	}
	client := transport.NewClient(cfg.Client.GatewayURL).WithVerbose(cfg.Client.Verbose)
	return runStatus(context.Background(), os.Stdout, client, cfg, args)
}

func runStatus(ctx context.Context, w io.Writer, checker connectivity.HealthChecker, cfg *config.Config, args Args) error {
	prober := connectivity.NewProber(checker).WithTimeout(cfg.Connectivity.ProbeTimeout())
	var st connectivity.Status
	if args.Refresh {
		st = prober.Refresh(ctx)
	} else {
		st = prober.Probe(ctx)
	}

	gate := offline.NewGate(connectivity.NewStatic(st.Online), cfg.Client.ForceOffline)
	settings := EnhanceSettings(cfg.Enhance)
	data := StatusData{
		Gateway:        cfg.Client.GatewayURL,
		Reachable:      st.Err == nil,
		Online:         gate.Online(),
		CloudAvailable: st.CloudAvailable,
		ForcedOffline:  gate.Forced(),
		Mode:           cfg.Client.DefaultMode,
		AutoEnhance:    settings.AutoEnhance,
		MaxMessages:    settings.MaxMessages,
	}
	if st.Err != nil {
		data.Error = st.Err.Error()
	}

	if args.JSON {
		return NewJSONResponse("status", data).Write(w)
	}

	fmt.Fprintln(w, TitleStyle.Render("bridgeai status"))
	reach := "ok"
	if !data.Reachable {
		reach = "unreachable"
	}
	fmt.Fprintf(w, "%s%s %s\n", RenderLabel("Gateway:"), data.Gateway, RenderStatus(reach))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Connectivity:"), RenderStatus(map[bool]string{true: "online", false: "offline"}[data.Online]))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Online model:"), RenderStatus(map[bool]string{true: "yes", false: "no"}[data.CloudAvailable]))
	if badge := gate.StatusBadge(); badge != "" {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Forced offline:"), WarningStyle.Render(badge))
	}
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Default mode:"), data.Mode)
	fmt.Fprintf(w, "%s%v (max %d)\n", RenderLabel("Auto enhance:"), data.AutoEnhance, data.MaxMessages)
	if data.Error != "" {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Error:"), ErrorStyle.Render(data.Error))
		fmt.Fprintln(w, DimStyle.Render("Start a gateway with 'bridgeai gateway' or pass --gateway URL."))
	}
	return nil
}
