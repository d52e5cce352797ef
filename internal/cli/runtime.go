// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Wiring shared by ask, chat and the TUI.

package cli

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/jeranaias/bridgeai/internal/chat"
	"github.com/jeranaias/bridgeai/internal/config"
	"github.com/jeranaias/bridgeai/internal/connectivity"
	"github.com/jeranaias/bridgeai/internal/enhance"
	"github.com/jeranaias/bridgeai/internal/transport"
)

// Runtime is a configured client: gateway client, connectivity watcher and
// chat controller.
type Runtime struct {
	Config     *config.Config
	ConfigPath string
	Client     *transport.Client
	Watcher    *connectivity.Watcher
	Controller *chat.Controller

	cfgWatcher *config.Watcher
}

// LoadConfig loads the config file named by args, or the default one, and
// applies the global flag overrides.
func LoadConfig(args Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = args.ConfigPath
		err  error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
		path, _ = config.ConfigPath()
	}
	if err != nil {
		return nil, "", err
	}

	if args.Gateway != "" {
		cfg.Client.GatewayURL = args.Gateway
	}
	if args.Offline {
		cfg.Client.ForceOffline = true
	}
	if args.Online {
		cfg.Client.DefaultMode = "online"
	}
	if args.Verbose {
		cfg.Client.Verbose = true
	}
	config.SetGlobal(cfg)
	return cfg, path, nil
}

// EnhanceSettings converts the config section into scheduler settings.
func EnhanceSettings(c config.EnhanceConfig) enhance.Settings {
	return enhance.Settings{
		AutoEnhance:   c.AutoEnhance,
		EnhanceRecent: c.EnhanceRecent,
		MaxMessages:   c.MaxMessages,
	}.Normalize()
}

// NewRuntime builds a runtime from the config and flags. Nothing runs until
// Start.
func NewRuntime(args Args) (*Runtime, error) {
	cfg, path, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	return NewRuntimeFromConfig(cfg, path), nil
}

// NewRuntimeFromConfig builds a runtime from an already loaded config.
// path is watched for changes after Start; it may be empty.
func NewRuntimeFromConfig(cfg *config.Config, path string) *Runtime {
	client := transport.NewClient(cfg.Client.GatewayURL).WithVerbose(cfg.Client.Verbose)
	prober := connectivity.NewProber(client).WithTimeout(cfg.Connectivity.ProbeTimeout())
	watcher := connectivity.NewWatcher(prober, cfg.Connectivity.ProbeSchedule)

	ctrl := chat.New(chat.Options{
		Streamer:      client,
		Clearer:       client,
		Monitor:       watcher,
		PreferOnline:  cfg.Client.Online(),
		ForcedOffline: cfg.Client.ForceOffline,
		FlushInterval: cfg.Client.FlushInterval(),
		EnhanceDelay:  cfg.Enhance.Delay(),
		Settings:      EnhanceSettings(cfg.Enhance),
	})
	watcher.OnChange(ctrl.Gate().Observe)

	return &Runtime{
		Config:     cfg,
		ConfigPath: path,
		Client:     client,
		Watcher:    watcher,
		Controller: ctrl,
	}
}

// Start probes the gateway once, keeps probing on the configured schedule
// and reloads enhancement settings when the config file changes.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.Watcher.Start(ctx); err != nil {
		return err
	}

	if r.ConfigPath == "" {
		return nil
	}
	if _, err := os.Stat(r.ConfigPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	w, err := config.Watch(r.ConfigPath, r.reload)
	if err != nil {
		log.Printf("CONFIG_WATCH_FAILED | path=%s error=%v", r.ConfigPath, err)
		return nil
	}
	r.cfgWatcher = w
	return nil
}

func (r *Runtime) reload(cfg *config.Config) {
	log.Printf("CONFIG_RELOADED | path=%s", r.ConfigPath)
	r.Controller.ApplySettings(EnhanceSettings(cfg.Enhance))
}

// Close stops probing and background work.
func (r *Runtime) Close() {
	if r.cfgWatcher != nil {
		_ = r.cfgWatcher.Close()
	}
	r.Watcher.Stop()
	r.Controller.Close()
}
