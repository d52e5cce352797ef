// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for bridgeai.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, validation and hot reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ClientConfig: gateway address and default mode of the chat client
//   - EnhanceConfig: enhancement triggers and batch limits
//   - ConnectivityConfig: health probe schedule
//   - GatewayConfig: backends, history store and limits of the gateway
//   - Watcher: fsnotify-based reloader
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (BRIDGEAI_*)
//   - ~/.bridgeai/config.toml (BRIDGEAI_HOME moves the directory)
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Follow edits:
//
//	w, err := config.Watch(path, func(cfg *config.Config) {
//	    scheduler.SetSettings(settingsFrom(cfg))
//	})
//	defer w.Close()
package config
