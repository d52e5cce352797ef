// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration command.
//
// Command: config
// Short:   Show or change the configuration
//
// Examples:
//   bridgeai config show
//   bridgeai config get enhance.max_messages
//   bridgeai config set enhance.max_messages 10
//   bridgeai config set gateway.history_backend sqlite
//   bridgeai config path

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/bridgeai/internal/config"
)

// HandleConfig handles the "config" command.
func HandleConfig(args Args) error {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	return runConfig(os.Stdout, path, args)
}

func runConfig(w io.Writer, path string, args Args) error {
	switch strings.ToLower(args.Subcommand) {
	case "", "show":
		cfg, err := loadConfigFile(path)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config show", cfg.String()).Write(w)
		}
		fmt.Fprintln(w, cfg.String())
		return nil

	case "get":
		if args.ConfigKey == "" {
			return &UsageError{Command: "config get", Hint: "a key is required, e.g. enhance.max_messages"}
		}
		cfg, err := loadConfigFile(path)
		if err != nil {
			return err
		}
		v, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return NewValidationError("key", args.ConfigKey, err.Error())
		}
		if isSecretKey(args.ConfigKey) {
			v = "[REDACTED]"
		}
		if args.JSON {
			return NewJSONResponse("config get", map[string]interface{}{args.ConfigKey: v}).Write(w)
		}
		fmt.Fprintln(w, v)
		return nil

	case "set":
		if args.ConfigKey == "" || args.ConfigVal == "" {
			return &UsageError{Command: "config set", Hint: "usage: bridgeai config set KEY VALUE"}
		}
		cfg, err := loadConfigFile(path)
		if err != nil {
			return err
		}
		if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
			return NewValidationError("value", args.ConfigVal, err.Error())
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.EnsureConfigDir(); err != nil {
			return err
		}
		if err := config.SaveTOML(cfg, path); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config set", map[string]string{args.ConfigKey: args.ConfigVal}).Write(w)
		}
		if !args.Quiet {
			fmt.Fprintf(w, "%s %s updated in %s\n", SuccessStyle.Render("[OK]"), args.ConfigKey, path)
		}
		return nil

	case "path":
		fmt.Fprintln(w, path)
		return nil

	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(w, k)
		}
		return nil

	default:
		return &UsageError{Command: "config", Hint: fmt.Sprintf("unknown subcommand %q (show, get, set, path, keys)", args.Subcommand)}
	}
}

// loadConfigFile loads path, or the defaults when it does not exist yet.
func loadConfigFile(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		return cfg, nil
	}
	return config.LoadFromPath(path)
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	return strings.HasSuffix(key, "_key") || strings.HasSuffix(key, "redis_url")
}
