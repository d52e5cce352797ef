// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	robcron "github.com/robfig/cron/v3"

	"github.com/jeranaias/bridgeai/internal/offline"
	"github.com/jeranaias/bridgeai/internal/util"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "BRIDGEAI_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete bridgeai configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Client is the chat front end talking to a gateway.
	Client ClientConfig `toml:"client" json:"client"`

	// Enhance controls re-running offline answers online.
	Enhance EnhanceConfig `toml:"enhance" json:"enhance"`

	// Connectivity controls the gateway health probe.
	Connectivity ConnectivityConfig `toml:"connectivity" json:"connectivity"`

	// Gateway configures the bundled gateway server.
	Gateway GatewayConfig `toml:"gateway" json:"gateway"`

	UI UIConfig `toml:"ui" json:"ui"`
}

// ClientConfig contains chat client settings.
type ClientConfig struct {
	GatewayURL      string `toml:"gateway_url" json:"gateway_url" env:"GATEWAY_URL"`
	DefaultMode     string `toml:"default_mode" json:"default_mode" env:"MODE"` // online, offline
	ForceOffline    bool   `toml:"force_offline" json:"force_offline" env:"OFFLINE"`
	FlushIntervalMs int    `toml:"flush_interval_ms" json:"flush_interval_ms" env:"FLUSH_INTERVAL_MS"`
	Verbose         bool   `toml:"verbose" json:"verbose" env:"VERBOSE"`
}

// EnhanceConfig contains enhancement trigger settings.
type EnhanceConfig struct {
	AutoEnhance   bool `toml:"auto_enhance" json:"auto_enhance" env:"AUTO_ENHANCE"`
	EnhanceRecent bool `toml:"enhance_recent" json:"enhance_recent" env:"ENHANCE_RECENT"`
	MaxMessages   int  `toml:"max_messages" json:"max_messages" env:"ENHANCE_MAX_MESSAGES"`
	DelayMs       int  `toml:"delay_ms" json:"delay_ms" env:"ENHANCE_DELAY_MS"`
}

// ConnectivityConfig contains health probe settings.
type ConnectivityConfig struct {
	// ProbeSchedule is a cron expression or descriptor such as "@every 10s".
	ProbeSchedule    string `toml:"probe_schedule" json:"probe_schedule" env:"PROBE_SCHEDULE"`
	ProbeTimeoutSecs int    `toml:"probe_timeout_secs" json:"probe_timeout_secs" env:"PROBE_TIMEOUT_SECS"`
}

// GatewayConfig contains settings of the gateway server.
type GatewayConfig struct {
	Listen string `toml:"listen" json:"listen" env:"GATEWAY_LISTEN"`

	// Offline disables the online model on the gateway side.
	Offline bool `toml:"offline" json:"offline" env:"GATEWAY_OFFLINE"`

	OllamaURL   string `toml:"ollama_url" json:"ollama_url" env:"OLLAMA_URL"`
	OllamaModel string `toml:"ollama_model" json:"ollama_model" env:"OLLAMA_MODEL"`

	// CloudURL is the base of an OpenAI-compatible API. An empty key leaves
	// the online model unconfigured.
	CloudURL   string `toml:"cloud_url" json:"cloud_url" env:"CLOUD_URL"`
	CloudKey   string `toml:"cloud_key" json:"cloud_key" env:"CLOUD_KEY"`
	CloudModel string `toml:"cloud_model" json:"cloud_model" env:"CLOUD_MODEL"`

	SystemPrompt string `toml:"system_prompt" json:"system_prompt" env:"SYSTEM_PROMPT"`
	HistoryTurns int    `toml:"history_turns" json:"history_turns" env:"HISTORY_TURNS"`

	// HistoryBackend is memory, sqlite or redis.
	HistoryBackend  string `toml:"history_backend" json:"history_backend" env:"HISTORY_BACKEND"`
	HistoryPath     string `toml:"history_path" json:"history_path" env:"HISTORY_PATH"`
	RedisURL        string `toml:"redis_url" json:"redis_url" env:"REDIS_URL"`
	HistoryTTLHours int    `toml:"history_ttl_hours" json:"history_ttl_hours" env:"HISTORY_TTL_HOURS"`

	NetworkCheckURL  string `toml:"network_check_url" json:"network_check_url" env:"NETWORK_CHECK_URL"`
	NetworkCacheSecs int    `toml:"network_cache_secs" json:"network_cache_secs" env:"NETWORK_CACHE_SECS"`

	RateLimit      float64  `toml:"rate_limit" json:"rate_limit" env:"RATE_LIMIT"` // requests per second per client
	RateBurst      int      `toml:"rate_burst" json:"rate_burst" env:"RATE_BURST"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// UIConfig contains display settings.
type UIConfig struct {
	Theme    string `toml:"theme" json:"theme" env:"THEME"` // dark, light, auto
	Markdown bool   `toml:"markdown" json:"markdown" env:"MARKDOWN"`
	ShowTray bool   `toml:"show_tray" json:"show_tray" env:"SHOW_TRAY"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Client: ClientConfig{
			GatewayURL:      "http://localhost:8000",
			DefaultMode:     "online",
			FlushIntervalMs: 50,
		},
		Enhance: EnhanceConfig{
			AutoEnhance:   true,
			EnhanceRecent: true,
			MaxMessages:   5,
			DelayMs:       500,
		},
		Connectivity: ConnectivityConfig{
			ProbeSchedule:    "@every 10s",
			ProbeTimeoutSecs: 3,
		},
		Gateway: GatewayConfig{
			Listen:           "127.0.0.1:8000",
			OllamaURL:        "http://localhost:11434",
			OllamaModel:      "llama3.2",
			CloudURL:         "https://api.openai.com/v1",
			CloudModel:       "gpt-4o-mini",
			SystemPrompt:     "You are a helpful assistant.",
			HistoryTurns:     8,
			HistoryBackend:   "memory",
			HistoryTTLHours:  24,
			NetworkCheckURL:  "https://www.google.com/generate_204",
			NetworkCacheSecs: 10,
			RateLimit:        2,
			RateBurst:        10,
			AllowedOrigins:   []string{"*"},
		},
		UI: UIConfig{
			Theme:    "auto",
			Markdown: true,
			ShowTray: true,
		},
	}
}

// fillDefaults fills in zero values that have no meaning of their own.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Client.GatewayURL == "" {
		cfg.Client.GatewayURL = defaults.Client.GatewayURL
	}
	if cfg.Client.DefaultMode == "" {
		cfg.Client.DefaultMode = defaults.Client.DefaultMode
	}
	if cfg.Client.FlushIntervalMs == 0 {
		cfg.Client.FlushIntervalMs = defaults.Client.FlushIntervalMs
	}
	if cfg.Connectivity.ProbeSchedule == "" {
		cfg.Connectivity.ProbeSchedule = defaults.Connectivity.ProbeSchedule
	}
	if cfg.Connectivity.ProbeTimeoutSecs == 0 {
		cfg.Connectivity.ProbeTimeoutSecs = defaults.Connectivity.ProbeTimeoutSecs
	}
	if cfg.Gateway.Listen == "" {
		cfg.Gateway.Listen = defaults.Gateway.Listen
	}
	if cfg.Gateway.OllamaURL == "" {
		cfg.Gateway.OllamaURL = defaults.Gateway.OllamaURL
	}
	if cfg.Gateway.OllamaModel == "" {
		cfg.Gateway.OllamaModel = defaults.Gateway.OllamaModel
	}
	if cfg.Gateway.HistoryTurns == 0 {
		cfg.Gateway.HistoryTurns = defaults.Gateway.HistoryTurns
	}
	if cfg.Gateway.HistoryBackend == "" {
		cfg.Gateway.HistoryBackend = defaults.Gateway.HistoryBackend
	}
	if cfg.Gateway.NetworkCacheSecs == 0 {
		cfg.Gateway.NetworkCacheSecs = defaults.Gateway.NetworkCacheSecs
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// DURATION HELPERS
// =============================================================================

// FlushInterval returns the stream flush interval.
func (c ClientConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// Online reports whether new turns should ask for the online model.
func (c ClientConfig) Online() bool {
	return strings.EqualFold(c.DefaultMode, "online") && !c.ForceOffline
}

// Delay returns the pause between enhancement items.
func (c EnhanceConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// ProbeTimeout returns the health probe timeout.
func (c ConnectivityConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSecs) * time.Second
}

// NetworkCacheTTL returns how long a network check result is reused.
func (c GatewayConfig) NetworkCacheTTL() time.Duration {
	return time.Duration(c.NetworkCacheSecs) * time.Second
}

// HistoryTTL returns how long an idle session history is kept by the redis
// backend.
func (c GatewayConfig) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLHours) * time.Hour
}

// CloudConfigured reports whether the online model can be used at all.
func (c GatewayConfig) CloudConfigured() bool {
	return !c.Offline && c.CloudKey != "" && c.CloudURL != ""
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the bridgeai configuration directory. BRIDGEAI_HOME
// overrides the default ~/.bridgeai.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".bridgeai"), nil
}

// ConfigPath returns the path of the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ensureSecurePermissions tightens a config file to 0600; it may hold an
// API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads the default config file, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		return finish(cfg)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads a TOML (or, by extension, JSON) file on top of the
// defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config %s: %w", path, err)
		}
	} else if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides overwrites fields whose BRIDGEAI_* variable is set.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML atomically writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# bridgeai configuration file\n")
	buf.WriteString("# Environment variables (BRIDGEAI_*) override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Client
	if err := offline.ValidateURL(c.Client.GatewayURL, false); err != nil {
		add("client.gateway_url", "%v", err)
	}
	if m := strings.ToLower(c.Client.DefaultMode); m != "online" && m != "offline" {
		add("client.default_mode", "invalid mode '%s', must be one of: online, offline", c.Client.DefaultMode)
	}
	if c.Client.FlushIntervalMs < 1 || c.Client.FlushIntervalMs > 1000 {
		add("client.flush_interval_ms", "must be 1-1000, got %d", c.Client.FlushIntervalMs)
	}

	// Enhance
	if c.Enhance.MaxMessages < 1 || c.Enhance.MaxMessages > 20 {
		add("enhance.max_messages", "must be 1-20, got %d", c.Enhance.MaxMessages)
	}
	if c.Enhance.DelayMs < 0 {
		add("enhance.delay_ms", "cannot be negative")
	}

	// Connectivity
	parser := robcron.NewParser(robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor)
	if _, err := parser.Parse(c.Connectivity.ProbeSchedule); err != nil {
		add("connectivity.probe_schedule", "%v", err)
	}
	if c.Connectivity.ProbeTimeoutSecs < 1 || c.Connectivity.ProbeTimeoutSecs > 60 {
		add("connectivity.probe_timeout_secs", "must be 1-60, got %d", c.Connectivity.ProbeTimeoutSecs)
	}

	// Gateway
	if err := offline.ValidateURL(c.Gateway.OllamaURL, false); err != nil {
		add("gateway.ollama_url", "%v", err)
	}
	if c.Gateway.CloudURL != "" {
		if err := offline.ValidateURL(c.Gateway.CloudURL, false); err != nil {
			add("gateway.cloud_url", "%v", err)
		}
	}
	if c.Gateway.HistoryTurns < 1 || c.Gateway.HistoryTurns > 100 {
		add("gateway.history_turns", "must be 1-100, got %d", c.Gateway.HistoryTurns)
	}
	switch c.Gateway.HistoryBackend {
	case "memory":
	case "sqlite":
		if c.Gateway.HistoryPath == "" {
			add("gateway.history_path", "required for the sqlite backend")
		}
	case "redis":
		if c.Gateway.RedisURL == "" {
			add("gateway.redis_url", "required for the redis backend")
		}
	default:
		add("gateway.history_backend", "invalid backend '%s', must be one of: memory, sqlite, redis", c.Gateway.HistoryBackend)
	}
	if c.Gateway.RateLimit < 0 {
		add("gateway.rate_limit", "cannot be negative")
	}
	if c.Gateway.RateLimit > 0 && c.Gateway.RateBurst < 1 {
		add("gateway.rate_burst", "must be at least 1 when rate_limit is set")
	}

	// UI
	if t := c.UI.Theme; t != "dark" && t != "light" && t != "auto" {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", t)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "enhance.max_messages").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct following the toml tags of key.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, strings.ToLower(part))
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(strVal)))
			if err != nil {
				switch strings.ToLower(strVal) {
				case "yes", "on":
					boolVal = true
				case "no", "off":
					boolVal = false
				default:
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("toml"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			collectKeys(f.Type, prefix+name+".", keys)
			continue
		}
		*keys = append(*keys, prefix+name)
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Gateway.AllowedOrigins = append([]string(nil), c.Gateway.AllowedOrigins...)
	return &clone
}

// String returns the config as JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Gateway.CloudKey != "" {
		safe.Gateway.CloudKey = "[REDACTED]"
	}
	if safe.Gateway.RedisURL != "" {
		safe.Gateway.RedisURL = redactURL(safe.Gateway.RedisURL)
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// redactURL hides the userinfo part of a URL.
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "[REDACTED]" + raw[at:]
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
