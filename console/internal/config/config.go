// Package config handles console configuration loading and validation.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gsv-labs/gsv/console/internal/sessionkey"
)

// Environment variables that override the file.
const (
	EnvURL     = "GSV_URL"
	EnvToken   = "GSV_TOKEN"
	EnvSession = "GSV_SESSION"
)

// DefaultURL is the gateway a fresh install talks to.
const DefaultURL = "ws://localhost:8787/ws"

// HistoryDisabled as console.history_db turns input history persistence
// off.
const HistoryDisabled = "off"

// Config is the top-level console configuration.
type Config struct {
	Gateway GatewayConfig `json:"gateway" toml:"gateway"`
	Console ConsoleConfig `json:"console" toml:"console"`
}

// GatewayConfig defines how the console connects to the gateway.
type GatewayConfig struct {
	URL              string   `json:"url" toml:"url"`
	Token            string   `json:"token,omitempty" toml:"token"`
	TLSSkipVerify    bool     `json:"tls_skip_verify,omitempty" toml:"tls_skip_verify"` // dev only
	HandshakeTimeout Duration `json:"handshake_timeout,omitempty" toml:"handshake_timeout"`
	CallTimeout      Duration `json:"call_timeout,omitempty" toml:"call_timeout"`
}

// ConsoleConfig defines the terminal client's behaviour.
type ConsoleConfig struct {
	SessionKey         string   `json:"session_key,omitempty" toml:"session_key"`
	LogLevel           string   `json:"log_level,omitempty" toml:"log_level"`
	LogFile            string   `json:"log_file,omitempty" toml:"log_file"`
	HistoryDB          string   `json:"history_db,omitempty" toml:"history_db"` // "off" disables persistence
	ToolVerbosity      string   `json:"tool_verbosity,omitempty" toml:"tool_verbosity"`
	ResponseTimeout    Duration `json:"response_timeout,omitempty" toml:"response_timeout"`
	SystemPollInterval Duration `json:"system_poll_interval,omitempty" toml:"system_poll_interval"`
	HistoryLoadLimit   int      `json:"history_load_limit,omitempty" toml:"history_load_limit"`
}

// Duration is a config-friendly time.Duration. It accepts strings like
// "30s" or a number of seconds, in JSON and in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Duration) UnmarshalTOML(v any) error {
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = dur
	case float64:
		d.Duration = time.Duration(val * float64(time.Second))
	case int64:
		d.Duration = time.Duration(val) * time.Second
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
	return nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath is where the console looks for its config file.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "console.json"
	}
	return filepath.Join(dir, "gsv", "console.json")
}

// DefaultDataDir is where the history database and log file live.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "gsv")
}

// Load reads and validates a config file. A .toml extension selects TOML,
// anything else is JSON. A missing file is not an error when allowMissing
// is set; defaults and the environment are used instead.
func Load(path string, allowMissing bool) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case allowMissing && os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return json.Unmarshal(data, cfg)
}

// Save writes cfg to path in the format its extension selects.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.NewEncoder(f).Encode(cfg.tomlView())
	} else {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(cfg)
	}
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// tomlView renders durations as strings, which the TOML encoder cannot do
// for the embedded time.Duration on its own.
func (c *Config) tomlView() map[string]any {
	return map[string]any{
		"gateway": map[string]any{
			"url":               c.Gateway.URL,
			"token":             c.Gateway.Token,
			"tls_skip_verify":   c.Gateway.TLSSkipVerify,
			"handshake_timeout": c.Gateway.HandshakeTimeout.String(),
			"call_timeout":      c.Gateway.CallTimeout.String(),
		},
		"console": map[string]any{
			"session_key":          c.Console.SessionKey,
			"log_level":            c.Console.LogLevel,
			"log_file":             c.Console.LogFile,
			"history_db":           c.Console.HistoryDB,
			"tool_verbosity":       c.Console.ToolVerbosity,
			"response_timeout":     c.Console.ResponseTimeout.String(),
			"system_poll_interval": c.Console.SystemPollInterval.String(),
			"history_load_limit":   c.Console.HistoryLoadLimit,
		},
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.Gateway.URL = v
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.Gateway.Token = v
	}
	if v, ok := lookup(EnvSession); ok && v != "" {
		c.Console.SessionKey = v
	}
}

// Validate checks a config assembled outside Load, e.g. after flag
// overrides.
func (c *Config) Validate() error { return c.validate() }

func (c *Config) validate() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	u, err := url.Parse(c.Gateway.URL)
	if err != nil {
		return fmt.Errorf("gateway.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("gateway.url must use ws or wss, got %q", u.Scheme)
	}
	switch c.Console.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("console.log_level must be debug, info, warn, or error")
	}
	switch c.Console.ToolVerbosity {
	case "quiet", "normal", "verbose":
	default:
		return fmt.Errorf("console.tool_verbosity must be quiet, normal, or verbose")
	}
	if c.Console.HistoryLoadLimit < 0 {
		return fmt.Errorf("console.history_load_limit must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Gateway.URL == "" {
		c.Gateway.URL = DefaultURL
	}
	if c.Gateway.HandshakeTimeout.Duration == 0 {
		c.Gateway.HandshakeTimeout.Duration = 10 * time.Second
	}
	if c.Gateway.CallTimeout.Duration == 0 {
		c.Gateway.CallTimeout.Duration = 30 * time.Second
	}
	if c.Console.SessionKey == "" {
		c.Console.SessionKey = sessionkey.Default
	}
	if c.Console.LogLevel == "" {
		c.Console.LogLevel = "info"
	}
	if c.Console.LogFile == "" {
		c.Console.LogFile = filepath.Join(DefaultDataDir(), "console.log")
	}
	if c.Console.HistoryDB == "" {
		c.Console.HistoryDB = filepath.Join(DefaultDataDir(), "history.db")
	}
	if c.Console.ToolVerbosity == "" {
		c.Console.ToolVerbosity = "normal"
	}
	if c.Console.ResponseTimeout.Duration == 0 {
		c.Console.ResponseTimeout.Duration = 120 * time.Second
	}
	if c.Console.SystemPollInterval.Duration == 0 {
		c.Console.SystemPollInterval.Duration = 30 * time.Second
	}
	if c.Console.HistoryLoadLimit == 0 {
		c.Console.HistoryLoadLimit = 200
	}
}
