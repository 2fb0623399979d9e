package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvURL, EnvToken, EnvSession} {
		t.Setenv(k, "")
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{`"30s"`, 30 * time.Second, false},
		{`"5m"`, 5 * time.Minute, false},
		{`10`, 10 * time.Second, false},
		{`1.5`, 1500 * time.Millisecond, false},
		{`"not-a-duration"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Duration != tt.want {
				t.Errorf("expected %v, got %v", tt.want, d.Duration)
			}
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Duration{Duration: 2 * time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"2m0s"` {
		t.Errorf("expected \"2m0s\", got %s", data)
	}
}

func TestLoad_JSON(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "console.json", `{
		"gateway": {"url": "wss://gw.example.com/ws", "token": "secret", "call_timeout": 5},
		"console": {"session_key": "agent:ops:main", "log_level": "debug", "response_timeout": "90s"}
	}`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.URL != "wss://gw.example.com/ws" {
		t.Errorf("wrong url: %s", cfg.Gateway.URL)
	}
	if cfg.Gateway.Token != "secret" {
		t.Errorf("wrong token: %s", cfg.Gateway.Token)
	}
	if cfg.Gateway.CallTimeout.Duration != 5*time.Second {
		t.Errorf("wrong call timeout: %v", cfg.Gateway.CallTimeout)
	}
	if cfg.Console.SessionKey != "agent:ops:main" {
		t.Errorf("wrong session: %s", cfg.Console.SessionKey)
	}
	if cfg.Console.ResponseTimeout.Duration != 90*time.Second {
		t.Errorf("wrong response timeout: %v", cfg.Console.ResponseTimeout)
	}
	if cfg.Console.SystemPollInterval.Duration != 30*time.Second {
		t.Errorf("expected default poll interval, got %v", cfg.Console.SystemPollInterval)
	}
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "console.toml", `
[gateway]
url = "ws://10.0.0.2:8787/ws"
handshake_timeout = 3

[console]
tool_verbosity = "verbose"
system_poll_interval = "1m"
history_load_limit = 50
history_db = "off"
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.URL != "ws://10.0.0.2:8787/ws" {
		t.Errorf("wrong url: %s", cfg.Gateway.URL)
	}
	if cfg.Gateway.HandshakeTimeout.Duration != 3*time.Second {
		t.Errorf("wrong handshake timeout: %v", cfg.Gateway.HandshakeTimeout)
	}
	if cfg.Console.ToolVerbosity != "verbose" {
		t.Errorf("wrong verbosity: %s", cfg.Console.ToolVerbosity)
	}
	if cfg.Console.SystemPollInterval.Duration != time.Minute {
		t.Errorf("wrong poll interval: %v", cfg.Console.SystemPollInterval)
	}
	if cfg.Console.HistoryLoadLimit != 50 {
		t.Errorf("wrong history limit: %d", cfg.Console.HistoryLoadLimit)
	}
	if cfg.Console.HistoryDB != HistoryDisabled {
		t.Errorf("wrong history db: %s", cfg.Console.HistoryDB)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "absent.json")

	if _, err := Load(path, false); err == nil {
		t.Fatal("expected error for missing file")
	}

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.URL != DefaultURL {
		t.Errorf("expected default url, got %s", cfg.Gateway.URL)
	}
	if cfg.Console.SessionKey != "agent:main:cli:dm:main" {
		t.Errorf("expected default session, got %s", cfg.Console.SessionKey)
	}
	if cfg.Console.HistoryLoadLimit != 200 {
		t.Errorf("expected default history limit, got %d", cfg.Console.HistoryLoadLimit)
	}
	if cfg.Console.ResponseTimeout.Duration != 120*time.Second {
		t.Errorf("expected default timeout, got %v", cfg.Console.ResponseTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvURL, "wss://env.example.com/ws")
	t.Setenv(EnvToken, "env-token")
	t.Setenv(EnvSession, "agent:env:main")
	path := writeTemp(t, "console.json", `{"gateway": {"url": "ws://file/ws", "token": "file-token"}}`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.URL != "wss://env.example.com/ws" {
		t.Errorf("env url not applied: %s", cfg.Gateway.URL)
	}
	if cfg.Gateway.Token != "env-token" {
		t.Errorf("env token not applied: %s", cfg.Gateway.Token)
	}
	if cfg.Console.SessionKey != "agent:env:main" {
		t.Errorf("env session not applied: %s", cfg.Console.SessionKey)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad scheme", `{"gateway": {"url": "http://gw/ws"}}`, "ws or wss"},
		{"bad log level", `{"console": {"log_level": "loud"}}`, "log_level"},
		{"bad verbosity", `{"console": {"tool_verbosity": "chatty"}}`, "tool_verbosity"},
		{"negative limit", `{"console": {"history_load_limit": -1}}`, "history_load_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeTemp(t, "console.json", tt.content), false)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeTemp(t, "console.json", `{not json`), false); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Load(writeTemp(t, "console.toml", "[gateway\n"), false); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	for _, name := range []string{"console.json", "console.toml"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Gateway.URL = "wss://saved.example.com/ws"
			cfg.Gateway.Token = "tok"
			cfg.Console.ResponseTimeout.Duration = 45 * time.Second

			path := filepath.Join(t.TempDir(), "nested", name)
			if err := Save(cfg, path); err != nil {
				t.Fatalf("save: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat: %v", err)
			}
			if info.Mode().Perm() != 0o600 {
				t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
			}

			loaded, err := Load(path, false)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.Gateway.URL != cfg.Gateway.URL || loaded.Gateway.Token != "tok" {
				t.Errorf("gateway mismatch: %+v", loaded.Gateway)
			}
			if loaded.Console.ResponseTimeout.Duration != 45*time.Second {
				t.Errorf("timeout mismatch: %v", loaded.Console.ResponseTimeout)
			}
		})
	}
}
