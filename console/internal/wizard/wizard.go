// Package wizard provides the interactive setup for gsv-console.
package wizard

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gsv-labs/gsv/console/internal/config"
	"github.com/gsv-labs/gsv/console/internal/sessionkey"
	"github.com/gsv-labs/gsv/pkg/cli"
)

var (
	toolLevels = []string{"quiet", "normal", "verbose"}
	logLevels  = []string{"debug", "info", "warn", "error"}
)

// Wizard drives the interactive console config setup.
type Wizard struct {
	p *cli.Prompter
}

// New creates a Wizard using the given Prompter.
func New(p *cli.Prompter) *Wizard {
	return &Wizard{p: p}
}

// Run asks for every setting and writes the config to path. An existing
// file seeds the defaults and is only replaced after confirmation. written
// is false when the user keeps the existing file.
func (w *Wizard) Run(path string) (written bool, err error) {
	out := w.p.Out
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "  GSV Console Setup")
	_, _ = fmt.Fprintln(out, strings.Repeat("─", 42))
	_, _ = fmt.Fprintln(out)

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		ok, err := w.p.Confirm(fmt.Sprintf("%s exists. Overwrite?", path), false)
		if err != nil {
			return false, err
		}
		if !ok {
			_, _ = fmt.Fprintln(out, "Keeping the existing config.")
			return false, nil
		}
		if existing, err := config.Load(path, false); err == nil {
			cfg = existing
		}
	}

	_, _ = fmt.Fprintln(out, "Gateway")
	if cfg.Gateway.URL, err = w.p.AskValid("  WebSocket URL", cfg.Gateway.URL, checkURL); err != nil {
		return false, err
	}
	if cfg.Gateway.Token, err = w.p.AskSecret("  Auth token", cfg.Gateway.Token); err != nil {
		return false, err
	}
	_, _ = fmt.Fprintln(out)

	_, _ = fmt.Fprintln(out, "Console")
	key, err := w.p.Ask("  Session key or agent id", cfg.Console.SessionKey)
	if err != nil {
		return false, err
	}
	if !strings.Contains(key, ":") {
		key = sessionkey.ForAgent(key)
	}
	cfg.Console.SessionKey = key

	if cfg.Console.ToolVerbosity, err = w.p.Choose("  Tool display", toolLevels, indexOf(toolLevels, cfg.Console.ToolVerbosity)); err != nil {
		return false, err
	}
	if cfg.Console.LogLevel, err = w.p.Choose("  Log level", logLevels, indexOf(logLevels, cfg.Console.LogLevel)); err != nil {
		return false, err
	}

	keep, err := w.p.Confirm("  Remember input history between runs?", cfg.Console.HistoryDB != config.HistoryDisabled)
	if err != nil {
		return false, err
	}
	switch {
	case !keep:
		cfg.Console.HistoryDB = config.HistoryDisabled
	case cfg.Console.HistoryDB == config.HistoryDisabled:
		cfg.Console.HistoryDB = filepath.Join(config.DefaultDataDir(), "history.db")
	}

	if cfg.Console.HistoryLoadLimit, err = w.p.AskInt("  Messages to load when opening a session", cfg.Console.HistoryLoadLimit, 1); err != nil {
		return false, err
	}

	if err := cfg.Validate(); err != nil {
		return false, err
	}
	if err := config.Save(cfg, path); err != nil {
		return false, err
	}

	_, _ = fmt.Fprintf(out, "\n  Config written to %s\n\n", path)
	_, _ = fmt.Fprintln(out, "  Next steps:")
	_, _ = fmt.Fprintf(out, "    gsv-console --config %s\n\n", path)
	return true, nil
}

func checkURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.New("the URL must start with ws:// or wss://")
	}
	if u.Host == "" {
		return errors.New("the URL needs a host")
	}
	return nil
}

func indexOf(options []string, v string) int {
	for i, o := range options {
		if o == v {
			return i
		}
	}
	return 0
}
