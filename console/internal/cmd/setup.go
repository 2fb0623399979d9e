package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gsv-labs/gsv/console/internal/config"
	"github.com/gsv-labs/gsv/console/internal/eventbus"
	"github.com/gsv-labs/gsv/console/internal/gateway"
	"github.com/gsv-labs/gsv/console/internal/history"
	"github.com/gsv-labs/gsv/console/internal/state"
	"github.com/gsv-labs/gsv/pkg/protocol"
)

// historyKeep is how many input lines survive pruning at startup.
const historyKeep = 1000

// resolveConfigPath returns the --config flag value, or the default path.
// explicit reports whether the user named the file.
func resolveConfigPath(cmd *cobra.Command) (path string, explicit bool) {
	if f := cmd.Flags().Lookup("config"); f != nil && f.Changed {
		return f.Value.String(), true
	}
	if f := cmd.Root().PersistentFlags().Lookup("config"); f != nil && f.Changed {
		return f.Value.String(), true
	}
	return config.DefaultPath(), false
}

// loadConfig loads the config file and applies the connection flags on top.
// A missing default file is fine; a missing named file is not.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, explicit := resolveConfigPath(cmd)
	cfg, err := config.Load(path, !explicit)
	if err != nil {
		return nil, path, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("url"); v != "" {
		cfg.Gateway.URL = v
	}
	if v, _ := flags.GetString("token"); v != "" {
		cfg.Gateway.Token = v
	}
	if v, _ := flags.GetString("session"); v != "" {
		cfg.Console.SessionKey = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("validate flags: %w", err)
	}
	return cfg, path, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger writes JSON records to the configured log file and republishes
// each one on bus for the Logs buffer. The terminal belongs to the console,
// so nothing is logged to it.
func newLogger(cfg *config.Config, bus *eventbus.Bus) (*slog.Logger, func(), error) {
	path := cfg.Console.LogFile
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	inner := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: parseLevel(cfg.Console.LogLevel)})
	logger := slog.New(eventbus.NewSlogHandler(inner, bus))
	return logger, func() { _ = f.Close() }, nil
}

// subscribeConsole splits the bus into the two streams the console reads.
// Connection events get their own channel so a burst of log lines cannot
// crowd out a disconnect.
func subscribeConsole(bus *eventbus.Bus) (logs, conn chan eventbus.Event) {
	logs = bus.Subscribe(eventbus.LogEntry)
	conn = bus.Subscribe(eventbus.GatewayConnected, eventbus.GatewayDisconnected)
	return logs, conn
}

func clientInfo() protocol.ClientInfo {
	return protocol.ClientInfo{
		ID:       "gsv-console",
		Version:  version,
		Platform: runtime.GOOS,
		Mode:     "cli",
	}
}

func dialOptions(cfg *config.Config, logger *slog.Logger) gateway.Options {
	return gateway.Options{
		URL:              cfg.Gateway.URL,
		Token:            cfg.Gateway.Token,
		TLSSkipVerify:    cfg.Gateway.TLSSkipVerify,
		HandshakeTimeout: cfg.Gateway.HandshakeTimeout.Duration,
		Client:           clientInfo(),
		SessionKey:       cfg.Console.SessionKey,
		Logger:           logger,
		OnBinary: func(id uint32, data []byte) {
			logger.Debug("binary transfer frame", "transfer_id", id, "bytes", len(data))
		},
	}
}

// openHistory opens the input history store and returns the recent lines.
// Persistence is best effort: failures are logged and the console runs
// without it.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*history.Store, []string) {
	if cfg.Console.HistoryDB == config.HistoryDisabled {
		return nil, nil
	}
	store, err := history.Open(cfg.Console.HistoryDB)
	if err != nil {
		logger.Warn("input history disabled", "path", cfg.Console.HistoryDB, "err", err)
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if n, err := store.Prune(ctx, historyKeep); err != nil {
		logger.Warn("prune input history", "err", err)
	} else if n > 0 {
		logger.Debug("pruned input history", "removed", n)
	}
	lines, err := store.Recent(ctx, state.MaxInputHistory)
	if err != nil {
		logger.Warn("load input history", "err", err)
	}
	return store, lines
}
