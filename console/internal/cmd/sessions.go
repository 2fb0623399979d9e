package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gsv-labs/gsv/console/internal/buffer"
	"github.com/gsv-labs/gsv/console/internal/commands"
	"github.com/gsv-labs/gsv/console/internal/gateway"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List gateway sessions without opening the console",
		Args:  cobra.NoArgs,
		RunE:  runSessions,
	}
	cmd.Flags().IntP("limit", "n", commands.DefaultSessionLimit, "maximum number of sessions to list")
	return cmd
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: max(parseLevel(cfg.Console.LogLevel), slog.LevelWarn),
	}))

	ctx := cmd.Context()
	conn, err := gateway.Dial(ctx, dialOptions(cfg, logger), nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Gateway.URL, err)
	}
	defer func() { _ = conn.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")
	client := gateway.NewClient(conn, cfg.Gateway.CallTimeout.Duration)
	for _, l := range commands.ListSessions(ctx, client, cfg.Console.SessionKey, limit) {
		if l.Role == buffer.Error {
			return errors.New(l.Text)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), l.Text)
	}
	return nil
}
