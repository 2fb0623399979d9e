package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gsv-labs/gsv/console/internal/correlator"
	"github.com/gsv-labs/gsv/console/internal/eventbus"
	"github.com/gsv-labs/gsv/console/internal/gateway"
	"github.com/gsv-labs/gsv/console/internal/state"
	"github.com/gsv-labs/gsv/console/internal/tui"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the chat console (default when no subcommand is given)",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the chat console needs an interactive terminal; use `gsv-console sessions` for scripted access")
	}

	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bus := eventbus.New()
	defer bus.Close()

	logger, closeLog, err := newLogger(cfg, bus)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("gsv console starting", "version", version, "config", configPath)

	store, inputHistory := openHistory(ctx, cfg, logger)
	var hist tui.HistoryStore
	if store != nil {
		defer func() { _ = store.Close() }()
		hist = store
	}

	session := cfg.Console.SessionKey
	router := correlator.NewRouter(session, logger)
	feed := tui.NewFeed(256)
	defer feed.Close()
	logs, connEvents := subscribeConsole(bus)

	opts := dialOptions(cfg, logger)
	opts.OnClose = func(err error) {
		e := eventbus.Event{Type: eventbus.GatewayDisconnected, Time: time.Now()}
		if err != nil {
			e.Text = err.Error()
		}
		bus.Publish(e)
	}
	conn, err := gateway.Dial(ctx, opts, feed.Handler(router))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Gateway.URL, err)
	}
	defer func() { _ = conn.Close() }()
	bus.Publish(eventbus.Event{Type: eventbus.GatewayConnected, Time: time.Now(), Text: cfg.Gateway.URL})

	verbosity, _ := state.ParseToolVerbosity(cfg.Console.ToolVerbosity)
	err = tui.Run(tui.Options{
		Context:         ctx,
		Gateway:         gateway.NewClient(conn, cfg.Gateway.CallTimeout.Duration),
		Router:          router,
		Feed:            feed,
		Bus:             logs,
		Conn:            connEvents,
		History:         hist,
		Connected:       conn.Connected,
		Logger:          logger,
		URL:             cfg.Gateway.URL,
		SessionKey:      session,
		Verbosity:       verbosity,
		ResponseTimeout: cfg.Console.ResponseTimeout.Duration,
		PollInterval:    cfg.Console.SystemPollInterval.Duration,
		HistoryLimit:    cfg.Console.HistoryLoadLimit,
		InputHistory:    inputHistory,
	})
	logger.Info("gsv console stopped")
	return err
}
