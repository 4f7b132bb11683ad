package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/banner"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/bot"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/config"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/logging"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/metrics"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/router"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/session"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/tracker"
)

// startFlags override values from the config file when set.
type startFlags struct {
	channel     string
	fullName    string
	nick        string
	server      string
	port        int
	tls         bool
	logLevel    string
	storageFile string
	workers     int
	metricsAddr string
}

func newStartCmd(configPath *string) *cobra.Command {
	var f startFlags

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Connect to IRC and serve commands",
		Long: `Connect to the configured IRC server, join the channel and answer
commands until interrupted.

Examples:
  trakbot start
  trakbot start -s irc.libera.chat -c myteam -n trakbot
  trakbot start -s wss://irc.example.com/webirc -c myteam`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			applyStartFlags(cmd, cfg, &f)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}

			banner.StartupBanner(cmd.ErrOrStderr(), version, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.channel, "channel", "c", "", "channel to join, without '#'")
	flags.StringVarP(&f.fullName, "full-name", "f", "", "IRC real name")
	flags.StringVarP(&f.nick, "nick", "n", "", "IRC nick, also the command trigger")
	flags.StringVarP(&f.server, "server", "s", "", "IRC server host, or ws:// / wss:// URL")
	flags.IntVarP(&f.port, "port", "p", 0, "IRC server port")
	flags.BoolVar(&f.tls, "tls", false, "connect with TLS")
	flags.StringVarP(&f.logLevel, "logging", "l", "", "log level: debug, info, warn, error, fatal")
	flags.StringVarP(&f.storageFile, "storage-file", "y", "", "SQLite file holding user sessions")
	flags.IntVar(&f.workers, "workers", 0, "messages handled at once")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func applyStartFlags(cmd *cobra.Command, cfg *config.Config, f *startFlags) {
	changed := cmd.Flags().Changed
	if changed("channel") {
		cfg.Chat.Channel = f.channel
	}
	if changed("full-name") {
		cfg.Chat.FullName = f.fullName
	}
	if changed("nick") {
		cfg.Chat.Nick = f.nick
	}
	if changed("server") {
		cfg.Chat.Server = f.server
	}
	if changed("port") {
		cfg.Chat.Port = f.port
	}
	if changed("tls") {
		cfg.Chat.TLS = f.tls
	}
	if changed("logging") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("storage-file") {
		cfg.Storage.Path = f.storageFile
	}
	if changed("workers") {
		cfg.Dispatch.Workers = f.workers
	}
	if changed("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = f.metricsAddr
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logging.WithComponent("main")

	store, err := session.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() { _ = store.Close() }()

	transport := chat.NewIRC(chat.IRCConfig{
		Server:            cfg.Chat.Server,
		Port:              cfg.Chat.Port,
		TLS:               cfg.Chat.TLS,
		Password:          cfg.Chat.Password,
		Nick:              cfg.Chat.Nick,
		FullName:          cfg.Chat.FullName,
		MessagesPerSecond: cfg.Chat.MessagesPerSecond,
		Burst:             cfg.Chat.Burst,
	})
	defer func() { _ = transport.Close() }()

	cache := tracker.NewCache(tracker.ClientFactory(cfg.Tracker.BaseURL, cfg.Tracker.Timeout))

	b, err := bot.New(bot.Config{
		Trigger:   cfg.Chat.Nick,
		Channel:   cfg.Chat.Channel,
		ListAlias: cfg.Chat.ListAlias,
		Dispatch: router.Options{
			Timeout: cfg.Tracker.Timeout,
			Workers: cfg.Dispatch.Workers,
		},
	}, transport, store, cache)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Address) })
	}
	g.Go(func() error {
		// Stop the metrics server along with the bot.
		defer cancel()
		err := b.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	log.Info("Shutting down", slog.Any("error", err))
	return err
}
