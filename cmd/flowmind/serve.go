package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"flowmind/internal/agent"
	"flowmind/internal/channel"
	"flowmind/internal/config"
	"flowmind/internal/domain"
	"flowmind/internal/metrics"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the enabled channels, the agent loop and the proactive scanner",
		Long: `Starts Telegram and the HTTP API when enabled, the agent loop, the
background suggestion scanner and the config watcher. Press Ctrl+C to stop.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog := setupLogger(cfg.General, os.Stderr, true)
	defer closeLog()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info("configuration loaded",
		slog.String("config", cfgPath),
		slog.String("database", cfg.Database.Path),
		slog.String("defaultProvider", cfg.General.DefaultProvider),
		slog.Bool("telegram", cfg.Channels.Telegram.Enabled),
		slog.Bool("api", cfg.Channels.API.Enabled),
		slog.Bool("proactive", cfg.Proactive.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.loop.Run(gCtx)
		return nil
	})

	scanner := agent.NewProactiveScanner(agent.ProactiveConfig{
		Enabled:       cfg.Proactive.Enabled,
		Interval:      cfg.Proactive.Interval(),
		RetryInterval: cfg.Proactive.RetryInterval(),
		Store:         a.store,
		Suggester:     a.mindflow,
		Bus:           a.messages,
		Events:        a.events,
		Channel:       cfg.Proactive.Channel,
		ChatID:        cfg.Proactive.ChatID,
		Logger:        log,
	})
	g.Go(func() error {
		scanner.Run(gCtx)
		return nil
	})

	// A broken edit keeps the previous config; Watch logs the error.
	g.Go(func() error {
		if err := config.Watch(gCtx, cfgPath, log, func(next *config.Config) {
			a.reload(next, log)
		}); err != nil {
			log.Warn("config watcher disabled", "err", err)
		}
		return nil
	})

	var channels []domain.Channel

	if tc := cfg.Channels.Telegram; tc.Enabled && tc.Token != "" {
		channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
			Token:     tc.Token,
			Allowed:   tc.AllowFrom.Allowed,
			ParseMode: tc.ParseMode,
			Logger:    log,
		}))
	} else {
		log.Info("telegram channel disabled")
	}

	if ac := cfg.Channels.API; ac.Enabled {
		apiCfg := channel.APIConfig{
			Addr:      ac.Address(),
			Token:     ac.Token,
			Chat:      a.loop,
			Store:     a.store,
			Calendar:  a.calendarFlow,
			Suggester: a.mindflow,
			Events:    a.events,
			Health:    map[string]channel.Pinger{"store": a.store},
			Location:  cfg.General.Location(),
			Logger:    log,
		}
		if cfg.Metrics.Enabled {
			apiCfg.Metrics = metrics.Collector.Handler()
			apiCfg.MetricsAt = cfg.Metrics.Endpoint
		}
		channels = append(channels, channel.NewAPI(apiCfg))
	} else {
		log.Info("http api disabled")
	}

	if len(channels) == 0 {
		log.Warn("no channels enabled; only the proactive scanner will run")
	}

	for _, ch := range channels {
		g.Go(func() error {
			log.Info("starting channel", "channel", ch.Name())
			if err := ch.Start(gCtx, a.messages); err != nil {
				return fmt.Errorf("%s channel: %w", ch.Name(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down")
		done := make(chan struct{})
		go func() {
			defer close(done)
			for _, ch := range channels {
				if err := ch.Stop(); err != nil {
					log.Warn("channel stop error", "channel", ch.Name(), "err", err)
				}
			}
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Warn("shutdown timed out")
		}
		return nil
	})

	log.Info("flowmind started. Press Ctrl+C to stop.", "version", version)
	if err := g.Wait(); err != nil {
		log.Error("serve stopped with error", "err", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}
