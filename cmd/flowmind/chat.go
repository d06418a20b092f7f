package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"flowmind/internal/channel"
)

func chatCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			// Only warnings reach the terminal so they do not interleave with replies.
			if cfg.General.LogLevel == "" || parseLevel(cfg.General.LogLevel) < parseLevel("warn") {
				cfg.General.LogLevel = "warn"
			}
			log, closeLog := setupLogger(cfg.General, os.Stderr, false)
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if owner == "" {
				owner = a.owner()
			}
			go a.loop.Run(ctx)

			cli := channel.NewCLI(channel.CLIConfig{
				Owner:   owner,
				Spinner: true,
				Logger:  log,
			})
			return cli.Start(ctx, a.messages)
		},
	}
	cmd.Flags().StringVarP(&owner, "user", "u", "", "user id to chat as (default: general.defaultUser)")
	return cmd
}
