package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flowmind/internal/compose"
)

func suggestCmd() *cobra.Command {
	var owner string
	var all bool
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Generate and store proactive suggestions now",
		Long: `Runs the suggestion engine once for one user (or every known user with
--all), stores the results and prints the top suggestions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
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

			owners := []string{owner}
			if owner == "" {
				owners[0] = a.owner()
			}
			if all {
				users, err := a.store.ListUsers(ctx)
				if err != nil {
					return fmt.Errorf("list users: %w", err)
				}
				owners = owners[:0]
				for _, u := range users {
					owners = append(owners, u.ID)
				}
			}

			if n, err := a.store.ExpireSuggestions(ctx, time.Now()); err != nil {
				log.Warn("expire suggestions failed", "err", err)
			} else if n > 0 {
				log.Info("expired suggestions", "count", n)
			}

			for _, o := range owners {
				suggestions, err := a.mindflow.Suggest(ctx, o)
				if err != nil {
					log.Error("suggest failed", "owner", o, "err", err)
					continue
				}
				if len(owners) > 1 {
					fmt.Printf("== %s\n", o)
				}
				if len(suggestions) == 0 {
					fmt.Println("Nothing to suggest right now.")
					continue
				}
				fmt.Println(compose.Suggestions(suggestions))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&owner, "user", "u", "", "user id (default: general.defaultUser)")
	cmd.Flags().BoolVar(&all, "all", false, "run for every known user")
	return cmd
}

func reportCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a daily productivity report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
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
			fmt.Println(a.mindflow.DailyReport(ctx, owner))
			return nil
		},
	}
	cmd.Flags().StringVarP(&owner, "user", "u", "", "user id (default: general.defaultUser)")
	return cmd
}
