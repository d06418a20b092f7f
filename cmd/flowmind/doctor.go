package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"flowmind/internal/calendar"
	"flowmind/internal/config"
	"flowmind/internal/provider"
	"flowmind/internal/store"
)

// checkReport tallies doctor results.
type checkReport struct {
	passed, warned, failed int
}

func (r *checkReport) pass(check, detail string) {
	r.passed++
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func (r *checkReport) warn(check, detail string) {
	r.warned++
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}

func (r *checkReport) fail(check, detail string) {
	r.failed++
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your FlowMind installation",
		Long: `Verifies the configuration, database, model providers, remote calendar
and channel settings. Reports pass/warn/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("FlowMind Doctor v%s\n\n", version)
			var r checkReport

			if _, err := os.Stat(cfgPath); err != nil {
				r.fail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'flowmind init' to create a default configuration.\n")
				return nil
			}
			r.pass("Config file", cfgPath)

			config.LoadDotEnv(cfgPath)
			cfg, err := config.Load(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return fmt.Errorf("config is invalid")
			}
			r.pass("Config validation", "valid")

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			checkStore(ctx, &r, cfg)
			checkProviders(ctx, &r, cfg)
			checkCalendar(ctx, &r, cfg)
			checkChannels(&r, cfg)

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					r.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					r.pass("Log file", cfg.General.LogFile)
				}
			}

			fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
			if r.failed > 0 {
				return fmt.Errorf("%d check(s) failed", r.failed)
			}
			return nil
		},
	}
}

func checkStore(ctx context.Context, r *checkReport, cfg *config.Config) {
	st, err := store.NewSQLiteStore(cfg.Database.Path, cfg.General.Location(), logger)
	if err != nil {
		r.fail("Database", err.Error())
		return
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		r.fail("Database", err.Error())
		return
	}
	v, err := store.GetSchemaVersion(st.DB())
	if err != nil {
		r.warn("Database", fmt.Sprintf("%s (schema version unknown: %v)", cfg.Database.Path, err))
		return
	}
	r.pass("Database", fmt.Sprintf("%s (schema v%d)", cfg.Database.Path, v))
}

func checkProviders(ctx context.Context, r *checkReport, cfg *config.Config) {
	registry := provider.NewRegistry(cfg, logger)
	names := registry.Names()
	if len(names) == 0 {
		r.warn("Providers", "none enabled; model features are off")
		return
	}
	for _, name := range names {
		p, err := registry.Get(name)
		if err != nil {
			r.fail("Provider: "+name, err.Error())
			continue
		}
		if err := p.Healthy(ctx); err != nil {
			r.warn("Provider: "+name, fmt.Sprintf("unreachable: %v", err))
			continue
		}
		r.pass("Provider: "+name, "healthy")
	}
}

func checkCalendar(ctx context.Context, r *checkReport, cfg *config.Config) {
	remote := calendar.FromConfig(cfg.Calendar, logger)
	if remote == nil {
		r.pass("Calendar", "local only")
		return
	}
	now := time.Now()
	if _, err := remote.ListEvents(ctx, cfg.General.DefaultUser, now, now.Add(time.Hour)); err != nil {
		r.warn("Calendar", fmt.Sprintf("%s: %v", cfg.Calendar.BaseURL, err))
		return
	}
	r.pass("Calendar", cfg.Calendar.BaseURL)
}

func checkChannels(r *checkReport, cfg *config.Config) {
	if cfg.Channels.Telegram.Enabled {
		if len(cfg.Channels.Telegram.AllowFrom) == 0 {
			r.warn("Telegram", "enabled with an empty allowFrom list; anyone can talk to the bot")
		} else {
			r.pass("Telegram", fmt.Sprintf("%d allowed user(s)", len(cfg.Channels.Telegram.AllowFrom)))
		}
	}
	if api := cfg.Channels.API; api.Enabled {
		if err := checkPort(api.Address()); err != nil {
			r.warn("API port", fmt.Sprintf("%s may be in use: %v", api.Address(), err))
		} else {
			r.pass("API port", api.Address()+" available")
		}
		if api.Token == "" {
			r.warn("API auth", "no token set; the API is open to anyone who can reach it")
		}
	}
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
