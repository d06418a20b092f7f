package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flowmind/internal/agent"
	"flowmind/internal/config"
	"flowmind/internal/domain"
	"flowmind/internal/store"
)

var (
	version    = "0.3.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	agent.SetVersion(version)

	root := &cobra.Command{
		Use:   "flowmind",
		Short: "FlowMind: a personal productivity assistant",
		Long: `FlowMind manages tasks, calendar events and proactive suggestions
through natural-language chat on the terminal, Telegram, HTTP and MCP.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json or config.yaml (default: ~/.flowmind/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(suggestCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(serviceCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads .env next to the config, then the config itself. A
// missing file yields defaults so first runs work without init.
func loadConfig() (*config.Config, string, error) {
	cfgPath := resolveConfigPath()
	config.LoadDotEnv(cfgPath)
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config: %w", err)
	}
	cfg.Database.Path = config.ExpandPath(cfg.Database.Path)
	return cfg, cfgPath, nil
}

// setupLogger replaces the bootstrap logger with one built from config.
// The returned closer releases the log file, if any.
func setupLogger(g config.GeneralConfig, w io.Writer, forceJSON bool) (*slog.Logger, func()) {
	closer := func() {}
	if g.LogFile != "" {
		path := config.ExpandPath(g.LogFile)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				w = f
				closer = func() { f.Close() }
			} else {
				logger.Warn("cannot open log file, logging to stderr", "path", path, "err", err)
			}
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(g.LogLevel)}
	var h slog.Handler
	if forceJSON || strings.EqualFold(g.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l, closer
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(config.ExpandPath(cfg.Database.Path), cfg.General.Location(), logger)
			if err != nil {
				return err
			}
			defer st.Close()
			logger.Info("initialized", "config", cfgPath, "database", cfg.Database.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider, store and workload status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			_, statErr := os.Stat(cfgPath)
			logger.Info("config", "path", cfgPath, "loaded", statErr == nil)

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if prov, err := a.registry.HealthyProvider(ctx); err != nil {
				logger.Info("provider", "healthy", false, "err", err)
			} else {
				logger.Info("provider", "name", prov.Name(), "healthy", true)
			}
			if a.calendar != nil {
				logger.Info("calendar", "name", a.calendar.Name(), "baseUrl", cfg.Calendar.BaseURL)
			} else {
				logger.Info("calendar", "enabled", false)
			}

			owner := a.owner()
			pending, err := a.store.ListTasks(ctx, owner, domain.TaskPending)
			if err != nil {
				return err
			}
			suggestions, err := a.store.ListPendingSuggestions(ctx, owner, time.Now())
			if err != nil {
				return err
			}
			users, err := a.store.ListUsers(ctx)
			if err != nil {
				return err
			}
			logger.Info("store",
				"path", cfg.Database.Path,
				"users", len(users),
				"pendingTasks", len(pending),
				"pendingSuggestions", len(suggestions),
				"owner", owner)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long: `Get, set, and list configuration values by dotted path. Changes are
validated before they are saved; a running "flowmind serve" picks them up.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. general.defaultProvider)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. general.defaultProvider ollama)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			paths := config.ListPaths(config.Sanitize(cfg))
			for _, p := range config.SortedPaths(paths) {
				data, _ := json.Marshal(paths[p])
				fmt.Printf("%s = %s\n", p, data)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
