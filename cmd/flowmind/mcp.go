package main

import (
	"os"

	"github.com/spf13/cobra"

	"flowmind/internal/mcpserver"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as MCP tools over stdio",
		Long: `Runs an MCP server on stdin/stdout exposing chat, tasks, events, free
time, suggestions and notes. Logs go to stderr so they never corrupt the
protocol stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			log, closeLog := setupLogger(cfg.General, os.Stderr, false)
			defer closeLog()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcpserver.New(mcpserver.Config{
				Version:     version,
				DefaultUser: a.owner(),
				Chat:        a.loop,
				Store:       a.store,
				Calendar:    a.calendarFlow,
				Suggester:   a.mindflow,
				Location:    cfg.General.Location(),
				Logger:      log,
			})
			log.Info("mcp server starting on stdio", "user", a.owner())
			return srv.ServeStdio()
		},
	}
}
