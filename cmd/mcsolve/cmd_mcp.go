package main

import (
	"fmt"

	"github.com/nvandessel/mcsolve/internal/mcp"
	"github.com/nvandessel/mcsolve/internal/store"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve mcsolve tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
mcsolve_solve, mcsolve_sweep, mcsolve_runs and mcsolve_check tools.

Tool calls are recorded in ~/.mcsolve/audit.jsonl. Logs go to stderr.

Example client configuration:
  {"command": "mcsolve", "args": ["mcp"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			a := newApp(cmd, settings)
			defer a.Close()

			auditDir, err := store.HomeDir()
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "mcsolve",
				Version:  version,
				Settings: settings,
				AuditDir: auditDir,
				Logger:   a.logger,
				Events:   a.events,
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}
}
