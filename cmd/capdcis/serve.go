package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cap-dcis-prompt-server/internal/setup"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		port      int
		checklist string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			app, err := c.bootstrap(cmd, true, setup.Options{ChecklistFile: checklist})
			if err != nil {
				return err
			}
			defer app.Close()

			if port > 0 {
				app.Config.Server.Port = port
			}
			app.Logger.WithField("port", app.Config.Server.Port).Info("Starting CAP DCIS prompt server")
			if err := setup.RunHTTP(ctx, c.manager, app); err != nil {
				return err
			}
			app.Logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default server.port)")
	cmd.Flags().StringVar(&checklist, "checklist", "", "Checklist definition YAML (default built-in)")
	return cmd
}

func (c *cli) mcpCmd() *cobra.Command {
	var checklist string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP tool server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			app, err := c.bootstrap(cmd, false, setup.Options{ChecklistFile: checklist})
			if err != nil {
				return err
			}
			defer app.Close()

			return setup.RunMCP(ctx, app)
		},
	}

	cmd.Flags().StringVar(&checklist, "checklist", "", "Checklist definition YAML (default built-in)")
	return cmd
}
