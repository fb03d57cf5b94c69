package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cap-dcis-prompt-server/internal/setup"
)

func (c *cli) setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with desktop clients",
	}

	var desktopConfig, binary string
	register := &cobra.Command{
		Use:   "claude-desktop",
		Short: "Add the MCP server to the Claude Desktop configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := setup.RegisterClaudeDesktop(setup.RegisterOptions{
				DesktopConfigPath: desktopConfig,
				BinaryPath:        binary,
				ConfigFile:        c.configFile,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "registered %s in %s\nrestart Claude Desktop to load it\n", setup.ServerName, path)
			return err
		},
	}
	register.Flags().StringVar(&desktopConfig, "desktop-config", "", "Claude Desktop config file (default platform location)")
	register.Flags().StringVar(&binary, "binary", "", "Server binary (default this executable)")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show whether the MCP server is registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := setup.GetStatus(desktopConfig)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config:     %s\n", st.DesktopConfigPath)
			fmt.Fprintf(out, "registered: %t\n", st.Registered)
			if st.Registered {
				fmt.Fprintf(out, "command:    %s %v\n", st.Command, st.Args)
			}
			for _, issue := range st.Issues {
				fmt.Fprintf(out, "issue:      %s\n", issue)
			}
			return nil
		},
	}
	status.Flags().StringVar(&desktopConfig, "desktop-config", "", "Claude Desktop config file (default platform location)")

	cmd.AddCommand(register, status)
	return cmd
}
