package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cap-dcis-prompt-server/internal/config"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/setup"
)

// cli holds state shared by every subcommand
type cli struct {
	configFile string
	logLevel   string

	manager *config.Manager
	logger  *logrus.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "capdcis",
		Short: "CAP DCIS resection checklist validator and prompt assembler",
		Long: `capdcis checks structured CAP Breast DCIS resection case data against the
synoptic checklist and composes a deterministic, section-ordered report prompt.

Cases that are missing required elements, conditionally required elements or
carry invalid values are rejected with every violation listed.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Config file path (YAML)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		c.batchCmd(),
		c.assembleCmd(),
		c.checklistCmd(),
		c.windowCmd(),
		c.serveCmd(),
		c.mcpCmd(),
		c.auditCmd(),
		c.setupCmd(),
	)
	return root
}

// load reads and validates configuration and builds the logger. Command line
// tools keep stdout for their output, so their logs go to the command's stderr.
func (c *cli) load(cmd *cobra.Command, server bool) (*domain.Config, error) {
	manager, err := config.NewManager(c.configFile)
	if err != nil {
		return nil, err
	}
	cfg := manager.GetConfig()
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := setup.NewLogger(cfg.Logging, !server)
	if err != nil {
		return nil, err
	}
	if !server && !strings.EqualFold(cfg.Logging.Output, "file") {
		logger.SetOutput(cmd.ErrOrStderr())
	}

	c.manager = manager
	c.logger = logger
	return cfg, nil
}

// bootstrap loads configuration and wires the application for one command
func (c *cli) bootstrap(cmd *cobra.Command, server bool, opts setup.Options) (*setup.App, error) {
	cfg, err := c.load(cmd, server)
	if err != nil {
		return nil, err
	}
	return setup.Bootstrap(cmd.Context(), cfg, c.logger, opts)
}

// openOutput returns stdout for "" or "-", otherwise creates path
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// readInput reads path, or stdin for "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func checkFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("unsupported format %q (want text or json)", format)
}
