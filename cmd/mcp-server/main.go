package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cap-dcis-prompt-server/internal/config"
	"github.com/cap-dcis-prompt-server/internal/setup"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager(os.Getenv("CAPDCIS_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, err := setup.NewLogger(cfg.Logging, true)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup.Bootstrap(ctx, cfg, logger, setup.Options{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise MCP server")
	}
	defer app.Close()

	if err := setup.RunMCP(ctx, app); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}
	logger.Info("MCP server stopped")
}
