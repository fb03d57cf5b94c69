package setup

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cap-dcis-prompt-server/internal/api"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/logging"
	"github.com/cap-dcis-prompt-server/internal/mcp"
)

// NewLogger builds the process logger. Stdio servers own stdout for the
// protocol, so their logs are redirected to stderr.
func NewLogger(cfg domain.LoggingConfig, stdio bool) (*logrus.Logger, error) {
	if stdio && (cfg.Output == "" || strings.EqualFold(cfg.Output, "stdout")) {
		cfg.Output = "stderr"
	}
	return logging.New(cfg)
}

// RunHTTP serves the HTTP API until ctx is cancelled
func RunHTTP(ctx context.Context, configManager domain.ConfigManager, app *App) error {
	opts := []api.Option{api.WithMetrics(app.Metrics)}
	if app.Audit != nil {
		opts = append(opts, api.WithAuditStore(app.Audit))
	}
	return api.NewServer(configManager, app.Logger, app.Assembler, opts...).Start(ctx)
}

// RunMCP serves the MCP tools on stdio until the client disconnects or ctx is cancelled
func RunMCP(ctx context.Context, app *App) error {
	return mcp.NewServer(app.Config.MCP, app.Assembler, app.Logger).Start(ctx)
}
