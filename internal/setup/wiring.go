package setup

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cap-dcis-prompt-server/internal/audit"
	"github.com/cap-dcis-prompt-server/internal/cache"
	"github.com/cap-dcis-prompt-server/internal/checklist"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/monitoring"
	"github.com/cap-dcis-prompt-server/internal/service"
)

// App holds the long-lived components shared by every entry point
type App struct {
	Config    *domain.Config
	Logger    *logrus.Logger
	Schema    *checklist.Schema
	Assembler *service.Assembler
	Metrics   *monitoring.Metrics
	Audit     audit.Store // nil when no audit store is configured

	cache *cache.TieredCache
}

// Options adjusts the wiring for a single command
type Options struct {
	ChecklistFile string // overrides checklist.definition_file
	DisableAudit  bool
	DisableCache  bool
}

// LoadSchema builds the schema from path, or the built-in checklist when path is empty
func LoadSchema(path string) (*checklist.Schema, error) {
	if path == "" {
		return checklist.Load()
	}
	return checklist.LoadFile(path)
}

// Bootstrap loads the checklist and connects the optional cache and audit store.
// A checklist that fails to build is returned as an error and nothing else is opened.
func Bootstrap(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, opts Options) (*App, error) {
	definition := cfg.Checklist.DefinitionFile
	if opts.ChecklistFile != "" {
		definition = opts.ChecklistFile
	}
	schema, err := LoadSchema(definition)
	if err != nil {
		return nil, fmt.Errorf("loading checklist: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"checklist_version": schema.Version(),
		"elements":          schema.Len(),
		"definition":        definitionName(definition),
	}).Info("Checklist loaded")

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Schema:  schema,
		Metrics: monitoring.NewMetrics(),
	}

	assemblerOpts := []service.AssemblerOption{
		service.WithMetrics(app.Metrics),
		service.WithEnvelope(service.NewEnvelopeBuilder(cfg.Prompt.Instructions, cfg.Prompt.ModelName)),
	}

	if !opts.DisableCache {
		if c := cache.New(cfg.Cache, logger); c != nil {
			app.cache = c
			assemblerOpts = append(assemblerOpts, service.WithCache(c))
		}
	}

	if !opts.DisableAudit {
		store, err := audit.Open(ctx, cfg.Database, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		if store != nil {
			app.Audit = store
			assemblerOpts = append(assemblerOpts, service.WithAuditRecorder(store))
		}
	}

	app.Assembler = service.NewAssembler(logger, schema, assemblerOpts...)
	return app, nil
}

// Close releases the cache and audit store
func (a *App) Close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	return errors.Join(errs...)
}

func definitionName(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
