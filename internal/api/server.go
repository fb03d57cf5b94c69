// Package api serves prompt assembly over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cap-dcis-prompt-server/internal/audit"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/middleware"
	"github.com/cap-dcis-prompt-server/internal/monitoring"
	"github.com/cap-dcis-prompt-server/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	assembler     *service.Assembler
	audit         audit.Store
	metrics       *monitoring.Metrics
	router        *gin.Engine
	server        *http.Server
}

// Option configures optional server collaborators
type Option func(*Server)

// WithAuditStore exposes the audit trail under /api/v1/audit
func WithAuditStore(store audit.Store) Option {
	return func(s *Server) { s.audit = store }
}

// WithMetrics serves m under /metrics and counts requests per route
func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, assembler *service.Assembler, opts ...Option) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if configManager.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		configManager: configManager,
		logger:        logger,
		assembler:     assembler,
		router:        gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.CorrelationID())
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.AccessLogger(logger))
	if s.metrics != nil {
		s.router.Use(s.observeRequests())
	}
	if cfg.RateLimit.Enabled {
		s.router.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)))
	}
	s.router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	s.router.Use(middleware.MaxBodySize(cfg.Server.MaxBodyBytes))

	s.setupRoutes()
	return s
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.WithFields(logrus.Fields{
		"addr":              addr,
		"tls":               cfg.TLSEnabled,
		"checklist_version": s.assembler.Schema().Version(),
	}).Info("HTTP server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/checklist", s.handleChecklist)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/prompts", s.handleAssemble)
		v1.GET("/prompts/:fingerprint", s.handleGetPrompt)
		v1.GET("/audit", s.handleListAudit)
	}
}

// observeRequests counts requests by route template and status
func (s *Server) observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTPRequest(route, strconv.Itoa(c.Writer.Status()))
	}
}
