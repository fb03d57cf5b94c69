package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/cap-dcis-prompt-server/internal/database"
	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/sirupsen/logrus"
)

// Open creates the store selected by cfg.Driver. It returns nil, nil for "none".
func Open(ctx context.Context, cfg domain.DatabaseConfig, logger *logrus.Logger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return nil, nil

	case "sqlite":
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite audit store: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("SQLite audit store ready")
		return store, nil

	case "postgres":
		if cfg.AutoMigrate {
			if err := database.Migrate(ctx, cfg.URL, logger); err != nil {
				return nil, fmt.Errorf("migrating audit schema: %w", err)
			}
		}
		conn, err := database.NewConnection(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(conn.SQL)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return &pooledPostgresStore{PostgresStore: store, conn: conn}, nil
	}
	return nil, fmt.Errorf("unsupported audit store driver %q", cfg.Driver)
}

// pooledPostgresStore owns the connection pool behind its PostgresStore
type pooledPostgresStore struct {
	*PostgresStore
	conn *database.DB
}

func (s *pooledPostgresStore) Close() error {
	s.conn.Close()
	return nil
}
