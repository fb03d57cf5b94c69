package cache

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

// Tier is one level of the prompt cache
type Tier interface {
	Get(ctx context.Context, fingerprint string) (*domain.CachedPrompt, bool, error)
	Set(ctx context.Context, prompt *domain.CachedPrompt) error
}

// TieredCache reads the in-process tier first and falls back to the remote
// tier, copying remote hits into memory. Writes go to both tiers.
type TieredCache struct {
	memory *MemoryCache
	remote Tier
	logger *logrus.Logger
}

// NewTieredCache combines memory with an optional remote tier
func NewTieredCache(memory *MemoryCache, remote Tier, logger *logrus.Logger) *TieredCache {
	return &TieredCache{memory: memory, remote: remote, logger: logger}
}

// Get returns a cached prompt. Remote errors are logged and reported as a miss.
func (c *TieredCache) Get(ctx context.Context, fingerprint string) (*domain.CachedPrompt, bool, error) {
	if p, ok, _ := c.memory.Get(ctx, fingerprint); ok {
		return p, true, nil
	}
	if c.remote == nil {
		return nil, false, nil
	}

	p, ok, err := c.remote.Get(ctx, fingerprint)
	if err != nil {
		c.logger.WithError(err).WithField("fingerprint", fingerprint).Warn("Remote prompt cache unavailable")
		return nil, false, nil
	}
	if ok {
		_ = c.memory.Set(ctx, p)
	}
	return p, ok, nil
}

// Set writes prompt to every tier. The memory write always succeeds.
func (c *TieredCache) Set(ctx context.Context, prompt *domain.CachedPrompt) error {
	_ = c.memory.Set(ctx, prompt)
	if c.remote == nil {
		return nil
	}
	return c.remote.Set(ctx, prompt)
}

// Close releases the remote tier
func (c *TieredCache) Close() error {
	if closer, ok := c.remote.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// New builds the prompt cache described by config. It returns nil when caching
// is disabled. A Redis tier is added when a URL is configured and reachable;
// otherwise the cache runs in memory only.
func New(config domain.CacheConfig, logger *logrus.Logger) *TieredCache {
	if !config.Enabled {
		return nil
	}

	memory := NewMemoryCache(config.MaxItems, config.DefaultTTL)
	if config.RedisURL == "" {
		return NewTieredCache(memory, nil, logger)
	}

	remote, err := NewRedisCache(config, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis prompt cache disabled, using memory only")
		return NewTieredCache(memory, nil, logger)
	}
	logger.Info("Redis prompt cache connected")
	return NewTieredCache(memory, remote, logger)
}
