// Package cache stores composed prompts by case fingerprint in an in-process
// LRU with an optional Redis tier behind a circuit breaker.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

// DefaultMaxItems bounds the in-process cache when no size is configured
const DefaultMaxItems = 1000

// MemoryCache is a size-bounded in-process prompt cache with per-entry expiry
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.CachedPrompt]
}

// NewMemoryCache creates a cache holding at most maxItems prompts for ttl each.
// A zero ttl keeps entries until they are evicted.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &MemoryCache{lru: expirable.NewLRU[string, *domain.CachedPrompt](maxItems, nil, ttl)}
}

// Get returns the prompt stored under fingerprint
func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*domain.CachedPrompt, bool, error) {
	p, ok := c.lru.Get(fingerprint)
	return p, ok, nil
}

// Set stores prompt under its fingerprint
func (c *MemoryCache) Set(_ context.Context, prompt *domain.CachedPrompt) error {
	c.lru.Add(prompt.Fingerprint, prompt)
	return nil
}

// Len returns the number of cached prompts
func (c *MemoryCache) Len() int { return c.lru.Len() }

// Purge removes every entry
func (c *MemoryCache) Purge() { c.lru.Purge() }
