package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

const keyPrefix = "capdcis:prompt:"

// RedisCache stores prompts in Redis. Calls go through a circuit breaker so an
// unreachable server fails fast instead of delaying every assembly.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewRedisCache connects to the server named by config.RedisURL
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries != 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, config.DefaultTTL, logger), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-prompt-cache",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisCache{client: client, ttl: ttl, breaker: breaker}
}

// Get returns the prompt stored under fingerprint
func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*domain.CachedPrompt, bool, error) {
	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, keyPrefix+fingerprint).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached prompt: %w", err)
	}

	var prompt domain.CachedPrompt
	if err := json.Unmarshal(raw.([]byte), &prompt); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached prompt: %w", err)
	}
	return &prompt, true, nil
}

// Set stores prompt under its fingerprint for the configured TTL
func (c *RedisCache) Set(ctx context.Context, prompt *domain.CachedPrompt) error {
	data, err := json.Marshal(prompt)
	if err != nil {
		return fmt.Errorf("failed to encode prompt: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, keyPrefix+prompt.Fingerprint, data, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to cache prompt: %w", err)
	}
	return nil
}

// State reports the circuit breaker state
func (c *RedisCache) State() gobreaker.State { return c.breaker.State() }

// Close closes the Redis client
func (c *RedisCache) Close() error { return c.client.Close() }
