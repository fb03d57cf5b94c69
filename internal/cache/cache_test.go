package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cap-dcis-prompt-server/internal/domain"
)

func prompt(fp string) *domain.CachedPrompt {
	return &domain.CachedPrompt{
		Fingerprint:      fp,
		ChecklistVersion: "v1",
		Prompt:           "Margins\nAll margins are negative for DCIS.",
		CachedAt:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

type mockTier struct {
	mock.Mock
}

func (m *mockTier) Get(ctx context.Context, fingerprint string) (*domain.CachedPrompt, bool, error) {
	args := m.Called(ctx, fingerprint)
	if p := args.Get(0); p != nil {
		return p.(*domain.CachedPrompt), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

func (m *mockTier) Set(ctx context.Context, p *domain.CachedPrompt) error {
	return m.Called(ctx, p).Error(0)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, prompt("a")))
	require.NoError(t, c.Set(ctx, prompt("b")))
	require.NoError(t, c.Set(ctx, prompt("c")))
	assert.Equal(t, 2, c.Len(), "oldest entry evicted")

	_, ok, _ = c.Get(ctx, "a")
	assert.False(t, ok)
	got, ok, _ := c.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, "c", got.Fingerprint)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, 20*time.Millisecond)

	require.NoError(t, c.Set(ctx, prompt("a")))
	_, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTieredCache_RemoteHitFillsMemory(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	remote := &mockTier{}
	remote.On("Get", ctx, "a").Return(prompt("a"), true, nil).Once()

	c := NewTieredCache(NewMemoryCache(10, 0), remote, logger)

	got, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", got.Fingerprint)

	// Second read is served from memory.
	_, ok, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	remote.AssertExpectations(t)
}

func TestTieredCache_RemoteErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	remote := &mockTier{}
	remote.On("Get", ctx, "a").Return(nil, false, errors.New("connection refused"))

	c := NewTieredCache(NewMemoryCache(10, 0), remote, logger)

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestTieredCache_SetWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	remote := &mockTier{}
	remote.On("Set", ctx, mock.Anything).Return(errors.New("read only replica"))

	memory := NewMemoryCache(10, 0)
	c := NewTieredCache(memory, remote, logger)

	err := c.Set(ctx, prompt("a"))
	assert.ErrorContains(t, err, "read only replica")
	assert.Equal(t, 1, memory.Len(), "memory tier is written even when the remote fails")
	remote.AssertExpectations(t)
}

func TestNew(t *testing.T) {
	logger, _ := test.NewNullLogger()

	assert.Nil(t, New(domain.CacheConfig{Enabled: false}, logger))

	c := New(domain.CacheConfig{Enabled: true, MaxItems: 5}, logger)
	require.NotNil(t, c)
	assert.Nil(t, c.remote)

	c = New(domain.CacheConfig{Enabled: true, RedisURL: "not a url"}, logger)
	require.NotNil(t, c)
	assert.Nil(t, c.remote, "bad Redis URL falls back to memory")
	assert.NoError(t, c.Close())
}

func TestRedisCache_BreakerOpensOnFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := newRedisCache(client, time.Minute, logger)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := c.Get(ctx, "a")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, _, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	err = c.Set(ctx, prompt("a"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Circuit breaker state changed", hook.LastEntry().Message)
}
