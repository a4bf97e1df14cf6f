package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pricing/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCollectionGuard(t *testing.T) {
	ctx := context.Background()
	guard := NewInMemoryCollectionGuard()
	now := time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)
	guard.now = func() time.Time { return now }

	ok, err := guard.Acquire(ctx, "network:2024-03-01", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Acquire(ctx, "network:2024-03-01", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = guard.Acquire(ctx, "network:2024-03-02", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("expired claim can be taken again", func(t *testing.T) {
		now = now.Add(2 * time.Hour)
		ok, err := guard.Acquire(ctx, "network:2024-03-01", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, guard.entries, 1)
	})

	t.Run("release frees the key", func(t *testing.T) {
		require.NoError(t, guard.Release(ctx, "network:2024-03-01"))
		ok, err := guard.Acquire(ctx, "network:2024-03-01", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRedisCollectionGuard(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	guard := NewRedisCollectionGuardWithClient(client, "")
	defer guard.Close()

	require.NoError(t, guard.Ping(ctx))

	ok, err := guard.Acquire(ctx, "network:2024-03-01", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, server.Exists(defaultGuardPrefix+"network:2024-03-01"))
	assert.Equal(t, time.Hour, server.TTL(defaultGuardPrefix+"network:2024-03-01"))

	ok, err = guard.Acquire(ctx, "network:2024-03-01", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	server.FastForward(2 * time.Hour)
	ok, err = guard.Acquire(ctx, "network:2024-03-01", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, guard.Release(ctx, "network:2024-03-01"))
	assert.False(t, server.Exists(defaultGuardPrefix+"network:2024-03-01"))

	t.Run("server down", func(t *testing.T) {
		server.Close()
		_, err := guard.Acquire(ctx, "network:2024-03-05", time.Hour)
		assert.Error(t, err)
		assert.Error(t, guard.Ping(ctx))
	})
}

func TestGuardFactory_CreateGuard(t *testing.T) {
	t.Run("redis not configured", func(t *testing.T) {
		guard, err := NewGuardFactory(config.RedisConfig{}).CreateGuard()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryCollectionGuard{}, guard)

		_, err = NewGuardFactory(config.RedisConfig{}, WithInMemoryFallback(false)).CreateGuard()
		assert.Error(t, err)
	})

	t.Run("redis reachable", func(t *testing.T) {
		server := miniredis.RunT(t)
		cfg := config.RedisConfig{Host: server.Host(), Port: mustPort(t, server)}

		guard, err := NewGuardFactory(cfg).CreateGuard()
		require.NoError(t, err)
		defer guard.Close()
		assert.IsType(t, &RedisCollectionGuard{}, guard)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}

		guard, err := NewGuardFactory(cfg).CreateGuard()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryCollectionGuard{}, guard)

		_, err = NewGuardFactory(cfg, WithInMemoryFallback(false)).CreateGuard()
		assert.Error(t, err)
	})
}

func mustPort(t *testing.T, s *miniredis.Miniredis) int {
	t.Helper()
	var port int
	_, err := fmt.Sscanf(s.Port(), "%d", &port)
	require.NoError(t, err)
	return port
}
