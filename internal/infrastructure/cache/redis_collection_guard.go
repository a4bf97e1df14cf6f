package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultGuardPrefix = "pricing:collection:"

// RedisCollectionGuard marks collected days in Redis so that instances
// sharing the server never ingest the same day twice
type RedisCollectionGuard struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCollectionGuard connects to Redis and verifies the connection
func NewRedisCollectionGuard(cfg RedisConfig) (*RedisCollectionGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCollectionGuardWithClient(client, ""), nil
}

// NewRedisCollectionGuardWithClient creates a guard on an existing client
func NewRedisCollectionGuardWithClient(client *redis.Client, keyPrefix string) *RedisCollectionGuard {
	if keyPrefix == "" {
		keyPrefix = defaultGuardPrefix
	}
	return &RedisCollectionGuard{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire claims key for ttl with SETNX. It returns false when the key is
// already held.
func (g *RedisCollectionGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire collection guard: %w", err)
	}
	return ok, nil
}

// Release frees key so the day can be collected again
func (g *RedisCollectionGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release collection guard: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable
func (g *RedisCollectionGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (g *RedisCollectionGuard) Close() error {
	return g.client.Close()
}
