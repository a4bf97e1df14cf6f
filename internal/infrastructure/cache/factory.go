package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pricing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// CollectionGuard claims a collection key for a while. Implementations must
// make Acquire atomic across everything sharing them.
type CollectionGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// GuardFactory creates collection guards based on configuration
type GuardFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// GuardFactoryOption is a functional option for configuring the factory
type GuardFactoryOption func(*GuardFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) GuardFactoryOption {
	return func(f *GuardFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory guard
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) GuardFactoryOption {
	return func(f *GuardFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewGuardFactory creates a new factory
func NewGuardFactory(cfg config.RedisConfig, opts ...GuardFactoryOption) *GuardFactory {
	f := &GuardFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateGuard returns a Redis guard, or an in-memory guard when Redis is not
// configured or unreachable and fallback is allowed
func (f *GuardFactory) CreateGuard() (CollectionGuard, error) {
	addr := f.redisConfig.Addr()
	if addr == "" {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis is required for the collection guard but not configured")
		}
		f.logger.Info("Redis not configured, using in-memory collection guard")
		return NewInMemoryCollectionGuard(), nil
	}

	guard, err := NewRedisCollectionGuard(RedisConfig{
		Addr:     addr,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("Using Redis collection guard", zap.String("addr", addr))
		return guard, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for the collection guard but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory collection guard. "+
		"Concurrent instances may collect the same day twice.",
		zap.Error(err),
	)
	return NewInMemoryCollectionGuard(), nil
}
