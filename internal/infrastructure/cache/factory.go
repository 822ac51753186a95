package cache

import (
	"context"
	"fmt"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the idempotency store for the deployment
type IdempotencyStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// NewIdempotencyStoreFactory creates a new factory. With allowFallback an
// unreachable Redis degrades to the in-memory store instead of failing startup.
func NewIdempotencyStoreFactory(cfg config.RedisConfig, logger *zap.Logger, allowFallback bool) *IdempotencyStoreFactory {
	return &IdempotencyStoreFactory{
		redisConfig:           cfg,
		logger:                logger,
		allowInMemoryFallback: allowFallback,
	}
}

// CreateStore returns a Redis store, or the in-memory one when Redis is
// unavailable and fallback is allowed
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisIdempotencyStore(client, DefaultKeyPrefix), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
