package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ecotrack-console/pkg/errors"
)

// RedisStateRepository keeps client state values in Redis under a key prefix.
// A nil client behaves as an always-empty store.
type RedisStateRepository struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStateRepository constructs a Redis-backed state repository.
func NewRedisStateRepository(client *redis.Client, prefix string, logger *zap.Logger) *RedisStateRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStateRepository{client: client, prefix: prefix, logger: logger}
}

// Load returns the stored value or appErrors.ErrNotFound.
func (r *RedisStateRepository) Load(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrNotFound
	}

	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErrors.ErrNotFound
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Save stores the value without expiry; the backend decides when a token dies.
func (r *RedisStateRepository) Save(ctx context.Context, key, value string) error {
	if r.client == nil {
		return nil
	}

	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the value. Deleting a missing key is not an error.
func (r *RedisStateRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisStateRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
