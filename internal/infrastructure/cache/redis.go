// Package cache implements port.Cache against Redis, backing the
// progress registry's snapshot/cancellation keys.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds the Redis client settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Redis implements port.Cache.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

// New builds a Redis-backed cache and verifies connectivity with a PING.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping redis: %w", err)
	}
	logger.Info("redis cache connection established", zap.String("addr", cfg.Addr))
	return &Redis{client: client, logger: logger}, nil
}

// Set stores value under key with the given TTL. A zero ttl means no
// expiry, matching redis.Client.Set's own convention.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Get returns (value, true, nil) when key exists, (nil, false, nil) on a
// cache miss, and (nil, false, err) on any other failure.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, true, nil
}

// Delete removes key; deleting an absent key is not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
