// Package rediscache implements the evaluation cache on Redis so
// adjudication verdicts survive process restarts.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// keyPrefix namespaces cache entries in a shared Redis.
const keyPrefix = "marketfinder:eval:"

// EvaluationCache implements storage.EvaluationCache on Redis.
type EvaluationCache struct {
	client *redis.Client
}

// New creates an EvaluationCache and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*EvaluationCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &EvaluationCache{client: client}, nil
}

// Compile-time interface check.
var _ storage.EvaluationCache = (*EvaluationCache)(nil)

// Close releases the underlying client.
func (c *EvaluationCache) Close() error {
	return c.client.Close()
}

// Get returns the cached evaluation. Returns ErrNotFound on miss or expiry.
func (c *EvaluationCache) Get(ctx context.Context, key string) (*domain.Evaluation, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var eval domain.Evaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		return nil, fmt.Errorf("unmarshal cached evaluation: %w", err)
	}
	return &eval, nil
}

// Set stores an evaluation under key for ttl.
func (c *EvaluationCache) Set(ctx context.Context, key string, eval *domain.Evaluation, ttl time.Duration) error {
	data, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
