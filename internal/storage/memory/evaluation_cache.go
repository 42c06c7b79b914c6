package memory

import (
	"context"
	"sync"
	"time"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// EvaluationCache implements storage.EvaluationCache in memory with
// per-entry TTL. Expired entries are dropped lazily on read.
type EvaluationCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	clock   func() time.Time
}

type cacheEntry struct {
	eval      domain.Evaluation
	expiresAt time.Time
}

// NewEvaluationCache creates an empty cache using the wall clock.
func NewEvaluationCache() *EvaluationCache {
	return &EvaluationCache{entries: make(map[string]cacheEntry), clock: time.Now}
}

// WithClock overrides the clock, for tests.
func (c *EvaluationCache) WithClock(clock func() time.Time) *EvaluationCache {
	c.clock = clock
	return c
}

// Compile-time interface check.
var _ storage.EvaluationCache = (*EvaluationCache)(nil)

// Get returns the cached evaluation. Returns ErrNotFound on miss or expiry.
func (c *EvaluationCache) Get(_ context.Context, key string) (*domain.Evaluation, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	if c.clock().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, storage.ErrNotFound
	}
	eval := entry.eval
	return &eval, nil
}

// Set stores an evaluation under key for ttl.
func (c *EvaluationCache) Set(_ context.Context, key string, eval *domain.Evaluation, ttl time.Duration) error {
	if key == "" || eval == nil || ttl <= 0 {
		return storage.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{eval: *eval, expiresAt: c.clock().Add(ttl)}
	return nil
}

// Len reports the number of stored entries, expired included.
func (c *EvaluationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
