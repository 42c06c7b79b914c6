package rediscache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

func setupTestCache(t *testing.T) (*EvaluationCache, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cache, err := New(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)

	cleanup := func() {
		cache.Close()
		_ = container.Terminate(ctx)
	}
	return cache, cleanup
}

func sampleEvaluation() *domain.Evaluation {
	return &domain.Evaluation{
		PairID:             "pair-001",
		ConfidenceScore:    0.9,
		Reasoning:          "same underlying event",
		SemanticSimilarity: 0.85,
		ArbitrageViability: 0.8,
		RiskAssessment:     "low",
		RecommendedAction:  domain.ActionProceed,
		Model:              "gpt-4o-mini",
		Provider:           "openai",
		CostUSD:            0.01,
		EvaluatedAt:        1700000000000,
	}
}

func TestEvaluationCache_SetAndGet(t *testing.T) {
	cache, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	eval := sampleEvaluation()

	require.NoError(t, cache.Set(ctx, "key-1", eval, time.Hour))

	retrieved, err := cache.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, eval, retrieved)
}

func TestEvaluationCache_Miss(t *testing.T) {
	cache, cleanup := setupTestCache(t)
	defer cleanup()

	_, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEvaluationCache_TTLExpiry(t *testing.T) {
	cache, cleanup := setupTestCache(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "key-ttl", sampleEvaluation(), 100*time.Millisecond))

	_, err := cache.Get(ctx, "key-ttl")
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)

	_, err = cache.Get(ctx, "key-ttl")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
