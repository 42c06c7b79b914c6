package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
	pgstore "marketfinder/internal/storage/postgres"
)

func sampleExecution(id string) *domain.PipelineExecution {
	return &domain.PipelineExecution{
		ExecutionID:        id,
		Status:             domain.ExecutionRunning,
		StartedAt:          1700000000000,
		MarketsProcessed:   120,
		PairsEvaluated:     8,
		OpportunitiesFound: 2,
		CacheHitRate:       0.5,
		LLMCostUSD:         0.34,
		StageMetrics: []domain.StageMetrics{
			{Stage: domain.StageExtraction, OutputCount: 150, DurationMs: 1200},
			{
				Stage:         domain.StageFiltering,
				InputCount:    400,
				OutputCount:   20,
				DurationMs:    35,
				RejectReasons: map[string]int{"insufficient_arbitrage": 300, "low_liquidity": 80},
			},
		},
		Errors: []string{"extraction polymarket: gateway timeout"},
	}
}

func TestExecutionStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewExecutionStore(pool)
	ctx := context.Background()

	exec := sampleExecution("exec-001")
	require.NoError(t, store.Insert(ctx, exec))

	retrieved, err := store.GetByID(ctx, "exec-001")
	require.NoError(t, err)

	assert.Equal(t, exec.ExecutionID, retrieved.ExecutionID)
	assert.Equal(t, exec.Status, retrieved.Status)
	assert.Equal(t, exec.StartedAt, retrieved.StartedAt)
	assert.Nil(t, retrieved.CompletedAt)
	assert.Equal(t, exec.MarketsProcessed, retrieved.MarketsProcessed)
	assert.Equal(t, exec.CacheHitRate, retrieved.CacheHitRate)
	assert.Equal(t, exec.StageMetrics, retrieved.StageMetrics)
	assert.Equal(t, exec.Errors, retrieved.Errors)
}

func TestExecutionStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewExecutionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleExecution("exec-dup")))
	err := store.Insert(ctx, sampleExecution("exec-dup"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestExecutionStore_Update(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewExecutionStore(pool)
	ctx := context.Background()

	exec := sampleExecution("exec-upd")
	require.NoError(t, store.Insert(ctx, exec))

	exec.Status = domain.ExecutionCompleted
	exec.CompletedAt = ptr(int64(1700000060000))
	exec.DurationMs = 60000
	require.NoError(t, store.Update(ctx, exec))

	retrieved, err := store.GetByID(ctx, "exec-upd")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionCompleted, retrieved.Status)
	require.NotNil(t, retrieved.CompletedAt)
	assert.Equal(t, int64(1700000060000), *retrieved.CompletedAt)
	assert.Equal(t, int64(60000), retrieved.DurationMs)
}

func TestExecutionStore_UpdateNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewExecutionStore(pool)
	err := store.Update(context.Background(), sampleExecution("exec-missing"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExecutionStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewExecutionStore(pool)
	_, err := store.GetByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExecutionStore_ListRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewExecutionStore(pool)
	ctx := context.Background()

	for i, id := range []string{"exec-a", "exec-b", "exec-c"} {
		exec := sampleExecution(id)
		exec.StartedAt = 1700000000000 + int64(i)*1000
		require.NoError(t, store.Insert(ctx, exec))
	}

	recent, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "exec-c", recent[0].ExecutionID)
	assert.Equal(t, "exec-b", recent[1].ExecutionID)
}
