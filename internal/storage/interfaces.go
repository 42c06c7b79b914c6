// Package storage defines the persistence interfaces of the pipeline.
// Implementations live in subpackages: memory (tests and offline
// runs), postgres (executions, opportunities, sync logs), clickhouse
// (normalized markets), rediscache (evaluation cache).
package storage

import (
	"context"
	"time"

	"marketfinder/internal/domain"
)

// MarketStore provides access to normalized_markets storage.
type MarketStore interface {
	// InsertBulk adds multiple markets. Fails entire batch on any duplicate market_id.
	InsertBulk(ctx context.Context, markets []*domain.Market) error

	// GetByID retrieves a market by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, marketID string) (*domain.Market, error)

	// GetByVenue retrieves all markets for a venue, ordered by normalized_at DESC.
	GetByVenue(ctx context.Context, venue domain.Venue) ([]*domain.Market, error)

	// GetByExecution retrieves the markets normalized by one pipeline run.
	GetByExecution(ctx context.Context, executionID string) ([]*domain.Market, error)
}

// ExecutionStore provides access to pipeline_executions storage.
type ExecutionStore interface {
	// Insert adds a new execution. Returns ErrDuplicateKey if execution_id exists.
	Insert(ctx context.Context, exec *domain.PipelineExecution) error

	// Update replaces a stored execution. Returns ErrNotFound if not exists.
	Update(ctx context.Context, exec *domain.PipelineExecution) error

	// GetByID retrieves an execution by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, executionID string) (*domain.PipelineExecution, error)

	// ListRecent returns up to limit executions, ordered by started_at DESC.
	ListRecent(ctx context.Context, limit int) ([]*domain.PipelineExecution, error)
}

// OpportunityStore provides access to arbitrage_opportunities storage.
type OpportunityStore interface {
	// InsertBulk adds multiple opportunities. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, opps []*domain.Opportunity) error

	// GetByID retrieves an opportunity by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, opportunityID string) (*domain.Opportunity, error)

	// ListActive returns active opportunities, ordered by priority DESC.
	ListActive(ctx context.Context, limit int) ([]*domain.Opportunity, error)

	// ExpireBefore marks active opportunities expiring before cutoff as
	// expired and returns how many rows changed.
	ExpireBefore(ctx context.Context, cutoff int64) (int, error)
}

// EvaluationCache caches adjudications by content hash.
type EvaluationCache interface {
	// Get returns the cached evaluation. Returns ErrNotFound on miss or expiry.
	Get(ctx context.Context, key string) (*domain.Evaluation, error)

	// Set stores an evaluation under key for ttl.
	Set(ctx context.Context, key string, eval *domain.Evaluation, ttl time.Duration) error
}

// SyncLogStore provides access to sync_logs storage.
type SyncLogStore interface {
	// Insert adds a sync log entry. Returns ErrDuplicateKey if sync_id exists.
	Insert(ctx context.Context, log *domain.SyncLog) error

	// GetByExecution retrieves the entries of one pipeline run.
	GetByExecution(ctx context.Context, executionID string) ([]*domain.SyncLog, error)
}
