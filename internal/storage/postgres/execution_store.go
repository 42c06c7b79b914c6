package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using PostgreSQL.
// Stage metrics and errors are stored as JSONB.
type ExecutionStore struct {
	pool *Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

const executionColumns = `
	execution_id, status, started_at, completed_at, duration_ms,
	markets_processed, pairs_evaluated, opportunities_found,
	cache_hit_rate, llm_cost_usd, stage_metrics, errors
`

// Insert adds a new execution. Returns ErrDuplicateKey if execution_id exists.
func (s *ExecutionStore) Insert(ctx context.Context, exec *domain.PipelineExecution) error {
	stageMetrics, errs, err := marshalExecutionJSON(exec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pipeline_executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.pool.Exec(ctx, query,
		exec.ExecutionID,
		string(exec.Status),
		exec.StartedAt,
		exec.CompletedAt,
		exec.DurationMs,
		exec.MarketsProcessed,
		exec.PairsEvaluated,
		exec.OpportunitiesFound,
		exec.CacheHitRate,
		exec.LLMCostUSD,
		stageMetrics,
		errs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Update replaces a stored execution. Returns ErrNotFound if not exists.
func (s *ExecutionStore) Update(ctx context.Context, exec *domain.PipelineExecution) error {
	stageMetrics, errs, err := marshalExecutionJSON(exec)
	if err != nil {
		return err
	}

	query := `
		UPDATE pipeline_executions SET
			status = $2, started_at = $3, completed_at = $4, duration_ms = $5,
			markets_processed = $6, pairs_evaluated = $7, opportunities_found = $8,
			cache_hit_rate = $9, llm_cost_usd = $10, stage_metrics = $11, errors = $12
		WHERE execution_id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		exec.ExecutionID,
		string(exec.Status),
		exec.StartedAt,
		exec.CompletedAt,
		exec.DurationMs,
		exec.MarketsProcessed,
		exec.PairsEvaluated,
		exec.OpportunitiesFound,
		exec.CacheHitRate,
		exec.LLMCostUSD,
		stageMetrics,
		errs,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves an execution by its ID. Returns ErrNotFound if not exists.
func (s *ExecutionStore) GetByID(ctx context.Context, executionID string) (*domain.PipelineExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM pipeline_executions
		WHERE execution_id = $1
	`
	row := s.pool.QueryRow(ctx, query, executionID)
	exec, err := scanExecution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get execution by id: %w", err)
	}
	return exec, nil
}

// ListRecent returns up to limit executions, ordered by started_at DESC.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]*domain.PipelineExecution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM pipeline_executions
		ORDER BY started_at DESC, execution_id DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent executions: %w", err)
	}
	defer rows.Close()

	var execs []*domain.PipelineExecution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return execs, nil
}

func marshalExecutionJSON(exec *domain.PipelineExecution) (stageMetrics, errs []byte, err error) {
	stageMetrics, err = json.Marshal(exec.StageMetrics)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal stage metrics: %w", err)
	}
	errs, err = json.Marshal(exec.Errors)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal errors: %w", err)
	}
	return stageMetrics, errs, nil
}

func scanExecution(row pgx.Row) (*domain.PipelineExecution, error) {
	var exec domain.PipelineExecution
	var statusStr string
	var stageMetrics, errs []byte

	err := row.Scan(
		&exec.ExecutionID,
		&statusStr,
		&exec.StartedAt,
		&exec.CompletedAt,
		&exec.DurationMs,
		&exec.MarketsProcessed,
		&exec.PairsEvaluated,
		&exec.OpportunitiesFound,
		&exec.CacheHitRate,
		&exec.LLMCostUSD,
		&stageMetrics,
		&errs,
	)
	if err != nil {
		return nil, err
	}

	exec.Status = domain.ExecutionStatus(statusStr)
	if len(stageMetrics) > 0 {
		if err := json.Unmarshal(stageMetrics, &exec.StageMetrics); err != nil {
			return nil, fmt.Errorf("unmarshal stage metrics: %w", err)
		}
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &exec.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	return &exec, nil
}
