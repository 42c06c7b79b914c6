package postgres

import (
	"context"
	"fmt"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// SyncLogStore implements storage.SyncLogStore using PostgreSQL.
type SyncLogStore struct {
	pool *Pool
}

// NewSyncLogStore creates a new SyncLogStore.
func NewSyncLogStore(pool *Pool) *SyncLogStore {
	return &SyncLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SyncLogStore = (*SyncLogStore)(nil)

// Insert adds a sync log entry. Returns ErrDuplicateKey if sync_id exists.
func (s *SyncLogStore) Insert(ctx context.Context, log *domain.SyncLog) error {
	query := `
		INSERT INTO sync_logs (
			sync_id, execution_id, venue, markets_fetched,
			started_at, completed_at, status, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		log.SyncID,
		log.ExecutionID,
		string(log.Venue),
		log.MarketsFetched,
		log.StartedAt,
		log.CompletedAt,
		log.Status,
		log.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert sync log: %w", err)
	}
	return nil
}

// GetByExecution retrieves the entries of one pipeline run.
func (s *SyncLogStore) GetByExecution(ctx context.Context, executionID string) ([]*domain.SyncLog, error) {
	query := `
		SELECT sync_id, execution_id, venue, markets_fetched,
			started_at, completed_at, status, error
		FROM sync_logs
		WHERE execution_id = $1
		ORDER BY started_at ASC, sync_id ASC
	`
	rows, err := s.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("get sync logs by execution: %w", err)
	}
	defer rows.Close()

	var logs []*domain.SyncLog
	for rows.Next() {
		var l domain.SyncLog
		var venue string
		err := rows.Scan(
			&l.SyncID,
			&l.ExecutionID,
			&venue,
			&l.MarketsFetched,
			&l.StartedAt,
			&l.CompletedAt,
			&l.Status,
			&l.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sync log row: %w", err)
		}
		l.Venue = domain.Venue(venue)
		logs = append(logs, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync log rows: %w", err)
	}
	return logs, nil
}
