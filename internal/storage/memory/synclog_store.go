package memory

import (
	"context"
	"sort"
	"sync"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// SyncLogStore implements storage.SyncLogStore in memory.
type SyncLogStore struct {
	mu   sync.RWMutex
	logs map[string]*domain.SyncLog
}

// NewSyncLogStore creates an empty SyncLogStore.
func NewSyncLogStore() *SyncLogStore {
	return &SyncLogStore{logs: make(map[string]*domain.SyncLog)}
}

// Compile-time interface check.
var _ storage.SyncLogStore = (*SyncLogStore)(nil)

// Insert adds a sync log entry. Returns ErrDuplicateKey if sync_id exists.
func (s *SyncLogStore) Insert(_ context.Context, log *domain.SyncLog) error {
	if log.SyncID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[log.SyncID]; ok {
		return storage.ErrDuplicateKey
	}
	c := *log
	s.logs[log.SyncID] = &c
	return nil
}

// GetByExecution retrieves the entries of one pipeline run.
func (s *SyncLogStore) GetByExecution(_ context.Context, executionID string) ([]*domain.SyncLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.SyncLog
	for _, l := range s.logs {
		if l.ExecutionID == executionID {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out, nil
}
