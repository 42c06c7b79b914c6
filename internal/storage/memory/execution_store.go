package memory

import (
	"context"
	"sort"
	"sync"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore in memory.
type ExecutionStore struct {
	mu    sync.RWMutex
	execs map[string]*domain.PipelineExecution
}

// NewExecutionStore creates an empty ExecutionStore.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{execs: make(map[string]*domain.PipelineExecution)}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// Insert adds a new execution. Returns ErrDuplicateKey if execution_id exists.
func (s *ExecutionStore) Insert(_ context.Context, exec *domain.PipelineExecution) error {
	if exec.ExecutionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.execs[exec.ExecutionID]; ok {
		return storage.ErrDuplicateKey
	}
	s.execs[exec.ExecutionID] = copyExecution(exec)
	return nil
}

// Update replaces a stored execution. Returns ErrNotFound if not exists.
func (s *ExecutionStore) Update(_ context.Context, exec *domain.PipelineExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.execs[exec.ExecutionID]; !ok {
		return storage.ErrNotFound
	}
	s.execs[exec.ExecutionID] = copyExecution(exec)
	return nil
}

// GetByID retrieves an execution by its ID.
func (s *ExecutionStore) GetByID(_ context.Context, executionID string) (*domain.PipelineExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.execs[executionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyExecution(e), nil
}

// ListRecent returns up to limit executions, ordered by started_at DESC.
func (s *ExecutionStore) ListRecent(_ context.Context, limit int) ([]*domain.PipelineExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.PipelineExecution, 0, len(s.execs))
	for _, e := range s.execs {
		out = append(out, copyExecution(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyExecution(e *domain.PipelineExecution) *domain.PipelineExecution {
	c := *e
	if e.CompletedAt != nil {
		v := *e.CompletedAt
		c.CompletedAt = &v
	}
	c.StageMetrics = make([]domain.StageMetrics, len(e.StageMetrics))
	for i, sm := range e.StageMetrics {
		c.StageMetrics[i] = sm
		if sm.RejectReasons != nil {
			reasons := make(map[string]int, len(sm.RejectReasons))
			for k, v := range sm.RejectReasons {
				reasons[k] = v
			}
			c.StageMetrics[i].RejectReasons = reasons
		}
	}
	c.Errors = append([]string(nil), e.Errors...)
	return &c
}
