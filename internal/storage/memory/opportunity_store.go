package memory

import (
	"context"
	"sort"
	"sync"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// OpportunityStore implements storage.OpportunityStore in memory.
type OpportunityStore struct {
	mu   sync.RWMutex
	opps map[string]*domain.Opportunity
}

// NewOpportunityStore creates an empty OpportunityStore.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{opps: make(map[string]*domain.Opportunity)}
}

// Compile-time interface check.
var _ storage.OpportunityStore = (*OpportunityStore)(nil)

// InsertBulk adds multiple opportunities. Fails entire batch on any duplicate.
func (s *OpportunityStore) InsertBulk(_ context.Context, opps []*domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(opps))
	for _, o := range opps {
		if o.OpportunityID == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[o.OpportunityID]; ok {
			return storage.ErrDuplicateKey
		}
		if _, ok := s.opps[o.OpportunityID]; ok {
			return storage.ErrDuplicateKey
		}
		seen[o.OpportunityID] = struct{}{}
	}
	for _, o := range opps {
		c := *o
		s.opps[o.OpportunityID] = &c
	}
	return nil
}

// GetByID retrieves an opportunity by its ID.
func (s *OpportunityStore) GetByID(_ context.Context, opportunityID string) (*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.opps[opportunityID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *o
	return &c, nil
}

// ListActive returns active opportunities, ordered by priority DESC.
func (s *OpportunityStore) ListActive(_ context.Context, limit int) ([]*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Opportunity
	for _, o := range s.opps {
		if o.Status == domain.OpportunityActive {
			c := *o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExpireBefore marks active opportunities expiring before cutoff as expired.
func (s *OpportunityStore) ExpireBefore(_ context.Context, cutoff int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, o := range s.opps {
		if o.Status == domain.OpportunityActive && o.ExpiresAt < cutoff {
			o.Status = domain.OpportunityExpired
			n++
		}
	}
	return n, nil
}
