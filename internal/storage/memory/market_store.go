// Package memory provides in-memory store implementations for tests
// and offline pipeline runs. All stores are safe for concurrent use
// and return copies so callers cannot mutate stored state.
package memory

import (
	"context"
	"sort"
	"sync"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// MarketStore implements storage.MarketStore in memory.
type MarketStore struct {
	mu      sync.RWMutex
	markets map[string]*domain.Market
}

// NewMarketStore creates an empty MarketStore.
func NewMarketStore() *MarketStore {
	return &MarketStore{markets: make(map[string]*domain.Market)}
}

// Compile-time interface check.
var _ storage.MarketStore = (*MarketStore)(nil)

// InsertBulk adds multiple markets. Fails entire batch on any duplicate.
func (s *MarketStore) InsertBulk(_ context.Context, markets []*domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		if m.MarketID == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := seen[m.MarketID]; ok {
			return storage.ErrDuplicateKey
		}
		if _, ok := s.markets[m.MarketID]; ok {
			return storage.ErrDuplicateKey
		}
		seen[m.MarketID] = struct{}{}
	}
	for _, m := range markets {
		s.markets[m.MarketID] = copyMarket(m)
	}
	return nil
}

// GetByID retrieves a market by its ID.
func (s *MarketStore) GetByID(_ context.Context, marketID string) (*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[marketID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyMarket(m), nil
}

// GetByVenue retrieves all markets for a venue, ordered by normalized_at DESC.
func (s *MarketStore) GetByVenue(_ context.Context, venue domain.Venue) ([]*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Market
	for _, m := range s.markets {
		if m.Venue == venue {
			out = append(out, copyMarket(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NormalizedAt > out[j].NormalizedAt })
	return out, nil
}

// GetByExecution retrieves the markets normalized by one pipeline run.
func (s *MarketStore) GetByExecution(_ context.Context, executionID string) ([]*domain.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Market
	for _, m := range s.markets {
		if m.ExecutionID == executionID {
			out = append(out, copyMarket(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out, nil
}

func copyMarket(m *domain.Market) *domain.Market {
	c := *m
	c.Outcomes = append([]domain.Outcome(nil), m.Outcomes...)
	return &c
}
