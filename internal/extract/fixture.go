package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"marketfinder/internal/domain"
	"marketfinder/internal/normalize"
)

// FixtureExtractor serves raw markets from a JSON file, one venue per
// file. Used for offline runs and tests.
type FixtureExtractor struct {
	venue domain.Venue
	path  string
}

var _ Extractor = (*FixtureExtractor)(nil)

// NewFixtureExtractor creates an extractor reading path.
func NewFixtureExtractor(venue domain.Venue, path string) *FixtureExtractor {
	return &FixtureExtractor{venue: venue, path: path}
}

// Venue implements Extractor.
func (e *FixtureExtractor) Venue() domain.Venue { return e.venue }

// Extract implements Extractor. Markets in the file keep their fields
// except venue, which is forced to the extractor's venue.
func (e *FixtureExtractor) Extract(_ context.Context) ([]normalize.RawMarket, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", e.path, err)
	}
	var raws []normalize.RawMarket
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", e.path, err)
	}
	for i := range raws {
		raws[i].Venue = e.venue
	}
	return raws, nil
}

// StaticExtractor serves a fixed slice of raw markets. Used in tests.
type StaticExtractor struct {
	VenueName domain.Venue
	Markets   []normalize.RawMarket
	Err       error
}

var _ Extractor = (*StaticExtractor)(nil)

// Venue implements Extractor.
func (e *StaticExtractor) Venue() domain.Venue { return e.VenueName }

// Extract implements Extractor.
func (e *StaticExtractor) Extract(_ context.Context) ([]normalize.RawMarket, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	return e.Markets, nil
}
