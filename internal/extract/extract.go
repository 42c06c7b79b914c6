// Package extract fetches raw markets from venue APIs. Each extractor
// handles its venue's pagination and rate limit and emits venue-shaped
// payloads for the normalizer; a fixture extractor serves offline runs
// and tests.
package extract

import (
	"context"
	"time"

	"marketfinder/internal/domain"
	"marketfinder/internal/idhash"
	"marketfinder/internal/normalize"
)

// Extractor fetches every listed market of one venue.
type Extractor interface {
	Extract(ctx context.Context) ([]normalize.RawMarket, error)
	Venue() domain.Venue
}

// Sync runs one extractor and builds its sync log entry. The entry is
// recorded for failures too, carrying the error.
func Sync(ctx context.Context, e Extractor, executionID string, clock func() time.Time) ([]normalize.RawMarket, *domain.SyncLog) {
	started := clock()
	raws, err := e.Extract(ctx)
	log := &domain.SyncLog{
		SyncID:         idhash.SyncID(executionID, string(e.Venue())),
		ExecutionID:    executionID,
		Venue:          e.Venue(),
		MarketsFetched: len(raws),
		StartedAt:      started.UnixMilli(),
		CompletedAt:    clock().UnixMilli(),
		Status:         "ok",
	}
	if err != nil {
		log.Status = "error"
		log.Error = err.Error()
	}
	return raws, log
}
