// Package idhash derives deterministic identifiers from entity content.
// The same inputs always produce the same id, which makes inserts
// idempotent and lets re-runs deduplicate against stored rows.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// hash returns the hex SHA-256 of the pipe-joined parts.
func hash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// MarketID derives the id of a normalized market from its venue and
// venue-local identifier.
func MarketID(venue, venueMarketID string) string {
	return hash(venue, venueMarketID)
}

// PairID derives the id of a cross-venue pair. The kalshi side comes
// first so the id is stable regardless of construction order.
func PairID(kalshiMarketID, polymarketMarketID string) string {
	return hash(kalshiMarketID, polymarketMarketID)
}

// EvaluationKey derives the adjudication cache key for a pair. Titles
// are included so a reworded market busts the cache even when venue
// ids are unchanged.
func EvaluationKey(kalshiMarketID, polymarketMarketID, kalshiTitle, polymarketTitle string) string {
	return hash(kalshiMarketID, polymarketMarketID, kalshiTitle, polymarketTitle)
}

// OpportunityID derives the id of a detected opportunity.
func OpportunityID(pairID, executionID string) string {
	return hash(pairID, executionID)
}

// SyncID derives the id of a venue sync log entry.
func SyncID(executionID, venue string) string {
	return hash(executionID, venue)
}
