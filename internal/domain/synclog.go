package domain

// SyncLog records one venue extraction run.
// Corresponds to sync_logs table in PostgreSQL.
type SyncLog struct {
	SyncID         string // PRIMARY KEY, deterministic hash
	ExecutionID    string // owning pipeline execution
	Venue          Venue  // extracted venue
	MarketsFetched int    // raw markets returned by the venue API
	StartedAt      int64  // unix ms
	CompletedAt    int64  // unix ms
	Status         string // "ok" or "error"
	Error          string // failure detail, empty on success
}
