package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// MarketStore implements storage.MarketStore using ClickHouse.
// MergeTree does not enforce uniqueness at insert time, so InsertBulk
// pre-checks market_ids explicitly to honor the batch duplicate
// contract.
type MarketStore struct {
	conn *Conn
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(conn *Conn) *MarketStore {
	return &MarketStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarketStore = (*MarketStore)(nil)

const marketColumns = `
	market_id, venue, venue_market_id, title, description,
	category, category_confidence, yes_price, no_price, outcomes,
	volume, liquidity, created_at, close_at, status,
	execution_id, normalized_at
`

// InsertBulk adds multiple markets. Fails entire batch on any duplicate market_id.
func (s *MarketStore) InsertBulk(ctx context.Context, markets []*domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	ids := make([]string, 0, len(markets))
	seen := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		if _, ok := seen[m.MarketID]; ok {
			return storage.ErrDuplicateKey
		}
		seen[m.MarketID] = struct{}{}
		ids = append(ids, m.MarketID)
	}

	var count uint64
	err := s.conn.QueryRow(ctx,
		"SELECT count() FROM normalized_markets WHERE market_id IN (?)", ids,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check duplicate markets: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx,
		"INSERT INTO normalized_markets ("+marketColumns+")")
	if err != nil {
		return fmt.Errorf("prepare market batch: %w", err)
	}

	for _, m := range markets {
		outcomes, err := json.Marshal(m.Outcomes)
		if err != nil {
			return fmt.Errorf("marshal outcomes: %w", err)
		}
		err = batch.Append(
			m.MarketID,
			string(m.Venue),
			m.VenueMarketID,
			m.Title,
			m.Description,
			string(m.Category),
			m.CategoryConfidence,
			m.YesPrice,
			m.NoPrice,
			string(outcomes),
			m.Volume,
			m.Liquidity,
			m.CreatedAt,
			m.CloseAt,
			string(m.Status),
			m.ExecutionID,
			m.NormalizedAt,
		)
		if err != nil {
			return fmt.Errorf("append market %s: %w", m.MarketID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send market batch: %w", err)
	}
	return nil
}

// GetByID retrieves a market by its ID. Returns ErrNotFound if not exists.
func (s *MarketStore) GetByID(ctx context.Context, marketID string) (*domain.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM normalized_markets FINAL
		WHERE market_id = ?
		LIMIT 1
	`
	rows, err := s.conn.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("get market by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}
	return scanMarket(rows)
}

// GetByVenue retrieves all markets for a venue, ordered by normalized_at DESC.
func (s *MarketStore) GetByVenue(ctx context.Context, venue domain.Venue) ([]*domain.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM normalized_markets FINAL
		WHERE venue = ?
		ORDER BY normalized_at DESC, market_id ASC
	`
	rows, err := s.conn.Query(ctx, query, string(venue))
	if err != nil {
		return nil, fmt.Errorf("get markets by venue: %w", err)
	}
	defer rows.Close()

	return scanMarkets(rows)
}

// GetByExecution retrieves the markets normalized by one pipeline run.
func (s *MarketStore) GetByExecution(ctx context.Context, executionID string) ([]*domain.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM normalized_markets FINAL
		WHERE execution_id = ?
		ORDER BY market_id ASC
	`
	rows, err := s.conn.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("get markets by execution: %w", err)
	}
	defer rows.Close()

	return scanMarkets(rows)
}

func scanMarket(rows driver.Rows) (*domain.Market, error) {
	var m domain.Market
	var venue, category, status, outcomes string
	var yesPrice, noPrice, volume, liquidity decimal.Decimal

	err := rows.Scan(
		&m.MarketID,
		&venue,
		&m.VenueMarketID,
		&m.Title,
		&m.Description,
		&category,
		&m.CategoryConfidence,
		&yesPrice,
		&noPrice,
		&outcomes,
		&volume,
		&liquidity,
		&m.CreatedAt,
		&m.CloseAt,
		&status,
		&m.ExecutionID,
		&m.NormalizedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan market row: %w", err)
	}

	m.Venue = domain.Venue(venue)
	m.Category = domain.Category(category)
	m.Status = domain.MarketStatus(status)
	m.YesPrice = yesPrice
	m.NoPrice = noPrice
	m.Volume = volume
	m.Liquidity = liquidity
	if outcomes != "" {
		if err := json.Unmarshal([]byte(outcomes), &m.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal outcomes: %w", err)
		}
	}
	return &m, nil
}

func scanMarkets(rows driver.Rows) ([]*domain.Market, error) {
	var markets []*domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market rows: %w", err)
	}
	return markets, nil
}
