package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"marketfinder/internal/domain"
	"marketfinder/internal/storage"
)

// OpportunityStore implements storage.OpportunityStore using PostgreSQL.
// Cost and risk breakdowns are stored as JSONB; money columns use
// NUMERIC and scan into decimals losslessly.
type OpportunityStore struct {
	pool *Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OpportunityStore = (*OpportunityStore)(nil)

const opportunityColumns = `
	opportunity_id, pair_id, execution_id, bucket_name, opportunity_type,
	kalshi_market_id, polymarket_market_id, buy_venue, sell_venue,
	buy_price, sell_price, position_size, gross_profit, net_profit, costs,
	profit_pct, annualized_roi, risk_score, risk_band, risk_factors,
	success_probability, execution_minutes, confidence, priority,
	status, detected_at, expires_at
`

// InsertBulk adds multiple opportunities in one transaction. Fails the
// entire batch on any duplicate opportunity_id.
func (s *OpportunityStore) InsertBulk(ctx context.Context, opps []*domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin opportunity insert: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO arbitrage_opportunities (` + opportunityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`
	for _, opp := range opps {
		costs, err := json.Marshal(opp.Costs)
		if err != nil {
			return fmt.Errorf("marshal costs: %w", err)
		}
		riskFactors, err := json.Marshal(opp.RiskFactors)
		if err != nil {
			return fmt.Errorf("marshal risk factors: %w", err)
		}

		_, err = tx.Exec(ctx, query,
			opp.OpportunityID,
			opp.PairID,
			opp.ExecutionID,
			opp.BucketName,
			string(opp.Type),
			opp.KalshiMarketID,
			opp.PolymarketMarketID,
			string(opp.BuyVenue),
			string(opp.SellVenue),
			opp.BuyPrice,
			opp.SellPrice,
			opp.PositionSize,
			opp.GrossProfit,
			opp.NetProfit,
			costs,
			opp.ProfitPct,
			opp.AnnualizedROI,
			opp.RiskScore,
			string(opp.RiskBand),
			riskFactors,
			opp.SuccessProbability,
			opp.ExecutionMinutes,
			opp.Confidence,
			opp.Priority,
			string(opp.Status),
			opp.DetectedAt,
			opp.ExpiresAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert opportunity %s: %w", opp.OpportunityID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit opportunity insert: %w", err)
	}
	return nil
}

// GetByID retrieves an opportunity by its ID. Returns ErrNotFound if not exists.
func (s *OpportunityStore) GetByID(ctx context.Context, opportunityID string) (*domain.Opportunity, error) {
	query := `
		SELECT ` + opportunityColumns + `
		FROM arbitrage_opportunities
		WHERE opportunity_id = $1
	`
	row := s.pool.QueryRow(ctx, query, opportunityID)
	opp, err := scanOpportunity(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get opportunity by id: %w", err)
	}
	return opp, nil
}

// ListActive returns active opportunities, ordered by priority DESC.
func (s *OpportunityStore) ListActive(ctx context.Context, limit int) ([]*domain.Opportunity, error) {
	query := `
		SELECT ` + opportunityColumns + `
		FROM arbitrage_opportunities
		WHERE status = 'active'
		ORDER BY priority DESC, opportunity_id ASC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list active opportunities: %w", err)
	}
	defer rows.Close()

	var opps []*domain.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity row: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunity rows: %w", err)
	}
	return opps, nil
}

// ExpireBefore marks active opportunities expiring before cutoff as
// expired and returns how many rows changed.
func (s *OpportunityStore) ExpireBefore(ctx context.Context, cutoff int64) (int, error) {
	query := `
		UPDATE arbitrage_opportunities
		SET status = 'expired'
		WHERE status = 'active' AND expires_at < $1
	`
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire opportunities: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanOpportunity(row pgx.Row) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	var typeStr, buyVenue, sellVenue, riskBand, status string
	var costs, riskFactors []byte

	err := row.Scan(
		&opp.OpportunityID,
		&opp.PairID,
		&opp.ExecutionID,
		&opp.BucketName,
		&typeStr,
		&opp.KalshiMarketID,
		&opp.PolymarketMarketID,
		&buyVenue,
		&sellVenue,
		&opp.BuyPrice,
		&opp.SellPrice,
		&opp.PositionSize,
		&opp.GrossProfit,
		&opp.NetProfit,
		&costs,
		&opp.ProfitPct,
		&opp.AnnualizedROI,
		&opp.RiskScore,
		&riskBand,
		&riskFactors,
		&opp.SuccessProbability,
		&opp.ExecutionMinutes,
		&opp.Confidence,
		&opp.Priority,
		&status,
		&opp.DetectedAt,
		&opp.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	opp.Type = domain.OpportunityType(typeStr)
	opp.BuyVenue = domain.Venue(buyVenue)
	opp.SellVenue = domain.Venue(sellVenue)
	opp.RiskBand = domain.RiskBand(riskBand)
	opp.Status = domain.OpportunityStatus(status)
	if err := json.Unmarshal(costs, &opp.Costs); err != nil {
		return nil, fmt.Errorf("unmarshal costs: %w", err)
	}
	if err := json.Unmarshal(riskFactors, &opp.RiskFactors); err != nil {
		return nil, fmt.Errorf("unmarshal risk factors: %w", err)
	}
	return &opp, nil
}
