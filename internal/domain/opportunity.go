package domain

import "github.com/shopspring/decimal"

// OpportunityType classifies how an arbitrage is expected to converge.
type OpportunityType string

const (
	TypeSimple        OpportunityType = "SIMPLE"
	TypeTemporal      OpportunityType = "TEMPORAL"
	TypeLiquidity     OpportunityType = "LIQUIDITY"
	TypeCrossPlatform OpportunityType = "CROSS_PLATFORM"
)

// RiskBand buckets the composite risk score.
type RiskBand string

const (
	RiskVeryLow  RiskBand = "VERY_LOW"  // < 0.15
	RiskLow      RiskBand = "LOW"       // < 0.30
	RiskMedium   RiskBand = "MEDIUM"    // < 0.50
	RiskHigh     RiskBand = "HIGH"      // < 0.70
	RiskVeryHigh RiskBand = "VERY_HIGH" // >= 0.70
)

// OpportunityStatus is the lifecycle state of a detected opportunity.
type OpportunityStatus string

const (
	OpportunityActive  OpportunityStatus = "active"
	OpportunityExpired OpportunityStatus = "expired"
)

// RiskFactors are the five weighted components of the risk score.
type RiskFactors struct {
	Liquidity   float64 // weight 0.30
	Timing      float64 // weight 0.25
	Execution   float64 // weight 0.20
	Correlation float64 // weight 0.15
	Platform    float64 // weight 0.10
}

// CostBreakdown itemizes execution costs in USD.
type CostBreakdown struct {
	KalshiFee     decimal.Decimal // 1% of position
	PolymarketFee decimal.Decimal // 2% of position
	Gas           decimal.Decimal // flat settlement cost
	Slippage      decimal.Decimal // both sides combined
	Total         decimal.Decimal
}

// Opportunity is a fully scored arbitrage candidate.
// Corresponds to arbitrage_opportunities table in PostgreSQL.
type Opportunity struct {
	OpportunityID string          // PRIMARY KEY, deterministic hash
	PairID        string          // originating pair
	ExecutionID   string          // pipeline execution
	BucketName    string          // originating bucket
	Type          OpportunityType // convergence classification

	KalshiMarketID     string // normalized market id, kalshi side
	PolymarketMarketID string // normalized market id, polymarket side
	BuyVenue           Venue  // venue with the lower yes price
	SellVenue          Venue  // venue with the higher yes price

	BuyPrice     decimal.Decimal // yes price on the buy venue
	SellPrice    decimal.Decimal // yes price on the sell venue
	PositionSize decimal.Decimal // USD, 2dp
	GrossProfit  decimal.Decimal // spread * position
	Costs        CostBreakdown
	NetProfit    decimal.Decimal // gross - total costs

	ProfitPct          float64 // net / position
	AnnualizedROI      float64 // percent
	RiskScore          float64 // weighted composite, 0..1
	RiskBand           RiskBand
	RiskFactors        RiskFactors
	SuccessProbability float64 // max(0.5, 1 - risk)
	ExecutionMinutes   int     // expected time to execute
	Confidence         float64 // adjudicator confidence
	Priority           float64 // ranking score, 3dp

	Status     OpportunityStatus
	DetectedAt int64 // unix ms
	ExpiresAt  int64 // min(earliest close, detection + 24h)
}
