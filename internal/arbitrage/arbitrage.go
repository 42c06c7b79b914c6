// Package arbitrage turns adjudicated pairs into sized, costed, and
// risk-scored opportunities. Money math runs on decimals end to end;
// only ratios and scores use floats.
package arbitrage

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"marketfinder/internal/config"
	"marketfinder/internal/domain"
	"marketfinder/internal/idhash"
)

// Classification thresholds.
const (
	simpleSpreadMin   = 0.05
	liquidityRatioMax = 0.3
	temporalGapMs     = 24 * 60 * 60 * 1000
	maxExecutionMin   = 60
	opportunityTTLHrs = 24
)

// Kelly sizing constants: assumed win rate and fraction cap.
const (
	kellyWinRate = 0.8
	kellyCap     = 0.25
)

// liquidityCapFraction bounds the position by a share of the thinner
// market's volume.
const liquidityCapFraction = 0.2

// Risk weights, in RiskFactors order.
const (
	wLiquidity   = 0.30
	wTiming      = 0.25
	wExecution   = 0.20
	wCorrelation = 0.15
	wPlatform    = 0.10
)

// Priority weights.
const (
	wProfit     = 0.4
	wROI        = 0.3
	wSafety     = 0.2
	wConfidence = 0.1
)

// Detector scores accepted pairs into opportunities.
type Detector struct {
	cfg   config.ArbitrageConfig
	clock func() time.Time
}

// New creates a Detector using the wall clock.
func New(cfg config.ArbitrageConfig) *Detector {
	return &Detector{cfg: cfg, clock: time.Now}
}

// WithClock overrides the clock, for tests.
func (d *Detector) WithClock(clock func() time.Time) *Detector {
	d.clock = clock
	return d
}

// Result is the output of a detection run.
type Result struct {
	Opportunities []*domain.Opportunity // gate survivors, priority DESC
	Rejected      int                   // pairs failing the profitability gate
}

// Run scores every pair and keeps those passing the profitability
// gate, sorted by priority descending.
func (d *Detector) Run(pairs []*domain.MarketPair, evals map[string]domain.Evaluation, executionID string) Result {
	var res Result
	for _, p := range pairs {
		opp := d.Score(p, evals[p.PairID], executionID)
		if opp == nil {
			res.Rejected++
			continue
		}
		res.Opportunities = append(res.Opportunities, opp)
	}
	sort.SliceStable(res.Opportunities, func(i, j int) bool {
		a, b := res.Opportunities[i], res.Opportunities[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.OpportunityID < b.OpportunityID
	})
	return res
}

// Score builds the opportunity for one pair, or nil when it fails the
// profitability gate.
func (d *Detector) Score(p *domain.MarketPair, eval domain.Evaluation, executionID string) *domain.Opportunity {
	now := d.clock()

	buyVenue, sellVenue := domain.VenueKalshi, domain.VenuePolymarket
	buyPrice, sellPrice := p.Kalshi.YesPrice, p.Polymarket.YesPrice
	if buyPrice.GreaterThan(sellPrice) {
		buyVenue, sellVenue = sellVenue, buyVenue
		buyPrice, sellPrice = sellPrice, buyPrice
	}

	kv, _ := p.Kalshi.Volume.Float64()
	pv, _ := p.Polymarket.Volume.Float64()
	minVolume := decimal.Min(p.Kalshi.Volume, p.Polymarket.Volume)

	position := d.positionSize(p.Spread, minVolume)
	if position.IsZero() {
		return nil
	}

	costs := d.costs(position, p.Kalshi.Volume, p.Polymarket.Volume)
	gross := decimal.NewFromFloat(p.Spread).Mul(position).Round(2)
	net := gross.Sub(costs.Total)

	netF, _ := net.Float64()
	posF, _ := position.Float64()
	profitPct := netF / posF

	factors := d.riskFactors(p, eval, kv, pv, now)
	risk := wLiquidity*factors.Liquidity + wTiming*factors.Timing +
		wExecution*factors.Execution + wCorrelation*factors.Correlation +
		wPlatform*factors.Platform

	// Profitability gate.
	if net.Sign() <= 0 || profitPct < d.cfg.MinProfitPct {
		return nil
	}
	if netF < d.cfg.MinProfitUSD {
		return nil
	}
	if d.cfg.MaxRiskScore > 0 && risk > d.cfg.MaxRiskScore {
		return nil
	}

	minClose := p.Kalshi.CloseAt
	if p.Polymarket.CloseAt < minClose {
		minClose = p.Polymarket.CloseAt
	}
	daysToClose := math.Max(1, float64(minClose-now.UnixMilli())/float64(24*time.Hour.Milliseconds()))
	roi := profitPct * 100 * 365 / daysToClose

	priority := wProfit*math.Min(1, profitPct/0.1) +
		wROI*math.Min(1, roi/100) +
		wSafety*(1-risk) +
		wConfidence*eval.ConfidenceScore

	expiresAt := now.Add(opportunityTTLHrs * time.Hour).UnixMilli()
	if minClose < expiresAt {
		expiresAt = minClose
	}

	return &domain.Opportunity{
		OpportunityID:      idhash.OpportunityID(p.PairID, executionID),
		PairID:             p.PairID,
		ExecutionID:        executionID,
		BucketName:         p.BucketName,
		Type:               d.classify(p, kv, pv),
		KalshiMarketID:     p.Kalshi.MarketID,
		PolymarketMarketID: p.Polymarket.MarketID,
		BuyVenue:           buyVenue,
		SellVenue:          sellVenue,
		BuyPrice:           buyPrice,
		SellPrice:          sellPrice,
		PositionSize:       position,
		GrossProfit:        gross,
		Costs:              costs,
		NetProfit:          net,
		ProfitPct:          profitPct,
		AnnualizedROI:      roi,
		RiskScore:          risk,
		RiskBand:           band(risk),
		RiskFactors:        factors,
		SuccessProbability: math.Max(0.5, 1-risk),
		ExecutionMinutes:   executionMinutes(factors.Execution),
		Confidence:         eval.ConfidenceScore,
		Priority:           math.Round(priority*1000) / 1000,
		Status:             domain.OpportunityActive,
		DetectedAt:         now.UnixMilli(),
		ExpiresAt:          expiresAt,
	}
}

// classify picks the opportunity type: wide spreads converge simply,
// mismatched close times converge on the earlier settlement, thin
// sides make it a liquidity play, otherwise it is venue friction.
func (d *Detector) classify(p *domain.MarketPair, kv, pv float64) domain.OpportunityType {
	if p.Spread >= simpleSpreadMin {
		return domain.TypeSimple
	}
	if absInt64(p.Kalshi.CloseAt-p.Polymarket.CloseAt) > temporalGapMs {
		return domain.TypeTemporal
	}
	if ratio(kv, pv) < liquidityRatioMax {
		return domain.TypeLiquidity
	}
	return domain.TypeCrossPlatform
}

// positionSize applies the liquidity cap, the absolute cap, and a
// capped Kelly fraction of the maximum position.
func (d *Detector) positionSize(spread float64, minVolume decimal.Decimal) decimal.Decimal {
	if spread <= 0 {
		return decimal.Zero
	}
	// Kelly fraction for a binary edge with the assumed win rate:
	// f = (0.8*spread - 0.2)/spread, clamped to [0, 0.25].
	f := (kellyWinRate*spread - (1 - kellyWinRate)) / spread
	if f < 0 {
		f = 0
	}
	if f > kellyCap {
		f = kellyCap
	}

	maxPos := decimal.NewFromFloat(d.cfg.MaxPositionUSD)
	liqCap := minVolume.Mul(decimal.NewFromFloat(liquidityCapFraction))
	kellyPos := maxPos.Mul(decimal.NewFromFloat(f))

	pos := decimal.Min(liqCap, maxPos, kellyPos)
	if pos.Sign() <= 0 {
		return decimal.Zero
	}
	return pos.Round(2)
}

// costs itemizes fees, gas, and slippage for a position.
func (d *Detector) costs(position, kalshiVolume, polymarketVolume decimal.Decimal) domain.CostBreakdown {
	kalshiFee := position.Mul(decimal.NewFromFloat(d.cfg.KalshiFeeRate)).Round(2)
	polyFee := position.Mul(decimal.NewFromFloat(d.cfg.PolymarketFeeRate)).Round(2)
	gas := decimal.NewFromFloat(d.cfg.GasCostUSD)

	// Per-side slippage grows with position share of that side's volume.
	posF, _ := position.Float64()
	slippage := position.Mul(decimal.NewFromFloat(
		slippageRate(posF, kalshiVolume) + slippageRate(posF, polymarketVolume),
	)).Round(2)

	total := kalshiFee.Add(polyFee).Add(gas).Add(slippage)
	return domain.CostBreakdown{
		KalshiFee:     kalshiFee,
		PolymarketFee: polyFee,
		Gas:           gas,
		Slippage:      slippage,
		Total:         total,
	}
}

// riskFactors scores the five risk components on 0..1.
func (d *Detector) riskFactors(p *domain.MarketPair, eval domain.Evaluation, kv, pv float64, now time.Time) domain.RiskFactors {
	minVol := math.Min(kv, pv)
	var liquidity float64
	switch {
	case minVol > 10000:
		liquidity = 0.1
	case minVol > 5000:
		liquidity = 0.2
	case minVol > 1000:
		liquidity = 0.4
	case minVol > 500:
		liquidity = 0.6
	default:
		liquidity = 0.8
	}

	minClose := math.Min(float64(p.Kalshi.CloseAt), float64(p.Polymarket.CloseAt))
	hours := (minClose - float64(now.UnixMilli())) / float64(time.Hour.Milliseconds())
	var timing float64
	switch {
	case hours < 1:
		timing = 0.1
	case hours < 24:
		timing = 0.2
	case hours < 168:
		timing = 0.4
	default:
		timing = 0.7
	}

	var execution float64
	switch {
	case p.Spread < 0.02:
		execution = 0.3
	case p.Spread > 0.2:
		execution = 0.4
	default:
		execution = 0.2
	}

	return domain.RiskFactors{
		Liquidity:   liquidity,
		Timing:      timing,
		Execution:   execution,
		Correlation: 1 - eval.SemanticSimilarity,
		Platform:    0.1,
	}
}

func band(risk float64) domain.RiskBand {
	switch {
	case risk < 0.15:
		return domain.RiskVeryLow
	case risk < 0.30:
		return domain.RiskLow
	case risk < 0.50:
		return domain.RiskMedium
	case risk < 0.70:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}

// executionMinutes scales expected execution time with execution risk,
// floored at half an hour.
func executionMinutes(executionRisk float64) int {
	m := int(executionRisk * 120)
	if m < 30 {
		m = 30
	}
	if m > maxExecutionMin {
		return maxExecutionMin
	}
	return m
}

func slippageRate(position float64, volume decimal.Decimal) float64 {
	volF, _ := volume.Float64()
	if volF <= 0 {
		return 0.01
	}
	return math.Min(0.01, position/volF*0.5)
}

func ratio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return math.Min(a, b) / math.Max(a, b)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
