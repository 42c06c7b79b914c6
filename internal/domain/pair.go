package domain

// MarketPair is a cross-venue candidate pair produced by bucketing and
// annotated by the filtering stages.
type MarketPair struct {
	PairID     string  // deterministic hash of both market ids
	BucketName string  // bucket that generated the pair
	Kalshi     *Market // kalshi-side market
	Polymarket *Market // polymarket-side market

	// Filled in by filtering stages.
	Spread                   float64 // |yes_a - yes_b|
	TextSimilarity           float64 // Jaccard over stop-word-free title tokens
	KalshiLiquidityScore     float64 // 0..1
	PolymarketLiquidityScore float64 // 0..1
	VolumeRatio              float64 // min/max of venue volumes
	TimeAlignment            float64 // 0..1, closeness of close times
	ProfitPotential          float64 // max(0, spread - 0.01)
}

// LiquidityScore is the mean of the two per-market liquidity scores.
func (p *MarketPair) LiquidityScore() float64 {
	return (p.KalshiLiquidityScore + p.PolymarketLiquidityScore) / 2
}

// BucketPair summarizes one bucket's cross-venue pairing potential.
type BucketPair struct {
	BucketName      string // bucket identifier
	KalshiCount     int    // kalshi markets assigned
	PolymarketCount int    // polymarket markets assigned
	ComparisonCount int    // KalshiCount * PolymarketCount
	Priority        int    // bucket priority, 1 = highest
}
