package mlscoring

import (
	"math"
	"time"

	"marketfinder/internal/domain"
	"marketfinder/internal/filtering"
)

// Liquidity feature weights reflect observed fill quality per venue.
const (
	kalshiLiquidityWeight     = 0.6
	polymarketLiquidityWeight = 0.4
)

// similarPairConfidence is a placeholder prior until pair-outcome
// history accumulates.
const similarPairConfidence = 0.7

// bucketSuccessRates are historical conversion priors per bucket.
var bucketSuccessRates = map[string]float64{
	"politics_trump_2024":  0.85,
	"crypto_bitcoin_price": 0.75,
	"sports_nfl":           0.70,
	"economics_fed_rates":  0.80,
}

const defaultBucketSuccessRate = 0.6

// ExtractFeatures builds the twelve-feature vector for a pair.
func ExtractFeatures(p *domain.MarketPair, now time.Time) domain.FeatureVector {
	kTokens := filtering.Tokenize(p.Kalshi.Title)
	pTokens := filtering.Tokenize(p.Polymarket.Title)

	kv, _ := p.Kalshi.Volume.Float64()
	pv, _ := p.Polymarket.Volume.Float64()

	closeDiffHours := math.Abs(float64(p.Kalshi.CloseAt-p.Polymarket.CloseAt)) / float64(time.Hour.Milliseconds())

	categoryMatch := 0.0
	if p.Kalshi.Category == p.Polymarket.Category {
		categoryMatch = 1.0
	}

	bothSoon := 0.0
	day := int64(24 * time.Hour / time.Millisecond)
	nowMs := now.UnixMilli()
	if p.Kalshi.CloseAt-nowMs <= day && p.Polymarket.CloseAt-nowMs <= day {
		bothSoon = 1.0
	}

	rate, ok := bucketSuccessRates[p.BucketName]
	if !ok {
		rate = defaultBucketSuccessRate
	}

	return domain.FeatureVector{
		JaccardSimilarity:     p.TextSimilarity,
		CosineSimilarity:      cosineSimilarity(kTokens, pTokens),
		KeywordOverlapCount:   float64(filtering.Intersection(kTokens, pTokens)),
		PriceDifference:       p.Spread,
		VolumeRatio:           volumeRatio(kv, pv),
		CategoryMatch:         categoryMatch,
		CloseTimeDiffHours:    closeDiffHours,
		BothClosingSoon:       bothSoon,
		KalshiLiquidityScore:  p.KalshiLiquidityScore * kalshiLiquidityWeight,
		PolymarketLiquidity:   p.PolymarketLiquidityScore * polymarketLiquidityWeight,
		BucketSuccessRate:     rate,
		SimilarPairConfidence: similarPairConfidence,
	}
}

// cosineSimilarity over binary token presence reduces to
// intersection / sqrt(|a|*|b|).
func cosineSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := filtering.Intersection(a, b)
	return float64(inter) / math.Sqrt(float64(len(a)*len(b)))
}

func volumeRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return math.Min(a, b) / math.Max(a, b)
}
