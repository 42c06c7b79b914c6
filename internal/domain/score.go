package domain

// FeatureVector holds the twelve ML features in their fixed order.
type FeatureVector struct {
	JaccardSimilarity     float64
	CosineSimilarity      float64
	KeywordOverlapCount   float64
	PriceDifference       float64
	VolumeRatio           float64
	CategoryMatch         float64
	CloseTimeDiffHours    float64
	BothClosingSoon       float64
	KalshiLiquidityScore  float64
	PolymarketLiquidity   float64
	BucketSuccessRate     float64
	SimilarPairConfidence float64
}

// Slice returns the features in scoring order.
func (f FeatureVector) Slice() []float64 {
	return []float64{
		f.JaccardSimilarity, f.CosineSimilarity, f.KeywordOverlapCount,
		f.PriceDifference, f.VolumeRatio, f.CategoryMatch,
		f.CloseTimeDiffHours, f.BothClosingSoon, f.KalshiLiquidityScore,
		f.PolymarketLiquidity, f.BucketSuccessRate, f.SimilarPairConfidence,
	}
}

// MLScore is the worthiness prediction for a pair.
type MLScore struct {
	PairID       string        // scored pair
	Score        float64       // 0..1 worthiness
	Confidence   float64       // model confidence in the score
	ModelVersion string        // "heuristic" or artifact version
	Features     FeatureVector // extracted inputs
}
