// Package mlscoring predicts whether a filtered pair is worth the
// cost of LLM adjudication. A heuristic model ships by default; a
// trained weights artifact can replace it without touching callers.
package mlscoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"marketfinder/internal/domain"
)

// Scorer predicts pair worthiness from a feature vector.
type Scorer interface {
	Score(features domain.FeatureVector) (score, confidence float64)
	Version() string
}

// Engine runs feature extraction and scoring over filtered pairs.
type Engine struct {
	scorer    Scorer
	threshold float64
	clock     func() time.Time
}

// NewEngine creates an Engine with the given scorer and threshold.
func NewEngine(scorer Scorer, threshold float64) *Engine {
	return &Engine{scorer: scorer, threshold: threshold, clock: time.Now}
}

// WithClock overrides the clock, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Result is the output of a scoring run.
type Result struct {
	Scores []domain.MLScore          // every scored pair
	Passed []*domain.MarketPair      // pairs at or above the threshold
	ByPair map[string]domain.MLScore // pair id -> score
}

// Run scores every pair and partitions by threshold.
func (e *Engine) Run(pairs []*domain.MarketPair) Result {
	now := e.clock()
	res := Result{ByPair: make(map[string]domain.MLScore, len(pairs))}
	for _, p := range pairs {
		features := ExtractFeatures(p, now)
		score, confidence := e.scorer.Score(features)
		s := domain.MLScore{
			PairID:       p.PairID,
			Score:        score,
			Confidence:   confidence,
			ModelVersion: e.scorer.Version(),
			Features:     features,
		}
		res.Scores = append(res.Scores, s)
		res.ByPair[p.PairID] = s
		if score >= e.threshold {
			res.Passed = append(res.Passed, p)
		}
	}
	return res
}

// Heuristic weights, calibrated against labeled pair history.
const (
	textWeight       = 0.4
	spreadWeight     = 0.3
	categoryWeight   = 0.2
	volRatioWeight   = 0.1
	jaccardShare     = 0.6
	cosineShare      = 0.4
	spreadSaturation = 0.1
)

// HeuristicScorer is the shipping fallback model.
type HeuristicScorer struct{}

var _ Scorer = HeuristicScorer{}

// Score combines text similarity, spread, category match, and volume
// balance into a 0..1 worthiness score.
func (HeuristicScorer) Score(f domain.FeatureVector) (float64, float64) {
	text := f.JaccardSimilarity*jaccardShare + f.CosineSimilarity*cosineShare
	spread := math.Min(1, f.PriceDifference/spreadSaturation)
	score := text*textWeight + spread*spreadWeight +
		f.CategoryMatch*categoryWeight + f.VolumeRatio*volRatioWeight
	return score, score * 0.8
}

// Version implements Scorer.
func (HeuristicScorer) Version() string { return "heuristic" }

// featureSchema names the features in the order FeatureVector.Slice
// produces them. A model artifact must declare the same schema.
var featureSchema = []string{
	"jaccard_similarity", "cosine_similarity", "keyword_overlap_count",
	"price_difference", "volume_ratio", "category_match",
	"close_time_diff_hours", "both_closing_soon", "kalshi_liquidity_score",
	"polymarket_liquidity_score", "bucket_success_rate", "similar_pair_confidence",
}

// WeightsScorer applies a trained linear model loaded from disk.
type WeightsScorer struct {
	weights []float64
	bias    float64
	version string
}

var _ Scorer = (*WeightsScorer)(nil)

// LoadWeights reads a linear model artifact (JSON). The artifact's
// declared feature schema must match featureSchema exactly; a model
// trained on a different layout is refused rather than misapplied.
func LoadWeights(path string) (*WeightsScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var artifact struct {
		Version  string    `json:"version"`
		Features []string  `json:"features"`
		Weights  []float64 `json:"weights"`
		Bias     float64   `json:"bias"`
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if artifact.Version == "" {
		return nil, fmt.Errorf("model artifact %s missing version", path)
	}
	if len(artifact.Features) != len(featureSchema) {
		return nil, fmt.Errorf("model artifact %s declares %d features, scorer expects %d",
			path, len(artifact.Features), len(featureSchema))
	}
	for i, name := range artifact.Features {
		if name != featureSchema[i] {
			return nil, fmt.Errorf("model artifact %s feature %d is %q, scorer expects %q",
				path, i, name, featureSchema[i])
		}
	}
	if len(artifact.Weights) != len(featureSchema) {
		return nil, fmt.Errorf("model artifact %s has %d weights, scorer expects %d",
			path, len(artifact.Weights), len(featureSchema))
	}
	return &WeightsScorer{weights: artifact.Weights, bias: artifact.Bias, version: artifact.Version}, nil
}

// Score applies the linear model through a sigmoid.
func (s *WeightsScorer) Score(f domain.FeatureVector) (float64, float64) {
	z := s.bias
	for i, v := range f.Slice() {
		z += s.weights[i] * v
	}
	score := 1 / (1 + math.Exp(-z))
	return score, math.Min(0.9, score+0.1)
}

// Version implements Scorer.
func (s *WeightsScorer) Version() string { return s.version }
