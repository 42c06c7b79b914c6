package mlscoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketfinder/internal/domain"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func mkPair(bucket string) *domain.MarketPair {
	closeAt := testNow.AddDate(0, 0, 10)
	return &domain.MarketPair{
		PairID:     "pair-1",
		BucketName: bucket,
		Kalshi: &domain.Market{
			MarketID: "k1",
			Venue:    domain.VenueKalshi,
			Title:    "Will the senate pass the funding bill",
			Category: domain.CategoryPolitics,
			YesPrice: decimal.NewFromFloat(0.40),
			Volume:   decimal.NewFromInt(5000),
			CloseAt:  closeAt.UnixMilli(),
		},
		Polymarket: &domain.Market{
			MarketID: "p1",
			Venue:    domain.VenuePolymarket,
			Title:    "Senate passes funding bill",
			Category: domain.CategoryPolitics,
			YesPrice: decimal.NewFromFloat(0.48),
			Volume:   decimal.NewFromInt(6000),
			CloseAt:  closeAt.Add(12 * time.Hour).UnixMilli(),
		},
		Spread:                   0.08,
		TextSimilarity:           0.7,
		KalshiLiquidityScore:     0.9,
		PolymarketLiquidityScore: 0.94,
	}
}

func TestExtractFeatures(t *testing.T) {
	f := ExtractFeatures(mkPair("politics_congress"), testNow)

	if f.JaccardSimilarity != 0.7 {
		t.Errorf("jaccard = %v, want pair's text similarity", f.JaccardSimilarity)
	}
	if f.CosineSimilarity <= 0 || f.CosineSimilarity > 1 {
		t.Errorf("cosine = %v", f.CosineSimilarity)
	}
	if f.CategoryMatch != 1 {
		t.Errorf("category match = %v, want 1", f.CategoryMatch)
	}
	if math.Abs(f.VolumeRatio-5000.0/6000.0) > 1e-9 {
		t.Errorf("volume ratio = %v", f.VolumeRatio)
	}
	if math.Abs(f.CloseTimeDiffHours-12) > 1e-9 {
		t.Errorf("close diff hours = %v, want 12", f.CloseTimeDiffHours)
	}
	if f.BothClosingSoon != 0 {
		t.Errorf("both closing soon = %v, want 0", f.BothClosingSoon)
	}
	if math.Abs(f.KalshiLiquidityScore-0.9*0.6) > 1e-9 {
		t.Errorf("kalshi liquidity feature = %v", f.KalshiLiquidityScore)
	}
	if f.BucketSuccessRate != 0.6 {
		t.Errorf("bucket rate = %v, want default 0.6", f.BucketSuccessRate)
	}
	if f.SimilarPairConfidence != 0.7 {
		t.Errorf("similar pair confidence = %v", f.SimilarPairConfidence)
	}
	if len(f.Slice()) != 12 {
		t.Fatalf("feature count = %d, want 12", len(f.Slice()))
	}
}

func TestBucketSuccessRatePrior(t *testing.T) {
	f := ExtractFeatures(mkPair("crypto_bitcoin_price"), testNow)
	if f.BucketSuccessRate != 0.75 {
		t.Errorf("bucket rate = %v, want 0.75", f.BucketSuccessRate)
	}
}

func TestHeuristicScorerBounds(t *testing.T) {
	var s HeuristicScorer
	score, conf := s.Score(domain.FeatureVector{
		JaccardSimilarity: 1, CosineSimilarity: 1, PriceDifference: 1,
		CategoryMatch: 1, VolumeRatio: 1,
	})
	if score != 1 {
		t.Errorf("max score = %v, want 1", score)
	}
	if conf != 0.8 {
		t.Errorf("confidence = %v, want score*0.8", conf)
	}

	score, _ = s.Score(domain.FeatureVector{})
	if score != 0 {
		t.Errorf("empty score = %v, want 0", score)
	}
}

func TestHeuristicScorerSpreadSaturation(t *testing.T) {
	var s HeuristicScorer
	a, _ := s.Score(domain.FeatureVector{PriceDifference: 0.1})
	b, _ := s.Score(domain.FeatureVector{PriceDifference: 0.5})
	if a != b {
		t.Errorf("spread contribution should saturate at 0.1: %v vs %v", a, b)
	}
}

func TestEngineThreshold(t *testing.T) {
	engine := NewEngine(HeuristicScorer{}, 0.3).WithClock(func() time.Time { return testNow })

	good := mkPair("politics_congress")
	bad := mkPair("politics_congress")
	bad.PairID = "pair-2"
	bad.TextSimilarity = 0
	bad.Spread = 0.0
	bad.Polymarket.Title = "zebra crossing count"
	bad.Polymarket.Category = domain.CategoryOther
	bad.Polymarket.Volume = decimal.NewFromInt(1)

	res := engine.Run([]*domain.MarketPair{good, bad})
	if len(res.Scores) != 2 {
		t.Fatalf("scores = %d, want 2", len(res.Scores))
	}
	if len(res.Passed) != 1 || res.Passed[0].PairID != "pair-1" {
		t.Fatalf("passed = %v, want only pair-1", len(res.Passed))
	}
	if res.ByPair["pair-1"].ModelVersion != "heuristic" {
		t.Errorf("model version = %q", res.ByPair["pair-1"].ModelVersion)
	}
}

// writeArtifact builds a model artifact with the given feature list
// and weights.
func writeArtifact(t *testing.T, features []string, weights string) string {
	t.Helper()
	names, err := json.Marshal(features)
	if err != nil {
		t.Fatal(err)
	}
	body := fmt.Sprintf(`{"version":"v2","features":%s,"weights":%s,"bias":0}`, names, weights)
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadWeightsRoundTrip(t *testing.T) {
	path := writeArtifact(t, featureSchema, `[1,0,0,0,0,0,0,0,0,0,0,0]`)

	s, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("load weights: %v", err)
	}
	if s.Version() != "v2" {
		t.Errorf("version = %q", s.Version())
	}
	score, conf := s.Score(domain.FeatureVector{JaccardSimilarity: 2})
	want := 1 / (1 + math.Exp(-2))
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", score, want)
	}
	if conf > 0.9 {
		t.Errorf("confidence capped at 0.9, got %v", conf)
	}
}

func TestLoadWeightsMissingVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	if err := os.WriteFile(path, []byte(`{"weights":[0,0,0,0,0,0,0,0,0,0,0,0]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(path); err == nil {
		t.Fatal("expected error for artifact without version")
	}
}

func TestLoadWeightsRefusesSchemaMismatch(t *testing.T) {
	// A model trained on a reordered or renamed feature layout must
	// not load, even when the weight count happens to fit.
	renamed := append([]string{}, featureSchema...)
	renamed[3] = "spread"
	path := writeArtifact(t, renamed, `[0,0,0,0,0,0,0,0,0,0,0,0]`)
	if _, err := LoadWeights(path); err == nil {
		t.Fatal("expected error for renamed feature")
	}

	short := featureSchema[:11]
	path = writeArtifact(t, short, `[0,0,0,0,0,0,0,0,0,0,0]`)
	if _, err := LoadWeights(path); err == nil {
		t.Fatal("expected error for missing feature")
	}
}

func TestLoadWeightsRefusesWeightCountMismatch(t *testing.T) {
	path := writeArtifact(t, featureSchema, `[1,0,0]`)
	if _, err := LoadWeights(path); err == nil {
		t.Fatal("expected error for too few weights")
	}
}
