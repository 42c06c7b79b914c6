package filtering

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketfinder/internal/config"
	"marketfinder/internal/domain"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.FilteringConfig {
	return config.FilteringConfig{
		MinPrice:             0.05,
		MaxPrice:             0.95,
		MinVolume:            100,
		MinSpread:            0.02,
		MinTextSimilarity:    0.3,
		SpreadBypass:         0.10,
		MinLiquidityScore:    0.1,
		MinVolumeRatio:       0.1,
		MaxCloseTimeDiffDays: 30,
		MinProfitPotential:   0.02,
	}
}

func testFilter() *Filter {
	return New(testConfig()).WithClock(func() time.Time { return testNow })
}

func mkSide(venue domain.Venue, id, title string, price float64, volume int64, closeAt time.Time) *domain.Market {
	return &domain.Market{
		MarketID: id,
		Venue:    venue,
		Title:    title,
		Category: domain.CategoryPolitics,
		YesPrice: decimal.NewFromFloat(price),
		NoPrice:  decimal.NewFromFloat(1 - price),
		Volume:   decimal.NewFromInt(volume),
		CloseAt:  closeAt.UnixMilli(),
	}
}

func goodPair() *domain.MarketPair {
	closeAt := testNow.AddDate(0, 0, 10)
	return &domain.MarketPair{
		PairID:     "pair-1",
		BucketName: "politics_congress",
		Kalshi:     mkSide(domain.VenueKalshi, "k1", "Will the senate pass the funding bill this month", 0.40, 5000, closeAt),
		Polymarket: mkSide(domain.VenuePolymarket, "p1", "Senate passes funding bill this month", 0.48, 6000, closeAt.AddDate(0, 0, 1)),
	}
}

func TestRunKeepsGoodPair(t *testing.T) {
	res := testFilter().Run([]*domain.MarketPair{goodPair()})
	if len(res.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1 (reasons: %v)", len(res.Pairs), res.Reasons())
	}
	p := res.Pairs[0]
	if p.Spread < 0.079 || p.Spread > 0.081 {
		t.Errorf("spread = %v, want ~0.08", p.Spread)
	}
	if p.TextSimilarity < 0.3 {
		t.Errorf("text similarity = %v, want >= 0.3", p.TextSimilarity)
	}
	if p.ProfitPotential < 0.069 || p.ProfitPotential > 0.071 {
		t.Errorf("profit potential = %v, want ~0.07", p.ProfitPotential)
	}
}

func TestMarketValidityPriceRange(t *testing.T) {
	p := goodPair()
	p.Kalshi.YesPrice = decimal.NewFromFloat(0.97)
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 0 {
		t.Fatal("pair with extreme price should be rejected")
	}
	if res.Stages[0].Reasons["kalshi_price_range"] != 1 {
		t.Errorf("reasons = %v, want kalshi_price_range", res.Stages[0].Reasons)
	}
}

func TestMarketValidityLowVolume(t *testing.T) {
	p := goodPair()
	p.Polymarket.Volume = decimal.NewFromInt(50)
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 0 {
		t.Fatal("thin market should be rejected")
	}
	if res.Stages[0].Reasons["polymarket_low_volume"] != 1 {
		t.Errorf("reasons = %v, want polymarket_low_volume", res.Stages[0].Reasons)
	}
}

func TestBasicCompatibilityMinSpread(t *testing.T) {
	// The narrow-spread reject belongs to the first stage, before any
	// text comparison happens.
	p := goodPair()
	p.Polymarket.YesPrice = decimal.NewFromFloat(0.41) // spread 0.01
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 0 {
		t.Fatal("narrow spread should be rejected")
	}
	if res.Stages[0].Stage != "basic_compatibility" {
		t.Fatalf("first stage = %q", res.Stages[0].Stage)
	}
	if res.Stages[0].Reasons["insufficient_arbitrage"] != 1 {
		t.Errorf("stage 1 reasons = %v, want insufficient_arbitrage", res.Stages[0].Reasons)
	}
	if res.Stages[1].InputCount != 0 {
		t.Errorf("rejected pair reached the text stage")
	}
}

func TestTextSimilarityFloor(t *testing.T) {
	p := goodPair()
	p.Polymarket.Title = "Completely unrelated question about penguins"
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 0 {
		t.Fatal("dissimilar titles with modest spread should be rejected")
	}
	if res.Stages[1].Reasons["low_text_similarity"] != 1 {
		t.Errorf("reasons = %v", res.Stages[1].Reasons)
	}
}

func TestTextSimilaritySpreadBypass(t *testing.T) {
	// Dissimilar titles, but spread 0.12 clears the bypass.
	p := goodPair()
	p.Polymarket.Title = "Completely unrelated question about penguins"
	p.Polymarket.YesPrice = decimal.NewFromFloat(0.52)
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 1 {
		t.Fatalf("wide spread should bypass the similarity floor (reasons: %v)", res.Reasons())
	}
}

func TestLiquidityVolumeImbalance(t *testing.T) {
	p := goodPair()
	p.Kalshi.Volume = decimal.NewFromInt(200)
	p.Polymarket.Volume = decimal.NewFromInt(50000)
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 0 {
		t.Fatal("lopsided volumes should be rejected")
	}
	if res.Stages[2].Reasons["volume_imbalance"] != 1 {
		t.Errorf("reasons = %v", res.Stages[2].Reasons)
	}
}

func TestTimeMisalignment(t *testing.T) {
	p := goodPair()
	p.Polymarket.CloseAt = testNow.AddDate(0, 0, 45).UnixMilli()
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 0 {
		t.Fatal("close times 35 days apart should be rejected")
	}
	if res.Stages[3].Reasons["time_misalignment"] != 1 {
		t.Errorf("reasons = %v", res.Stages[3].Reasons)
	}
}

func TestClosingSoonBonus(t *testing.T) {
	p := goodPair()
	p.Kalshi.CloseAt = testNow.Add(6 * time.Hour).UnixMilli()
	p.Polymarket.CloseAt = testNow.Add(8 * time.Hour).UnixMilli()
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 1 {
		t.Fatalf("pair should survive (reasons: %v)", res.Reasons())
	}
	if res.Pairs[0].TimeAlignment <= 0.99 {
		t.Errorf("time alignment = %v, want ~1.0 with closing-soon bonus", res.Pairs[0].TimeAlignment)
	}
}

func TestArbitragePotentialStage(t *testing.T) {
	// Spread 0.025 clears the 2% entry check but nets only 0.015
	// after the cost floor, failing the final stage.
	p := goodPair()
	p.Polymarket.YesPrice = decimal.NewFromFloat(0.425)
	res := testFilter().Run([]*domain.MarketPair{p})
	if len(res.Pairs) != 0 {
		t.Fatal("sub-floor profit potential should be rejected")
	}
	if res.Stages[4].Stage != "arbitrage_potential" {
		t.Fatalf("final stage = %q", res.Stages[4].Stage)
	}
	if res.Stages[4].Reasons["insufficient_arbitrage"] != 1 {
		t.Errorf("reasons = %v", res.Stages[4].Reasons)
	}
}

func TestRunHasFiveStages(t *testing.T) {
	res := testFilter().Run([]*domain.MarketPair{goodPair()})
	want := []string{"basic_compatibility", "text_similarity", "liquidity", "time_alignment", "arbitrage_potential"}
	if len(res.Stages) != len(want) {
		t.Fatalf("stages = %d, want %d", len(res.Stages), len(want))
	}
	for i, name := range want {
		if res.Stages[i].Stage != name {
			t.Errorf("stage %d = %q, want %q", i, res.Stages[i].Stage, name)
		}
	}
}

func TestMonotoneFunnel(t *testing.T) {
	pairs := []*domain.MarketPair{goodPair()}
	bad := goodPair()
	bad.Kalshi.Volume = decimal.NewFromInt(10)
	pairs = append(pairs, bad)

	res := testFilter().Run(pairs)
	for i, s := range res.Stages {
		if s.OutputCount > s.InputCount {
			t.Fatalf("stage %d output %d exceeds input %d", i, s.OutputCount, s.InputCount)
		}
		if i > 0 && s.InputCount != res.Stages[i-1].OutputCount {
			t.Fatalf("stage %d input %d does not chain from previous output %d",
				i, s.InputCount, res.Stages[i-1].OutputCount)
		}
	}
}

func TestJaccardStopWords(t *testing.T) {
	a := Tokenize("Will the senate pass the bill")
	if _, ok := a["the"]; ok {
		t.Fatal("stop word survived tokenization")
	}
	b := Tokenize("Senate passes bill")
	if Jaccard(a, a) != 1.0 {
		t.Errorf("self similarity = %v, want 1", Jaccard(a, a))
	}
	if Jaccard(a, b) <= 0 {
		t.Error("related titles should overlap")
	}
}

func TestLiquidityScoreCentrality(t *testing.T) {
	central := mkSide(domain.VenueKalshi, "a", "x", 0.5, 10000, testNow.AddDate(0, 0, 5))
	extreme := mkSide(domain.VenueKalshi, "b", "x", 0.94, 10000, testNow.AddDate(0, 0, 5))
	if liquidityScore(central) <= liquidityScore(extreme) {
		t.Error("central price should score higher liquidity than extreme price")
	}
}
