// Package filtering implements the hierarchical filter: five cheap
// deterministic sub-stages that discard the bulk of candidate pairs
// before any model or provider is consulted. Each sub-stage's output
// is a subset of its input and every rejection is counted by reason.
package filtering

import (
	"fmt"
	"math"
	"time"

	"marketfinder/internal/config"
	"marketfinder/internal/domain"
)

// Rejection reason keys.
const (
	reasonInvalidPrice      = "invalid_price"
	reasonPriceRange        = "price_range"
	reasonLowVolume         = "low_volume"
	reasonInsufficientArb   = "insufficient_arbitrage"
	reasonLowTextSimilarity = "low_text_similarity"
	reasonLowLiquidity      = "low_liquidity"
	reasonVolumeImbalance   = "volume_imbalance"
	reasonTimeMisalignment  = "time_misalignment"
)

// closingSoonBonus is added to the time alignment score when both
// markets close within a day, capped at 1.0.
const closingSoonBonus = 0.2

// StageStats accounts for one sub-stage.
type StageStats struct {
	Stage         string
	InputCount    int
	OutputCount   int
	FilteredCount int
	FilterRate    float64
	DurationMs    int64
	Reasons       map[string]int
}

// Result is the output of a full filtering run.
type Result struct {
	Pairs  []*domain.MarketPair
	Stages []StageStats
}

// Reasons aggregates rejection counts across all sub-stages.
func (r Result) Reasons() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Stages {
		for reason, n := range s.Reasons {
			out[reason] += n
		}
	}
	return out
}

// Filter runs the five sub-stages.
type Filter struct {
	cfg   config.FilteringConfig
	clock func() time.Time
}

// New creates a Filter using the wall clock.
func New(cfg config.FilteringConfig) *Filter {
	return &Filter{cfg: cfg, clock: time.Now}
}

// WithClock overrides the clock, for tests.
func (f *Filter) WithClock(clock func() time.Time) *Filter {
	f.clock = clock
	return f
}

// Run applies the sub-stages in order: basic compatibility, text
// similarity, liquidity, time alignment, arbitrage potential.
func (f *Filter) Run(pairs []*domain.MarketPair) Result {
	var res Result
	pairs, s1 := f.runStage("basic_compatibility", pairs, f.basicCompatibility)
	res.Stages = append(res.Stages, s1)
	pairs, s2 := f.runStage("text_similarity", pairs, f.textSimilarity)
	res.Stages = append(res.Stages, s2)
	pairs, s3 := f.runStage("liquidity", pairs, f.liquidity)
	res.Stages = append(res.Stages, s3)
	pairs, s4 := f.runStage("time_alignment", pairs, f.timeAlignment)
	res.Stages = append(res.Stages, s4)
	pairs, s5 := f.runStage("arbitrage_potential", pairs, f.arbitragePotential)
	res.Stages = append(res.Stages, s5)
	res.Pairs = pairs
	return res
}

// runStage applies check to every pair. check returns the rejection
// reason, or "" to keep the pair.
func (f *Filter) runStage(name string, pairs []*domain.MarketPair, check func(*domain.MarketPair) string) ([]*domain.MarketPair, StageStats) {
	start := f.clock()
	stats := StageStats{Stage: name, InputCount: len(pairs), Reasons: make(map[string]int)}

	kept := pairs[:0:0]
	for _, p := range pairs {
		if reason := check(p); reason != "" {
			stats.Reasons[reason]++
			continue
		}
		kept = append(kept, p)
	}

	stats.OutputCount = len(kept)
	stats.FilteredCount = stats.InputCount - stats.OutputCount
	if stats.InputCount > 0 {
		stats.FilterRate = float64(stats.FilteredCount) / float64(stats.InputCount)
	}
	stats.DurationMs = f.clock().Sub(start).Milliseconds()
	return kept, stats
}

// basicCompatibility rejects pairs whose markets are individually
// untradeable (price outside the band, volume below the floor) and
// pairs whose spread is too narrow to arbitrage no matter how well
// the titles match. The spread is computed here for all later stages.
func (f *Filter) basicCompatibility(p *domain.MarketPair) string {
	for _, side := range []*domain.Market{p.Kalshi, p.Polymarket} {
		price, _ := side.YesPrice.Float64()
		if price <= 0 || price >= 1 {
			return fmt.Sprintf("%s_%s", side.Venue, reasonInvalidPrice)
		}
		if price < f.cfg.MinPrice || price > f.cfg.MaxPrice {
			return fmt.Sprintf("%s_%s", side.Venue, reasonPriceRange)
		}
		vol, _ := side.Volume.Float64()
		if vol < f.cfg.MinVolume {
			return fmt.Sprintf("%s_%s", side.Venue, reasonLowVolume)
		}
	}

	k, _ := p.Kalshi.YesPrice.Float64()
	pm, _ := p.Polymarket.YesPrice.Float64()
	p.Spread = math.Abs(k - pm)
	if p.Spread < f.cfg.MinSpread {
		return reasonInsufficientArb
	}
	return ""
}

// textSimilarity rejects pairs with too little title overlap. A wide
// spread bypasses the similarity floor: big disagreements are worth a
// closer look even when the titles diverge.
func (f *Filter) textSimilarity(p *domain.MarketPair) string {
	p.TextSimilarity = Jaccard(Tokenize(p.Kalshi.Title), Tokenize(p.Polymarket.Title))
	if p.TextSimilarity < f.cfg.MinTextSimilarity && p.Spread < f.cfg.SpreadBypass {
		return reasonLowTextSimilarity
	}
	return ""
}

// liquidity scores both sides and rejects thin or lopsided pairs.
func (f *Filter) liquidity(p *domain.MarketPair) string {
	p.KalshiLiquidityScore = liquidityScore(p.Kalshi)
	p.PolymarketLiquidityScore = liquidityScore(p.Polymarket)
	if p.LiquidityScore() < f.cfg.MinLiquidityScore {
		return reasonLowLiquidity
	}

	kv, _ := p.Kalshi.Volume.Float64()
	pv, _ := p.Polymarket.Volume.Float64()
	p.VolumeRatio = volumeRatio(kv, pv)
	if p.VolumeRatio < f.cfg.MinVolumeRatio {
		return reasonVolumeImbalance
	}
	return ""
}

// timeAlignment rejects pairs whose close times are too far apart.
func (f *Filter) timeAlignment(p *domain.MarketPair) string {
	maxDiff := f.cfg.MaxCloseTimeDiffDays * 24 * float64(time.Hour.Milliseconds())
	diff := math.Abs(float64(p.Kalshi.CloseAt - p.Polymarket.CloseAt))
	if diff > maxDiff {
		return reasonTimeMisalignment
	}

	p.TimeAlignment = 1 - diff/maxDiff
	if bothClosingSoon(p, f.clock()) {
		p.TimeAlignment += closingSoonBonus
		if p.TimeAlignment > 1 {
			p.TimeAlignment = 1
		}
	}
	return ""
}

// arbitragePotential rejects pairs whose spread leaves no profit
// after the assumed cost floor.
func (f *Filter) arbitragePotential(p *domain.MarketPair) string {
	p.ProfitPotential = math.Max(0, p.Spread-0.01)
	if p.ProfitPotential < f.cfg.MinProfitPotential {
		return reasonInsufficientArb
	}
	return ""
}

// liquidityScore maps volume and price centrality onto 0..1. Volume
// counts for less the further the price sits from 0.5, since depth at
// extreme prices is rarely executable.
func liquidityScore(m *domain.Market) float64 {
	vol, _ := m.Volume.Float64()
	price, _ := m.YesPrice.Float64()
	centrality := 1 - math.Abs(price-0.5)*2
	if centrality < 0.1 {
		centrality = 0.1
	}
	score := math.Log10(vol*centrality+1) / 4
	if score > 1 {
		score = 1
	}
	return score
}

func volumeRatio(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return math.Min(a, b) / math.Max(a, b)
}

// bothClosingSoon reports whether both sides close within 24h.
func bothClosingSoon(p *domain.MarketPair, now time.Time) bool {
	day := int64(24 * time.Hour / time.Millisecond)
	nowMs := now.UnixMilli()
	return p.Kalshi.CloseAt-nowMs < day && p.Polymarket.CloseAt-nowMs < day
}
