// Package bucketing assigns each normalized market to exactly one
// topical bucket and generates cross-venue candidate pairs only inside
// buckets. This is the first and coarsest cut of the funnel: of the
// full cross product only intra-bucket pairs survive.
package bucketing

import (
	"sort"
	"strings"
	"time"

	"marketfinder/internal/domain"
	"marketfinder/internal/idhash"
)

// Scoring constants. Raw scores live on a 0..100 scale.
const (
	maxKeywordScore    = 50.0
	categoryExactBonus = 30.0
	categorySubBonus   = 15.0
	endDateBonus       = 20.0
	createdDateBonus   = 10.0
	maxScore           = 100.0
	priorityBoostStep  = 5.0
)

// Assignment is one market's bucket placement.
type Assignment struct {
	MarketID   string
	BucketName string
	Score      float64 // raw 0..100
	Confidence float64 // Score/100
}

// Bucketer scores markets against the bucket definitions.
type Bucketer struct {
	defs     []Definition
	minScore float64
}

// New creates a Bucketer. minScore is the raw score a winner must
// reach before the market escapes the miscellaneous bucket.
func New(defs []Definition, minScore float64) *Bucketer {
	return &Bucketer{defs: defs, minScore: minScore}
}

// Score computes the raw 0..100 match of a market against one bucket.
func (b *Bucketer) Score(m *domain.Market, def Definition) float64 {
	text := strings.ToLower(m.Title + " " + m.Description)

	for _, kw := range def.ExcludedKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return 0
		}
	}
	for _, kw := range def.RequiredKeywords {
		if !strings.Contains(text, strings.ToLower(kw)) {
			return 0
		}
	}

	matches := 0
	for _, kw := range def.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			matches++
		}
	}
	score := float64(matches) / float64(len(def.Keywords)) * 80
	if score > maxKeywordScore {
		score = maxKeywordScore
	}

	for _, cat := range def.Categories {
		if m.Category == cat {
			score += categoryExactBonus
			break
		}
		if strings.Contains(strings.ToLower(string(m.Category)), strings.ToLower(string(cat))) ||
			strings.Contains(strings.ToLower(string(cat)), strings.ToLower(string(m.Category))) {
			score += categorySubBonus
			break
		}
	}

	if def.TimeWindow != nil {
		closeAt := time.UnixMilli(m.CloseAt).UTC()
		createdAt := time.UnixMilli(m.CreatedAt).UTC()
		switch {
		case !closeAt.Before(def.TimeWindow.Start) && !closeAt.After(def.TimeWindow.End):
			score += endDateBonus
		case !createdAt.Before(def.TimeWindow.Start) && !createdAt.After(def.TimeWindow.End):
			score += createdDateBonus
		}
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

// Assign places one market. Selection ranks by raw score plus a
// priority boost; the winner must still clear minScore on raw score
// alone, else the market lands in miscellaneous.
func (b *Bucketer) Assign(m *domain.Market) Assignment {
	bestName := MiscBucket
	bestRaw := 0.0
	bestBoosted := -1.0
	for _, def := range b.defs {
		raw := b.Score(m, def)
		if raw == 0 {
			continue
		}
		boosted := raw + float64(5-def.Priority)*priorityBoostStep
		if boosted > bestBoosted {
			bestBoosted = boosted
			bestRaw = raw
			bestName = def.Name
		}
	}
	if bestRaw < b.minScore {
		return Assignment{MarketID: m.MarketID, BucketName: MiscBucket, Score: bestRaw, Confidence: bestRaw / 100}
	}
	return Assignment{MarketID: m.MarketID, BucketName: bestName, Score: bestRaw, Confidence: bestRaw / 100}
}

// Result is the output of a bucketing run.
type Result struct {
	Assignments []Assignment
	Pairs       []*domain.MarketPair
	Buckets     []domain.BucketPair // cross-venue buckets, by comparison count desc
}

// Run partitions markets into buckets and generates intra-bucket
// cross-venue pairs. Identical input ordering yields identical output.
func (b *Bucketer) Run(markets []*domain.Market) Result {
	type bucketMembers struct {
		kalshi     []*domain.Market
		polymarket []*domain.Market
	}
	members := make(map[string]*bucketMembers)
	var order []string // bucket first-seen order, for determinism

	res := Result{Assignments: make([]Assignment, 0, len(markets))}
	for _, m := range markets {
		a := b.Assign(m)
		res.Assignments = append(res.Assignments, a)
		bm, ok := members[a.BucketName]
		if !ok {
			bm = &bucketMembers{}
			members[a.BucketName] = bm
			order = append(order, a.BucketName)
		}
		switch m.Venue {
		case domain.VenueKalshi:
			bm.kalshi = append(bm.kalshi, m)
		case domain.VenuePolymarket:
			bm.polymarket = append(bm.polymarket, m)
		}
	}

	for _, name := range order {
		// The sentinel bucket is a holding pen, not a topic: its
		// members share nothing, so it never pairs.
		if name == MiscBucket {
			continue
		}
		bm := members[name]
		if len(bm.kalshi) == 0 || len(bm.polymarket) == 0 {
			continue
		}
		res.Buckets = append(res.Buckets, domain.BucketPair{
			BucketName:      name,
			KalshiCount:     len(bm.kalshi),
			PolymarketCount: len(bm.polymarket),
			ComparisonCount: len(bm.kalshi) * len(bm.polymarket),
			Priority:        b.priorityOf(name),
		})
	}
	sort.SliceStable(res.Buckets, func(i, j int) bool {
		return res.Buckets[i].ComparisonCount > res.Buckets[j].ComparisonCount
	})

	for _, bp := range res.Buckets {
		bm := members[bp.BucketName]
		for _, k := range bm.kalshi {
			for _, p := range bm.polymarket {
				res.Pairs = append(res.Pairs, &domain.MarketPair{
					PairID:     idhash.PairID(k.MarketID, p.MarketID),
					BucketName: bp.BucketName,
					Kalshi:     k,
					Polymarket: p,
				})
			}
		}
	}
	return res
}

func (b *Bucketer) priorityOf(name string) int {
	for _, def := range b.defs {
		if def.Name == name {
			return def.Priority
		}
	}
	return 5
}
