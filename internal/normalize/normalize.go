// Package normalize converts raw venue payloads into the shared
// market schema. Everything downstream of extraction assumes the
// invariants enforced here: clamped prices, a repaired YES/NO pair,
// a closed category vocabulary, and dates inside the accepted range.
package normalize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketfinder/internal/domain"
	"marketfinder/internal/idhash"
)

// Price bounds for normalized probabilities.
var (
	minPrice = decimal.RequireFromString("0.0001")
	maxPrice = decimal.RequireFromString("0.9999")
)

// binaryTolerance is how far YES+NO may drift from 1.0 before repair.
const binaryTolerance = 0.02

// defaultPrice is used when a price field cannot be parsed.
var defaultPrice = decimal.RequireFromString("0.5")

// RawOutcome is one outcome as delivered by a venue API.
type RawOutcome struct {
	Name  string
	Price string
}

// RawMarket is a venue market before normalization. Numeric fields
// stay strings because venue APIs deliver them inconsistently.
type RawMarket struct {
	Venue       domain.Venue
	ID          string
	Title       string
	Description string
	Category    string
	YesPrice    string // single yes probability, if the venue provides one
	NoPrice     string // optional
	Outcomes    []RawOutcome
	Volume      string
	CreatedAt   string
	CloseAt     string
	Status      string
}

// Normalizer converts raw markets into domain markets.
type Normalizer struct {
	clock func() time.Time
}

// New creates a Normalizer using the wall clock.
func New() *Normalizer {
	return &Normalizer{clock: time.Now}
}

// WithClock overrides the clock, for tests.
func (n *Normalizer) WithClock(clock func() time.Time) *Normalizer {
	n.clock = clock
	return n
}

// Normalize converts one raw market. It returns an error only when the
// market cannot be represented at all (missing id or title, no date in
// the accepted range); recoverable defects are repaired with defaults.
func (n *Normalizer) Normalize(raw RawMarket, executionID string) (*domain.Market, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("%s market without id", raw.Venue)
	}
	title := cleanText(raw.Title, maxTitleLen)
	if title == "" {
		return nil, fmt.Errorf("%s market %s without title", raw.Venue, raw.ID)
	}

	now := n.clock()

	closeAt, err := parseDate(raw.CloseAt, now)
	if err != nil {
		return nil, fmt.Errorf("%s market %s close date: %w", raw.Venue, raw.ID, err)
	}
	createdAt, err := parseDate(raw.CreatedAt, now)
	if err != nil {
		// A missing creation date is not fatal; fall back to now.
		createdAt = now
	}

	yes, no := normalizePrices(raw)
	volume := parseVolume(raw.Volume)
	description := cleanText(raw.Description, maxDescriptionLen)
	category, confidence := mapCategory(raw.Venue, raw.Category, title, description)

	outcomes := normalizeOutcomes(raw, yes, no, volume)

	m := &domain.Market{
		MarketID:           idhash.MarketID(string(raw.Venue), raw.ID),
		Venue:              raw.Venue,
		VenueMarketID:      raw.ID,
		Title:              title,
		Description:        description,
		Category:           category,
		CategoryConfidence: confidence,
		YesPrice:           yes,
		NoPrice:            no,
		Outcomes:           outcomes,
		Volume:             volume,
		Liquidity:          estimateLiquidity(outcomes, yes, no, volume),
		CreatedAt:          createdAt.UnixMilli(),
		CloseAt:            closeAt.UnixMilli(),
		Status:             deriveStatus(raw.Status, closeAt, now),
		ExecutionID:        executionID,
		NormalizedAt:       now.UnixMilli(),
	}
	return m, nil
}

// BatchResult accounts for a batch normalization run.
type BatchResult struct {
	Markets []*domain.Market
	Errors  []error
}

// NormalizeBatch converts a slice of raw markets, collecting per-item
// errors instead of failing the batch.
func (n *Normalizer) NormalizeBatch(raws []RawMarket, executionID string) BatchResult {
	res := BatchResult{Markets: make([]*domain.Market, 0, len(raws))}
	for _, raw := range raws {
		m, err := n.Normalize(raw, executionID)
		if err != nil {
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Markets = append(res.Markets, m)
	}
	return res
}

// normalizePrices resolves the YES/NO pair from whatever the venue
// gave us and repairs the binary invariant.
func normalizePrices(raw RawMarket) (yes, no decimal.Decimal) {
	switch {
	case raw.YesPrice != "":
		yes = parsePrice(raw.YesPrice)
	case len(raw.Outcomes) > 0:
		yes = parsePrice(yesOutcome(raw.Outcomes).Price)
	default:
		yes = defaultPrice
	}

	if raw.NoPrice != "" {
		no = parsePrice(raw.NoPrice)
	} else {
		no = clampPrice(decimal.NewFromInt(1).Sub(yes))
	}

	// Repair when the pair drifts beyond tolerance.
	sum, _ := yes.Add(no).Float64()
	if sum < 1-binaryTolerance || sum > 1+binaryTolerance {
		no = clampPrice(decimal.NewFromInt(1).Sub(yes))
	}
	return yes, no
}

// yesOutcome picks the YES-like outcome, else the first one.
func yesOutcome(outcomes []RawOutcome) RawOutcome {
	for _, o := range outcomes {
		switch normalizeToken(o.Name) {
		case "yes", "true", "1":
			return o
		}
	}
	return outcomes[0]
}

// parsePrice parses a probability, clamping into the valid band.
// Unparseable input becomes the 0.5 default.
func parsePrice(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return defaultPrice
	}
	return clampPrice(d)
}

func clampPrice(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(minPrice) {
		return minPrice
	}
	if d.GreaterThan(maxPrice) {
		return maxPrice
	}
	return d
}

// parseVolume parses a non-negative USD volume, 2dp.
func parseVolume(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

// normalizeOutcomes produces the binary outcome detail. Venues without
// per-outcome volume split total volume evenly.
func normalizeOutcomes(raw RawMarket, yes, no, volume decimal.Decimal) []domain.Outcome {
	half := volume.Div(decimal.NewFromInt(2)).Round(2)
	return []domain.Outcome{
		{Name: "Yes", Price: yes, Volume: half},
		{Name: "No", Price: no, Volume: half},
	}
}

// estimateLiquidity derives available depth from outcome volume and
// the distance between outcome prices, capped at total volume.
func estimateLiquidity(outcomes []domain.Outcome, yes, no, volume decimal.Decimal) decimal.Decimal {
	if volume.IsZero() {
		return decimal.Zero
	}
	avg := decimal.Zero
	for _, o := range outcomes {
		avg = avg.Add(o.Volume)
	}
	avg = avg.Div(decimal.NewFromInt(int64(len(outcomes))))

	spread, _ := yes.Sub(no).Abs().Float64()
	factor := 1 - spread
	if factor < 0.1 {
		factor = 0.1
	}
	liq := avg.Mul(decimal.NewFromFloat(factor)).Round(2)
	if liq.GreaterThan(volume) {
		return volume
	}
	return liq
}

// deriveStatus trusts the venue's explicit status when recognizable,
// otherwise infers from the close date.
func deriveStatus(raw string, closeAt, now time.Time) domain.MarketStatus {
	switch normalizeToken(raw) {
	case "active", "open", "trading":
		return domain.StatusActive
	case "closed", "inactive", "finalized":
		return domain.StatusClosed
	case "settled", "resolved":
		return domain.StatusSettled
	}
	if closeAt.After(now) {
		return domain.StatusActive
	}
	return domain.StatusClosed
}
