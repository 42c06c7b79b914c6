package normalize

import (
	"strings"
	"testing"
	"time"

	"marketfinder/internal/domain"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testNormalizer() *Normalizer {
	return New().WithClock(func() time.Time { return testNow })
}

func validRaw() RawMarket {
	return RawMarket{
		Venue:     domain.VenueKalshi,
		ID:        "PRES-2028",
		Title:     "Will the incumbent win the 2028 election?",
		Category:  "Politics",
		YesPrice:  "0.42",
		Volume:    "15000",
		CreatedAt: "2026-07-01T00:00:00Z",
		CloseAt:   "2026-11-03T00:00:00Z",
		Status:    "active",
	}
}

func TestNormalizeValidMarket(t *testing.T) {
	m, err := testNormalizer().Normalize(validRaw(), "exec-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if m.Venue != domain.VenueKalshi {
		t.Errorf("venue = %s", m.Venue)
	}
	if got := m.YesPrice.String(); got != "0.42" {
		t.Errorf("yes price = %s, want 0.42", got)
	}
	if got := m.NoPrice.String(); got != "0.58" {
		t.Errorf("no price = %s, want 0.58", got)
	}
	if m.Category != domain.CategoryPolitics {
		t.Errorf("category = %s, want Politics", m.Category)
	}
	if m.Status != domain.StatusActive {
		t.Errorf("status = %s, want active", m.Status)
	}
	if m.MarketID == "" || m.ExecutionID != "exec-1" {
		t.Errorf("ids not populated: %q %q", m.MarketID, m.ExecutionID)
	}
}

func TestNormalizePriceClamping(t *testing.T) {
	raw := validRaw()
	raw.YesPrice = "1.7"
	m, err := testNormalizer().Normalize(raw, "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := m.YesPrice.String(); got != "0.9999" {
		t.Errorf("clamped yes = %s, want 0.9999", got)
	}

	raw.YesPrice = "-0.2"
	m, err = testNormalizer().Normalize(raw, "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := m.YesPrice.String(); got != "0.0001" {
		t.Errorf("clamped yes = %s, want 0.0001", got)
	}
}

func TestNormalizeUnparseablePriceDefaults(t *testing.T) {
	raw := validRaw()
	raw.YesPrice = "n/a"
	m, err := testNormalizer().Normalize(raw, "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := m.YesPrice.String(); got != "0.5" {
		t.Errorf("default yes = %s, want 0.5", got)
	}
}

func TestNormalizeBinaryRepair(t *testing.T) {
	raw := validRaw()
	raw.YesPrice = "0.42"
	raw.NoPrice = "0.70" // sum 1.12, outside tolerance
	m, err := testNormalizer().Normalize(raw, "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	sum, _ := m.YesPrice.Add(m.NoPrice).Float64()
	if sum < 0.98 || sum > 1.02 {
		t.Errorf("yes+no = %v, want within 0.02 of 1", sum)
	}
}

func TestNormalizeOutcomeYesSelection(t *testing.T) {
	raw := validRaw()
	raw.YesPrice = ""
	raw.Outcomes = []RawOutcome{
		{Name: "No", Price: "0.67"},
		{Name: "Yes", Price: "0.33"},
	}
	m, err := testNormalizer().Normalize(raw, "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if got := m.YesPrice.String(); got != "0.33" {
		t.Errorf("yes from outcomes = %s, want 0.33", got)
	}
}

func TestNormalizeDateFormats(t *testing.T) {
	cases := []string{
		"2026-11-03T00:00:00Z",
		"2026-11-03T00:00:00.000000Z",
		"2026-11-03 00:00:00",
		"2026-11-03",
		"11/03/2026",
		"1794009600", // 2026-11-07 unix
	}
	for _, c := range cases {
		raw := validRaw()
		raw.CloseAt = c
		if _, err := testNormalizer().Normalize(raw, "exec-1"); err != nil {
			t.Errorf("close date %q rejected: %v", c, err)
		}
	}
}

func TestNormalizeRejectsOutOfRangeDate(t *testing.T) {
	raw := validRaw()
	raw.CloseAt = "2031-01-01" // beyond now+1095d
	if _, err := testNormalizer().Normalize(raw, "exec-1"); err == nil {
		t.Fatal("expected error for far-future close date")
	}
}

func TestNormalizeTitleTruncation(t *testing.T) {
	raw := validRaw()
	raw.Title = strings.Repeat("market ", 60) // 420 chars
	m, err := testNormalizer().Normalize(raw, "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Title) > 200 {
		t.Errorf("title length %d > 200", len(m.Title))
	}
	if !strings.HasSuffix(m.Title, "...") {
		t.Errorf("truncated title missing ellipsis: %q", m.Title)
	}
}

func TestNormalizeCategoryInference(t *testing.T) {
	raw := validRaw()
	raw.Venue = domain.VenuePolymarket
	raw.Category = "something-unknown"
	raw.Title = "Will Bitcoin close above 150k this year?"
	m, err := testNormalizer().Normalize(raw, "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Category != domain.CategoryCryptocurrency {
		t.Errorf("category = %s, want Cryptocurrency", m.Category)
	}
}

func TestNormalizeLiquidityCappedAtVolume(t *testing.T) {
	m, err := testNormalizer().Normalize(validRaw(), "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if m.Liquidity.GreaterThan(m.Volume) {
		t.Errorf("liquidity %s exceeds volume %s", m.Liquidity, m.Volume)
	}
}

func TestNormalizeBatchCollectsErrors(t *testing.T) {
	bad := validRaw()
	bad.Title = ""
	res := testNormalizer().NormalizeBatch([]RawMarket{validRaw(), bad}, "exec-1")
	if len(res.Markets) != 1 {
		t.Errorf("markets = %d, want 1", len(res.Markets))
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(res.Errors))
	}
}
