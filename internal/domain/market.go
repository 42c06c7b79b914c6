package domain

import "github.com/shopspring/decimal"

// Venue identifies a prediction-market venue.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

const (
	StatusActive  MarketStatus = "active"
	StatusClosed  MarketStatus = "closed"
	StatusSettled MarketStatus = "settled"
	StatusUnknown MarketStatus = "unknown"
)

// Category is the closed topical vocabulary for normalized markets.
type Category string

const (
	CategoryPolitics       Category = "Politics"
	CategoryEconomics      Category = "Economics"
	CategorySports         Category = "Sports"
	CategoryCryptocurrency Category = "Cryptocurrency"
	CategoryTechnology     Category = "Technology"
	CategoryWeather        Category = "Weather"
	CategoryEntertainment  Category = "Entertainment"
	CategoryBusiness       Category = "Business"
	CategoryScience        Category = "Science"
	CategoryOther          Category = "Other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryPolitics, CategoryEconomics, CategorySports,
	CategoryCryptocurrency, CategoryTechnology, CategoryWeather,
	CategoryEntertainment, CategoryBusiness, CategoryScience,
	CategoryOther,
}

// Outcome is one side of a binary market.
type Outcome struct {
	Name   string          // outcome label, e.g. "Yes" / "No"
	Price  decimal.Decimal // implied probability in [0.0001, 0.9999]
	Volume decimal.Decimal // traded volume attributed to this outcome
}

// Market is a venue market normalized into the shared schema.
// Corresponds to normalized_markets table in ClickHouse.
type Market struct {
	MarketID           string          // PRIMARY KEY, deterministic hash of venue|venue_market_id
	Venue              Venue           // source venue
	VenueMarketID      string          // identifier on the source venue
	Title              string          // cleaned, <= 200 chars
	Description        string          // cleaned, <= 1000 chars
	Category           Category        // closed vocabulary
	CategoryConfidence float64         // 0..1, mapping confidence
	YesPrice           decimal.Decimal // clamped to [0.0001, 0.9999]
	NoPrice            decimal.Decimal // YES+NO within 0.02 of 1.0
	Outcomes           []Outcome       // binary outcome detail
	Volume             decimal.Decimal // total traded volume, USD, 2dp
	Liquidity          decimal.Decimal // estimated depth, capped at Volume
	CreatedAt          int64           // venue creation, unix ms
	CloseAt            int64           // scheduled close, unix ms
	Status             MarketStatus    // lifecycle state
	ExecutionID        string          // pipeline execution that produced this row
	NormalizedAt       int64           // normalization timestamp, unix ms
}
