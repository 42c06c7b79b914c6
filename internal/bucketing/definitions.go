package bucketing

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"marketfinder/internal/domain"
)

// MiscBucket receives every market that matches no definition well
// enough. It never generates cross-venue pairs on its own merit but is
// kept in the partition so every market has exactly one home.
const MiscBucket = "miscellaneous"

// TimeWindow restricts a bucket to markets resolving inside a range.
type TimeWindow struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// Definition is one semantic bucket.
type Definition struct {
	Name             string            `yaml:"name"`
	Keywords         []string          `yaml:"keywords"`
	Categories       []domain.Category `yaml:"categories"`
	Priority         int               `yaml:"priority"` // 1 = highest
	TimeWindow       *TimeWindow       `yaml:"time_window,omitempty"`
	RequiredKeywords []string          `yaml:"required_keywords,omitempty"`
	ExcludedKeywords []string          `yaml:"excluded_keywords,omitempty"`
}

// LoadDefinitions reads bucket definitions from a YAML file.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bucket definitions: %w", err)
	}
	var file struct {
		Buckets []Definition `yaml:"buckets"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse bucket definitions: %w", err)
	}
	if len(file.Buckets) == 0 {
		return nil, fmt.Errorf("bucket definitions file %s is empty", path)
	}
	for i, d := range file.Buckets {
		if d.Name == "" || len(d.Keywords) == 0 {
			return nil, fmt.Errorf("bucket %d missing name or keywords", i)
		}
	}
	return file.Buckets, nil
}

// DefaultDefinitions is the built-in bucket set.
func DefaultDefinitions() []Definition {
	window2028 := &TimeWindow{
		Start: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2029, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	return []Definition{
		{
			Name:             "politics_trump_2024",
			Keywords:         []string{"trump", "donald trump", "president trump", "trump administration"},
			Categories:       []domain.Category{domain.CategoryPolitics},
			Priority:         1,
			RequiredKeywords: []string{"trump"},
		},
		{
			Name:       "politics_election_2028",
			Keywords:   []string{"election", "presidential", "nominee", "primary", "electoral"},
			Categories: []domain.Category{domain.CategoryPolitics},
			Priority:   1,
			TimeWindow: window2028,
		},
		{
			Name:       "politics_congress",
			Keywords:   []string{"senate", "house", "congress", "speaker", "bill", "legislation"},
			Categories: []domain.Category{domain.CategoryPolitics},
			Priority:   2,
		},
		{
			// No required keywords: markets name the asset as either
			// "bitcoin" or "btc", and every entry must be present to
			// match. The keyword list carries the selection instead.
			Name:       "crypto_bitcoin_price",
			Keywords:   []string{"bitcoin", "btc", "bitcoin price", "btc price"},
			Categories: []domain.Category{domain.CategoryCryptocurrency},
			Priority:   1,
		},
		{
			Name:             "crypto_ethereum",
			Keywords:         []string{"ethereum", "eth", "ether"},
			Categories:       []domain.Category{domain.CategoryCryptocurrency},
			Priority:         2,
			RequiredKeywords: []string{"eth"},
		},
		{
			Name:             "crypto_general",
			Keywords:         []string{"crypto", "token", "altcoin", "stablecoin", "defi", "solana"},
			Categories:       []domain.Category{domain.CategoryCryptocurrency},
			Priority:         3,
			ExcludedKeywords: []string{"bitcoin", "ethereum"},
		},
		{
			Name:       "sports_nfl",
			Keywords:   []string{"nfl", "super bowl", "quarterback", "touchdown", "afc", "nfc"},
			Categories: []domain.Category{domain.CategorySports},
			Priority:   1,
		},
		{
			Name:       "sports_nba",
			Keywords:   []string{"nba", "basketball", "finals", "playoffs", "mvp"},
			Categories: []domain.Category{domain.CategorySports},
			Priority:   2,
		},
		{
			Name:       "sports_soccer",
			Keywords:   []string{"soccer", "football club", "premier league", "world cup", "champions league"},
			Categories: []domain.Category{domain.CategorySports},
			Priority:   3,
		},
		{
			Name:             "economics_fed_rates",
			Keywords:         []string{"fed", "federal reserve", "interest rate", "rate cut", "rate hike", "fomc"},
			Categories:       []domain.Category{domain.CategoryEconomics},
			Priority:         1,
			RequiredKeywords: []string{"fed"}, // substring also covers "federal reserve"
		},
		{
			Name:       "economics_inflation",
			Keywords:   []string{"inflation", "cpi", "consumer price", "pce"},
			Categories: []domain.Category{domain.CategoryEconomics},
			Priority:   2,
		},
		{
			Name:       "economics_recession",
			Keywords:   []string{"recession", "gdp", "unemployment", "economic growth"},
			Categories: []domain.Category{domain.CategoryEconomics},
			Priority:   2,
		},
		{
			Name:       "business_tech_stocks",
			Keywords:   []string{"stock", "nasdaq", "s&p", "shares", "market cap", "earnings"},
			Categories: []domain.Category{domain.CategoryBusiness, domain.CategoryTechnology},
			Priority:   2,
		},
		{
			Name:       "business_ipo",
			Keywords:   []string{"ipo", "public offering", "listing", "valuation"},
			Categories: []domain.Category{domain.CategoryBusiness},
			Priority:   3,
		},
		{
			Name:       "entertainment_awards",
			Keywords:   []string{"oscar", "academy award", "grammy", "emmy", "golden globe"},
			Categories: []domain.Category{domain.CategoryEntertainment},
			Priority:   3,
		},
		{
			Name:       "entertainment_celebrity",
			Keywords:   []string{"celebrity", "album", "tour", "box office", "movie"},
			Categories: []domain.Category{domain.CategoryEntertainment},
			Priority:   4,
		},
		{
			Name:       "weather_hurricane",
			Keywords:   []string{"hurricane", "tropical storm", "landfall", "category"},
			Categories: []domain.Category{domain.CategoryWeather},
			Priority:   2,
		},
		{
			Name:       "weather_temperature",
			Keywords:   []string{"temperature", "heat", "record high", "degrees", "warmest"},
			Categories: []domain.Category{domain.CategoryWeather},
			Priority:   3,
		},
		{
			Name:       "science_space",
			Keywords:   []string{"spacex", "nasa", "launch", "starship", "orbit", "moon", "mars"},
			Categories: []domain.Category{domain.CategoryScience},
			Priority:   3,
		},
		{
			Name:       "tech_ai",
			Keywords:   []string{"ai", "artificial intelligence", "openai", "gpt", "model release", "agi"},
			Categories: []domain.Category{domain.CategoryTechnology},
			Priority:   2,
		},
	}
}
