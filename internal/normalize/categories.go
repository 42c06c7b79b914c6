package normalize

import (
	"strings"

	"marketfinder/internal/domain"
)

// categoryMappingConfidence is the floor a direct venue-category match
// must clear; below it we fall back to keyword inference.
const categoryMappingConfidence = 0.7

// venueCategoryTables map a venue's own category labels onto the
// closed vocabulary. Labels are matched lowercase.
var venueCategoryTables = map[domain.Venue]map[string]domain.Category{
	domain.VenueKalshi: {
		"politics":           domain.CategoryPolitics,
		"elections":          domain.CategoryPolitics,
		"economics":          domain.CategoryEconomics,
		"financials":         domain.CategoryEconomics,
		"companies":          domain.CategoryBusiness,
		"science and nature": domain.CategoryScience,
		"climate":            domain.CategoryWeather,
		"weather":            domain.CategoryWeather,
		"sports":             domain.CategorySports,
		"crypto":             domain.CategoryCryptocurrency,
		"technology":         domain.CategoryTechnology,
		"entertainment":      domain.CategoryEntertainment,
		"world":              domain.CategoryPolitics,
	},
	domain.VenuePolymarket: {
		"politics":           domain.CategoryPolitics,
		"us-current-affairs": domain.CategoryPolitics,
		"geopolitics":        domain.CategoryPolitics,
		"business":           domain.CategoryBusiness,
		"finance":            domain.CategoryEconomics,
		"economy":            domain.CategoryEconomics,
		"crypto":             domain.CategoryCryptocurrency,
		"sports":             domain.CategorySports,
		"tech":               domain.CategoryTechnology,
		"science":            domain.CategoryScience,
		"pop-culture":        domain.CategoryEntertainment,
		"entertainment":      domain.CategoryEntertainment,
		"weather":            domain.CategoryWeather,
	},
}

// categoryKeywords drive the inference fallback over title+description.
var categoryKeywords = map[domain.Category][]string{
	domain.CategoryPolitics:       {"election", "president", "senate", "congress", "vote", "governor", "nominee", "impeach"},
	domain.CategoryEconomics:      {"fed", "inflation", "gdp", "recession", "interest rate", "cpi", "unemployment", "treasury"},
	domain.CategorySports:         {"nfl", "nba", "super bowl", "playoffs", "championship", "world cup", "match", "game"},
	domain.CategoryCryptocurrency: {"bitcoin", "btc", "ethereum", "eth", "crypto", "token", "blockchain", "solana"},
	domain.CategoryTechnology:     {"ai", "artificial intelligence", "openai", "iphone", "software", "chip", "semiconductor"},
	domain.CategoryWeather:        {"hurricane", "temperature", "rainfall", "snow", "storm", "heat wave", "tornado"},
	domain.CategoryEntertainment:  {"oscar", "grammy", "box office", "movie", "album", "emmy", "celebrity"},
	domain.CategoryBusiness:       {"ipo", "stock", "earnings", "merger", "acquisition", "ceo", "bankruptcy"},
	domain.CategoryScience:        {"spacex", "nasa", "launch", "vaccine", "trial", "discovery", "telescope"},
}

// inferenceOrder fixes the tie-break order for keyword inference.
var inferenceOrder = []domain.Category{
	domain.CategoryPolitics, domain.CategoryEconomics, domain.CategorySports,
	domain.CategoryCryptocurrency, domain.CategoryTechnology, domain.CategoryWeather,
	domain.CategoryEntertainment, domain.CategoryBusiness, domain.CategoryScience,
}

// mapCategory resolves the category for a market. Direct venue table
// hits win; otherwise the keyword count over title+description
// decides; otherwise Other.
func mapCategory(venue domain.Venue, rawCategory, title, description string) (domain.Category, float64) {
	if table, ok := venueCategoryTables[venue]; ok {
		if cat, ok := table[normalizeToken(rawCategory)]; ok {
			return cat, 0.9
		}
	}

	text := strings.ToLower(title + " " + description)
	best := domain.CategoryOther
	bestHits := 0
	for _, cat := range inferenceOrder {
		hits := 0
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = cat, hits
		}
	}
	if bestHits == 0 {
		return domain.CategoryOther, 0.5
	}

	confidence := 0.6 + 0.1*float64(bestHits)
	if confidence > categoryMappingConfidence+0.1 {
		confidence = categoryMappingConfidence + 0.1
	}
	return best, confidence
}
