package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"marketfinder/internal/config"
	"marketfinder/internal/domain"
	"marketfinder/internal/normalize"
)

// PolymarketExtractor pulls markets from a Polymarket-style gamma API.
type PolymarketExtractor struct {
	client   *resty.Client
	limiter  *rate.Limiter
	pageSize int
}

var _ Extractor = (*PolymarketExtractor)(nil)

// NewPolymarketExtractor creates an extractor from venue config.
func NewPolymarketExtractor(cfg config.VenueConfig) *PolymarketExtractor {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	return &PolymarketExtractor{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		pageSize: cfg.PageSize,
	}
}

// Venue implements Extractor.
func (e *PolymarketExtractor) Venue() domain.Venue { return domain.VenuePolymarket }

type polymarketMarket struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Outcomes      string `json:"outcomes"`      // JSON-encoded string array
	OutcomePrices string `json:"outcomePrices"` // JSON-encoded string array
	Volume        string `json:"volume"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Closed        bool   `json:"closed"`
}

// Extract implements Extractor. Pages through /markets by offset until
// a short page arrives.
func (e *PolymarketExtractor) Extract(ctx context.Context) ([]normalize.RawMarket, error) {
	var out []normalize.RawMarket
	for page := 0; page < maxPages; page++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return out, err
		}

		var body []polymarketMarket
		resp, err := e.client.R().
			SetContext(ctx).
			SetQueryParam("limit", strconv.Itoa(e.pageSize)).
			SetQueryParam("offset", strconv.Itoa(page*e.pageSize)).
			SetQueryParam("closed", "false").
			SetResult(&body).
			Get("/markets")
		if err != nil {
			return out, fmt.Errorf("polymarket markets page %d: %w", page, err)
		}
		if resp.IsError() {
			return out, fmt.Errorf("polymarket markets page %d: status %d", page, resp.StatusCode())
		}

		for _, m := range body {
			out = append(out, polymarketToRaw(m))
		}
		if len(body) < e.pageSize {
			break
		}
	}
	return out, nil
}

// polymarketToRaw decodes the doubly-encoded outcome arrays.
func polymarketToRaw(m polymarketMarket) normalize.RawMarket {
	status := "active"
	if m.Closed {
		status = "closed"
	}
	raw := normalize.RawMarket{
		Venue:       domain.VenuePolymarket,
		ID:          m.ID,
		Title:       m.Question,
		Description: m.Description,
		Category:    m.Category,
		Volume:      m.Volume,
		CreatedAt:   m.StartDate,
		CloseAt:     m.EndDate,
		Status:      status,
	}

	var names, prices []string
	if err := json.Unmarshal([]byte(m.Outcomes), &names); err != nil {
		return raw
	}
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil {
		return raw
	}
	for i := range names {
		if i >= len(prices) {
			break
		}
		raw.Outcomes = append(raw.Outcomes, normalize.RawOutcome{Name: names[i], Price: prices[i]})
	}
	return raw
}
