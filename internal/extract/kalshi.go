package extract

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"marketfinder/internal/config"
	"marketfinder/internal/domain"
	"marketfinder/internal/normalize"
)

// maxPages bounds runaway pagination against a misbehaving API.
const maxPages = 500

// KalshiExtractor pulls markets from a Kalshi-style REST API.
type KalshiExtractor struct {
	client   *resty.Client
	limiter  *rate.Limiter
	pageSize int
}

var _ Extractor = (*KalshiExtractor)(nil)

// NewKalshiExtractor creates an extractor from venue config.
func NewKalshiExtractor(cfg config.VenueConfig) *KalshiExtractor {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	return &KalshiExtractor{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		pageSize: cfg.PageSize,
	}
}

// Venue implements Extractor.
func (e *KalshiExtractor) Venue() domain.Venue { return domain.VenueKalshi }

type kalshiMarket struct {
	Ticker    string `json:"ticker"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`
	Category  string `json:"category"`
	YesBid    int    `json:"yes_bid"` // cents
	YesAsk    int    `json:"yes_ask"` // cents
	Volume    int64  `json:"volume"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	Status    string `json:"status"`
}

type kalshiPage struct {
	Markets []kalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

// Extract implements Extractor. Pages through /markets until the
// cursor runs out.
func (e *KalshiExtractor) Extract(ctx context.Context) ([]normalize.RawMarket, error) {
	var out []normalize.RawMarket
	cursor := ""
	for page := 0; page < maxPages; page++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return out, err
		}

		req := e.client.R().
			SetContext(ctx).
			SetQueryParam("limit", strconv.Itoa(e.pageSize)).
			SetQueryParam("status", "open")
		if cursor != "" {
			req.SetQueryParam("cursor", cursor)
		}

		var body kalshiPage
		resp, err := req.SetResult(&body).Get("/markets")
		if err != nil {
			return out, fmt.Errorf("kalshi markets page %d: %w", page, err)
		}
		if resp.IsError() {
			return out, fmt.Errorf("kalshi markets page %d: status %d", page, resp.StatusCode())
		}

		for _, m := range body.Markets {
			out = append(out, kalshiToRaw(m))
		}
		cursor = body.Cursor
		if cursor == "" || len(body.Markets) == 0 {
			break
		}
	}
	return out, nil
}

// kalshiToRaw converts order-book cents into a mid probability.
func kalshiToRaw(m kalshiMarket) normalize.RawMarket {
	mid := float64(m.YesBid+m.YesAsk) / 2 / 100
	return normalize.RawMarket{
		Venue:       domain.VenueKalshi,
		ID:          m.Ticker,
		Title:       m.Title,
		Description: m.Subtitle,
		Category:    m.Category,
		YesPrice:    strconv.FormatFloat(mid, 'f', 4, 64),
		Volume:      strconv.FormatInt(m.Volume, 10),
		CreatedAt:   m.OpenTime,
		CloseAt:     m.CloseTime,
		Status:      m.Status,
	}
}
