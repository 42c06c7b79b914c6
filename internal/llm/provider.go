package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

// Completion is one provider response plus its attributed cost.
type Completion struct {
	Content string  // raw model output
	Model   string  // model that answered
	CostUSD float64 // derived from token usage
}

// Provider answers adjudication prompts.
type Provider interface {
	// Evaluate sends one prompt and returns the completion.
	Evaluate(ctx context.Context, system, user string) (*Completion, error)

	// Name identifies the provider in evaluations.
	Name() string
}

// Token pricing per 1M tokens, used to attribute cost. Matches the
// default model; override via NewHTTPProvider options if it drifts.
const (
	promptCostPerMTok     = 0.15
	completionCostPerMTok = 0.60
)

// HTTPProvider calls an OpenAI-compatible chat completions endpoint.
type HTTPProvider struct {
	client *resty.Client
	model  string
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider against baseURL using apiKey.
func NewHTTPProvider(baseURL, apiKey, model string, timeout time.Duration) *HTTPProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	return &HTTPProvider{client: client, model: model}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	// Temperature zero keeps adjudications as repeatable as the
	// provider allows.
	Temperature float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Evaluate implements Provider.
func (p *HTTPProvider) Evaluate(ctx context.Context, system, user string) (*Completion, error) {
	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var out chatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("provider status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	cost := float64(out.Usage.PromptTokens)/1e6*promptCostPerMTok +
		float64(out.Usage.CompletionTokens)/1e6*completionCostPerMTok
	model := out.Model
	if model == "" {
		model = p.model
	}
	return &Completion{Content: out.Choices[0].Message.Content, Model: model, CostUSD: cost}, nil
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return "openai" }

// BreakerProvider wraps a Provider with a circuit breaker. While the
// breaker is open every Evaluate fails fast, which downstream turns
// into fallback evaluations instead of stalling the batch.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
}

var _ Provider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps inner with default breaker settings: trip
// after 5 consecutive failures, retry after 30s.
func NewBreakerProvider(inner Provider) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:    inner.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerProvider{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Evaluate implements Provider.
func (b *BreakerProvider) Evaluate(ctx context.Context, system, user string) (*Completion, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Evaluate(ctx, system, user)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Completion), nil
}

// Name implements Provider.
func (b *BreakerProvider) Name() string { return b.inner.Name() }
