// Package llm adjudicates filtered pairs through a language model.
// Calls are cached by content hash, rate limited, concurrency
// bounded, circuit broken, and cost capped; every failure mode
// degrades to a conservative fallback evaluation so the pipeline
// never stalls on the provider.
package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"marketfinder/internal/domain"
	"marketfinder/internal/idhash"
	"marketfinder/internal/storage"
)

// cachedPrefix marks reasoning served from the cache.
const cachedPrefix = "[CACHED] "

// estimatedCallCostUSD seeds the per-call budget reservation until an
// actual provider cost has been observed.
const estimatedCallCostUSD = 0.01

// Options configures an Evaluator.
type Options struct {
	Provider           Provider
	Cache              storage.EvaluationCache
	RequestsPerMinute  int
	ConcurrentRequests int
	CacheTTL           time.Duration
	MaxCostPerBatchUSD float64
	AcceptThreshold    float64
	Logger             zerolog.Logger
}

// Evaluator runs batched adjudication.
type Evaluator struct {
	provider  Provider
	cache     storage.EvaluationCache
	limiter   *rate.Limiter // burst 1, so a 60s window never exceeds rpm
	sem       *semaphore.Weighted
	ttl       time.Duration
	costCap   float64
	threshold float64
	log       zerolog.Logger
	clock     func() time.Time
}

// NewEvaluator creates an Evaluator from options.
func NewEvaluator(opts Options) *Evaluator {
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	concurrent := opts.ConcurrentRequests
	if concurrent <= 0 {
		concurrent = 5
	}
	return &Evaluator{
		provider:  opts.Provider,
		cache:     opts.Cache,
		limiter:   rate.NewLimiter(rate.Limit(float64(rpm)/60), 1),
		sem:       semaphore.NewWeighted(int64(concurrent)),
		ttl:       opts.CacheTTL,
		costCap:   opts.MaxCostPerBatchUSD,
		threshold: opts.AcceptThreshold,
		log:       opts.Logger,
		clock:     time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (e *Evaluator) WithClock(clock func() time.Time) *Evaluator {
	e.clock = clock
	return e
}

// Result is the output of one adjudication batch.
type Result struct {
	Evaluations   []domain.Evaluation          // one per non-truncated pair, input order
	Accepted      []*domain.MarketPair         // pairs clearing the accept threshold
	ByPair        map[string]domain.Evaluation // pair id -> evaluation
	CacheLookups  int
	CacheHits     int
	ProviderCalls int
	Truncated     int     // pairs dropped by the cost cap
	TotalCostUSD  float64 // provider spend this batch
}

// CacheHitRate returns hits/lookups, or 0 for an empty batch.
func (r Result) CacheHitRate() float64 {
	if r.CacheLookups == 0 {
		return 0
	}
	return float64(r.CacheHits) / float64(r.CacheLookups)
}

// Run adjudicates the batch. mlScores supplies per-pair worthiness for
// the prompt; missing entries render as zero.
func (e *Evaluator) Run(ctx context.Context, pairs []*domain.MarketPair, mlScores map[string]domain.MLScore) (Result, error) {
	res := Result{ByPair: make(map[string]domain.Evaluation, len(pairs))}

	// Cache pass first: hits are free and do not count against the
	// budget, so a replayed batch costs nothing.
	evals := make([]*domain.Evaluation, len(pairs))
	var misses []int
	for i, p := range pairs {
		res.CacheLookups++
		key := e.cacheKey(p)
		cached, err := e.cache.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				e.log.Warn().Err(err).Str("pair_id", p.PairID).Msg("evaluation cache read failed")
			}
			misses = append(misses, i)
			continue
		}
		res.CacheHits++
		hit := *cached
		hit.PairID = p.PairID
		hit.Cached = true
		hit.CostUSD = 0
		hit.Reasoning = cachedPrefix + hit.Reasoning
		evals[i] = &hit
	}

	var (
		mu       sync.Mutex
		spent    float64
		reserved float64
		perCall  = estimatedCallCostUSD
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, idx := range misses {
		i, p := idx, pairs[idx]

		if err := e.sem.Acquire(gctx, 1); err != nil {
			// Context gone: remaining misses are truncated.
			res.Truncated++
			continue
		}

		// Budget check happens after acquiring a slot so spend from
		// completed calls is visible before committing to another.
		// The estimate is reserved up front: a call whose projected
		// cost would push the batch past the cap never dispatches.
		mu.Lock()
		estimate := perCall
		over := e.costCap > 0 && spent+reserved+estimate > e.costCap
		if !over {
			reserved += estimate
		}
		mu.Unlock()
		if over {
			e.sem.Release(1)
			res.Truncated++
			continue
		}

		g.Go(func() error {
			defer e.sem.Release(1)
			eval := e.evaluateOne(gctx, p, mlScores[p.PairID].Score)
			mu.Lock()
			reserved -= estimate
			spent += eval.CostUSD
			if eval.CostUSD > perCall {
				perCall = eval.CostUSD
			}
			mu.Unlock()
			evals[i] = eval
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for i, p := range pairs {
		eval := evals[i]
		if eval == nil {
			continue // truncated
		}
		res.Evaluations = append(res.Evaluations, *eval)
		res.ByPair[p.PairID] = *eval
		res.TotalCostUSD += eval.CostUSD
		if !eval.Cached {
			res.ProviderCalls++
		}
		if eval.ConfidenceScore >= e.threshold && eval.RecommendedAction != domain.ActionReject {
			res.Accepted = append(res.Accepted, p)
		}
	}
	return res, ctx.Err()
}

// evaluateOne calls the provider for a single pair, applying the rate
// limit and degrading to a fallback evaluation on any failure.
func (e *Evaluator) evaluateOne(ctx context.Context, p *domain.MarketPair, mlScore float64) *domain.Evaluation {
	if err := e.limiter.Wait(ctx); err != nil {
		return e.fallback(p, err)
	}

	completion, err := e.provider.Evaluate(ctx, systemPrompt, buildUserPrompt(p, mlScore))
	if err != nil {
		e.log.Warn().Err(err).Str("pair_id", p.PairID).Msg("provider call failed")
		return e.fallback(p, err)
	}

	parsed, ok := parseResponse(completion.Content)
	if !ok {
		e.log.Warn().Str("pair_id", p.PairID).Msg("unparseable provider response")
	}
	eval := &domain.Evaluation{
		PairID:             p.PairID,
		ConfidenceScore:    parsed.ConfidenceScore,
		Reasoning:          parsed.Reasoning,
		SemanticSimilarity: parsed.SemanticSimilarity,
		ArbitrageViability: parsed.ArbitrageViability,
		RiskAssessment:     parsed.RiskAssessment,
		RecommendedAction:  domain.Action(parsed.RecommendedAction),
		Provider:           e.provider.Name(),
		Model:              completion.Model,
		CostUSD:            completion.CostUSD,
		EvaluatedAt:        e.clock().UnixMilli(),
	}

	if err := e.cache.Set(ctx, e.cacheKey(p), eval, e.ttl); err != nil {
		e.log.Warn().Err(err).Str("pair_id", p.PairID).Msg("evaluation cache write failed")
	}
	return eval
}

// fallback is the conservative evaluation used when the provider is
// unreachable or the breaker is open. It is never cached so the pair
// gets a real adjudication on the next run.
func (e *Evaluator) fallback(p *domain.MarketPair, err error) *domain.Evaluation {
	return &domain.Evaluation{
		PairID:             p.PairID,
		ConfidenceScore:    0,
		Reasoning:          "provider unavailable: " + err.Error(),
		SemanticSimilarity: p.TextSimilarity,
		ArbitrageViability: p.Spread,
		RecommendedAction:  domain.ActionInvestigate,
		Provider:           "fallback",
		EvaluatedAt:        e.clock().UnixMilli(),
	}
}

func (e *Evaluator) cacheKey(p *domain.MarketPair) string {
	return idhash.EvaluationKey(
		p.Kalshi.MarketID, p.Polymarket.MarketID,
		p.Kalshi.Title, p.Polymarket.Title,
	)
}
