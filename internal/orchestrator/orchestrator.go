// Package orchestrator runs the cascaded funnel end to end: extraction,
// normalization, bucketing, filtering, worthiness scoring, adjudication,
// arbitrage detection, storage. Each run is recorded as a pipeline
// execution with per-stage metrics.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marketfinder/internal/arbitrage"
	"marketfinder/internal/bucketing"
	"marketfinder/internal/config"
	"marketfinder/internal/domain"
	"marketfinder/internal/extract"
	"marketfinder/internal/filtering"
	"marketfinder/internal/llm"
	"marketfinder/internal/mlscoring"
	"marketfinder/internal/normalize"
	"marketfinder/internal/observability"
	"marketfinder/internal/storage"
)

// Publisher receives opportunities as they are stored. The websocket
// hub implements it; nil disables streaming.
type Publisher interface {
	Publish(opp *domain.Opportunity)
}

// Options wires a Pipeline. Metrics and Publisher are optional.
type Options struct {
	Config        *config.Config
	Extractors    []extract.Extractor
	Normalizer    *normalize.Normalizer
	Bucketer      *bucketing.Bucketer
	Filter        *filtering.Filter
	MLEngine      *mlscoring.Engine
	Evaluator     *llm.Evaluator
	Detector      *arbitrage.Detector
	Markets       storage.MarketStore
	Executions    storage.ExecutionStore
	Opportunities storage.OpportunityStore
	SyncLogs      storage.SyncLogStore
	Metrics       *observability.Metrics
	Publisher     Publisher
	Logger        zerolog.Logger
}

// Pipeline executes funnel runs.
type Pipeline struct {
	opts  Options
	clock func() time.Time
}

// New creates a Pipeline from options.
func New(opts Options) *Pipeline {
	return &Pipeline{opts: opts, clock: time.Now}
}

// WithClock overrides the clock, for tests.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// Run executes one funnel pass. A stage failure is recorded on the
// execution; unless fail_on_stage_error is set the run continues with
// the empty output of the failed stage. Context cancellation stops the
// run at the next stage boundary and persists partial metrics under
// status CANCELLED.
func (p *Pipeline) Run(ctx context.Context) (*domain.PipelineExecution, error) {
	exec := &domain.PipelineExecution{
		ExecutionID: uuid.NewString(),
		Status:      domain.ExecutionRunning,
		StartedAt:   p.clock().UnixMilli(),
	}
	log := p.opts.Logger.With().Str("execution_id", exec.ExecutionID).Logger()
	log.Info().Msg("pipeline run started")

	if err := p.opts.Executions.Insert(ctx, exec); err != nil {
		log.Warn().Err(err).Msg("execution insert failed")
	}

	// extraction
	raws, err := p.extraction(ctx, exec, log)
	if halt, herr := p.checkpoint(ctx, exec, err); halt {
		return exec, herr
	}

	// normalization
	markets, err := p.normalization(ctx, exec, log, raws)
	if halt, herr := p.checkpoint(ctx, exec, err); halt {
		return exec, herr
	}
	exec.MarketsProcessed = len(markets)

	// bucketing
	started := p.clock()
	bres := p.opts.Bucketer.Run(markets)
	p.record(exec, domain.StageBucketing, started, len(markets), len(bres.Pairs), 0, nil)
	log.Info().Int("buckets", len(bres.Buckets)).Int("pairs", len(bres.Pairs)).Msg("bucketing done")
	if halt, herr := p.checkpoint(ctx, exec, nil); halt {
		return exec, herr
	}

	// filtering
	started = p.clock()
	fres := p.opts.Filter.Run(bres.Pairs)
	reasons := fres.Reasons()
	p.record(exec, domain.StageFiltering, started, len(bres.Pairs), len(fres.Pairs), 0, reasons)
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordRejections(reasons)
	}
	log.Info().Int("survivors", len(fres.Pairs)).Msg("filtering done")
	if halt, herr := p.checkpoint(ctx, exec, nil); halt {
		return exec, herr
	}

	// ml scoring
	started = p.clock()
	mres := p.opts.MLEngine.Run(fres.Pairs)
	p.record(exec, domain.StageMLScoring, started, len(fres.Pairs), len(mres.Passed), 0, nil)
	log.Info().Int("worthy", len(mres.Passed)).Msg("ml scoring done")
	if halt, herr := p.checkpoint(ctx, exec, nil); halt {
		return exec, herr
	}

	// llm evaluation
	started = p.clock()
	exec.PairsEvaluated = len(mres.Passed)
	lres, lerr := p.opts.Evaluator.Run(ctx, mres.Passed, mres.ByPair)
	exec.CacheHitRate = lres.CacheHitRate()
	exec.LLMCostUSD = lres.TotalCostUSD
	p.record(exec, domain.StageLLMEvaluation, started, len(mres.Passed), len(lres.Accepted), lres.Truncated, nil)
	if p.opts.Metrics != nil {
		m := p.opts.Metrics
		m.CacheLookups.Add(float64(lres.CacheLookups))
		m.CacheHits.Add(float64(lres.CacheHits))
		m.ProviderCalls.Add(float64(lres.ProviderCalls))
		m.LLMCostUSD.Add(lres.TotalCostUSD)
		m.PairsTruncated.Add(float64(lres.Truncated))
	}
	log.Info().
		Int("accepted", len(lres.Accepted)).
		Int("provider_calls", lres.ProviderCalls).
		Float64("cost_usd", lres.TotalCostUSD).
		Msg("llm evaluation done")
	if halt, herr := p.checkpoint(ctx, exec, lerr); halt {
		return exec, herr
	}

	// arbitrage detection
	started = p.clock()
	ares := p.opts.Detector.Run(lres.Accepted, lres.ByPair, exec.ExecutionID)
	exec.OpportunitiesFound = len(ares.Opportunities)
	p.record(exec, domain.StageArbitrage, started, len(lres.Accepted), len(ares.Opportunities), 0, nil)
	if p.opts.Metrics != nil {
		p.opts.Metrics.OpportunitiesFound.Add(float64(len(ares.Opportunities)))
	}
	log.Info().Int("opportunities", len(ares.Opportunities)).Msg("arbitrage detection done")
	if halt, herr := p.checkpoint(ctx, exec, nil); halt {
		return exec, herr
	}

	// storage
	err = p.store(ctx, exec, log, ares.Opportunities)
	if halt, herr := p.checkpoint(ctx, exec, err); halt {
		return exec, herr
	}

	p.finish(ctx, exec, domain.ExecutionCompleted)
	log.Info().
		Int("opportunities", exec.OpportunitiesFound).
		Int64("duration_ms", exec.DurationMs).
		Msg("pipeline run completed")
	return exec, nil
}

// extraction runs every extractor sequentially, recording a sync log
// per venue. A failed venue contributes its error and zero markets.
func (p *Pipeline) extraction(ctx context.Context, exec *domain.PipelineExecution, log zerolog.Logger) ([]normalize.RawMarket, error) {
	started := p.clock()
	var raws []normalize.RawMarket
	var firstErr error
	errCount := 0
	for _, e := range p.opts.Extractors {
		venueRaws, sl := extract.Sync(ctx, e, exec.ExecutionID, p.clock)
		raws = append(raws, venueRaws...)
		if p.opts.SyncLogs != nil {
			if err := p.opts.SyncLogs.Insert(ctx, sl); err != nil {
				log.Warn().Err(err).Str("venue", string(e.Venue())).Msg("sync log insert failed")
			}
		}
		if p.opts.Metrics != nil {
			p.opts.Metrics.MarketsFetched.WithLabelValues(string(e.Venue())).Add(float64(len(venueRaws)))
		}
		if sl.Status == "error" {
			errCount++
			exec.Errors = append(exec.Errors, "extraction "+string(e.Venue())+": "+sl.Error)
			if p.opts.Metrics != nil {
				p.opts.Metrics.ExtractionErrors.WithLabelValues(string(e.Venue())).Inc()
			}
			if firstErr == nil {
				firstErr = &stageError{stage: domain.StageExtraction, msg: sl.Error}
			}
			log.Warn().Str("venue", string(e.Venue())).Str("error", sl.Error).Msg("venue extraction failed")
		}
	}
	p.record(exec, domain.StageExtraction, started, 0, len(raws), errCount, nil)
	return raws, firstErr
}

// normalization converts raw markets and persists the survivors.
func (p *Pipeline) normalization(ctx context.Context, exec *domain.PipelineExecution, log zerolog.Logger, raws []normalize.RawMarket) ([]*domain.Market, error) {
	started := p.clock()
	nres := p.opts.Normalizer.NormalizeBatch(raws, exec.ExecutionID)
	for _, err := range nres.Errors {
		exec.Errors = append(exec.Errors, "normalization: "+err.Error())
	}

	var stageErr error
	if len(nres.Markets) > 0 && p.opts.Markets != nil {
		if err := p.opts.Markets.InsertBulk(ctx, nres.Markets); err != nil {
			exec.Errors = append(exec.Errors, "normalization store: "+err.Error())
			stageErr = &stageError{stage: domain.StageNormalization, msg: err.Error()}
			if p.opts.Metrics != nil {
				p.opts.Metrics.DBQueryErrors.WithLabelValues("clickhouse").Inc()
			}
			log.Warn().Err(err).Msg("market insert failed")
		}
	}

	p.record(exec, domain.StageNormalization, started, len(raws), len(nres.Markets), len(nres.Errors), nil)
	log.Info().Int("markets", len(nres.Markets)).Int("errors", len(nres.Errors)).Msg("normalization done")
	return nres.Markets, stageErr
}

// store persists opportunities and publishes them to the stream.
func (p *Pipeline) store(ctx context.Context, exec *domain.PipelineExecution, log zerolog.Logger, opps []*domain.Opportunity) error {
	started := p.clock()
	var stageErr error
	stored := len(opps)
	if len(opps) > 0 {
		if err := p.opts.Opportunities.InsertBulk(ctx, opps); err != nil {
			exec.Errors = append(exec.Errors, "storage: "+err.Error())
			stageErr = &stageError{stage: domain.StageStorage, msg: err.Error()}
			stored = 0
			if p.opts.Metrics != nil {
				p.opts.Metrics.DBQueryErrors.WithLabelValues("postgres").Inc()
			}
			log.Warn().Err(err).Msg("opportunity insert failed")
		}
	}
	if stageErr == nil && p.opts.Publisher != nil {
		for _, opp := range opps {
			p.opts.Publisher.Publish(opp)
		}
	}
	errCount := 0
	if stageErr != nil {
		errCount = 1
	}
	p.record(exec, domain.StageStorage, started, len(opps), stored, errCount, nil)
	return stageErr
}

// checkpoint decides whether the run halts at a stage boundary.
// Cancellation always halts; a stage error halts only under
// fail_on_stage_error.
func (p *Pipeline) checkpoint(ctx context.Context, exec *domain.PipelineExecution, stageErr error) (bool, error) {
	if err := ctx.Err(); err != nil {
		p.finish(ctx, exec, domain.ExecutionCancelled)
		return true, err
	}
	if stageErr != nil && p.opts.Config.Pipeline.FailOnStageError {
		p.finish(ctx, exec, domain.ExecutionFailed)
		return true, stageErr
	}
	return false, nil
}

// finish stamps the terminal state and persists the execution. Uses a
// detached context so a cancelled run still gets recorded.
func (p *Pipeline) finish(ctx context.Context, exec *domain.PipelineExecution, status domain.ExecutionStatus) {
	now := p.clock().UnixMilli()
	exec.Status = status
	exec.CompletedAt = &now
	exec.DurationMs = now - exec.StartedAt

	if p.opts.Metrics != nil {
		p.opts.Metrics.PipelineRunsTotal.WithLabelValues(string(status)).Inc()
		p.opts.Metrics.PipelineDuration.Observe(float64(exec.DurationMs) / 1000)
	}

	if err := p.opts.Executions.Update(context.WithoutCancel(ctx), exec); err != nil {
		p.opts.Logger.Warn().Err(err).Str("execution_id", exec.ExecutionID).Msg("execution update failed")
	}
}

// record appends one stage's metrics to the execution.
func (p *Pipeline) record(exec *domain.PipelineExecution, stage domain.Stage, started time.Time, input, output, errCount int, reasons map[string]int) {
	elapsed := p.clock().Sub(started)
	exec.StageMetrics = append(exec.StageMetrics, domain.StageMetrics{
		Stage:         stage,
		InputCount:    input,
		OutputCount:   output,
		ErrorCount:    errCount,
		DurationMs:    elapsed.Milliseconds(),
		RejectReasons: reasons,
	})
	if p.opts.Metrics != nil {
		p.opts.Metrics.RecordStage(string(stage), input, output, elapsed.Seconds())
	}
}

// stageError tags an error with the stage that produced it.
type stageError struct {
	stage domain.Stage
	msg   string
}

func (e *stageError) Error() string {
	return string(e.stage) + ": " + e.msg
}
