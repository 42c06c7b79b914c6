// Package main runs one arbitrage pipeline execution end to end:
// extraction → normalization → bucketing → filtering → ml scoring →
// llm evaluation → arbitrage detection → storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"marketfinder/internal/arbitrage"
	"marketfinder/internal/bucketing"
	"marketfinder/internal/config"
	"marketfinder/internal/domain"
	"marketfinder/internal/extract"
	"marketfinder/internal/filtering"
	"marketfinder/internal/llm"
	"marketfinder/internal/logging"
	"marketfinder/internal/mlscoring"
	"marketfinder/internal/normalize"
	"marketfinder/internal/orchestrator"
	"marketfinder/internal/storage"
	"marketfinder/internal/storage/clickhouse"
	"marketfinder/internal/storage/memory"
	"marketfinder/internal/storage/migrations"
	"marketfinder/internal/storage/postgres"
	"marketfinder/internal/storage/rediscache"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	fixturesDir := flag.String("fixtures", "", "Directory with <venue>.json fixtures instead of live venue APIs")
	memoryStores := flag.Bool("memory", false, "Use in-memory stores instead of PostgreSQL/ClickHouse/Redis")
	verbose := flag.Bool("verbose", false, "Verbose logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	log := logging.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling pipeline...\n", sig)
		cancel()
	}()

	stores, closeStores, err := buildStores(ctx, cfg, *memoryStores)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting stores: %v\n", err)
		os.Exit(1)
	}
	defer closeStores()

	bucketDefs := bucketing.DefaultDefinitions()
	if cfg.Bucketing.DefinitionsFile != "" {
		bucketDefs, err = bucketing.LoadDefinitions(cfg.Bucketing.DefinitionsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading bucket definitions: %v\n", err)
			os.Exit(1)
		}
	}

	scorer, err := buildScorer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading ml weights: %v\n", err)
		os.Exit(1)
	}

	var provider llm.Provider = llm.NewBreakerProvider(llm.NewHTTPProvider(
		cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model,
		time.Duration(cfg.LLM.TimeoutSeconds)*time.Second,
	))
	evaluator := llm.NewEvaluator(llm.Options{
		Provider:           provider,
		Cache:              stores.cache,
		RequestsPerMinute:  cfg.LLM.RequestsPerMinute,
		ConcurrentRequests: cfg.LLM.ConcurrentRequests,
		CacheTTL:           time.Duration(cfg.LLM.CacheTTLHours) * time.Hour,
		MaxCostPerBatchUSD: cfg.LLM.MaxCostPerBatchUSD,
		AcceptThreshold:    cfg.LLM.AcceptThreshold,
		Logger:             log,
	})

	pipe := orchestrator.New(orchestrator.Options{
		Config:        cfg,
		Extractors:    buildExtractors(cfg, *fixturesDir),
		Normalizer:    normalize.New(),
		Bucketer:      bucketing.New(bucketDefs, cfg.Bucketing.MinScore),
		Filter:        filtering.New(cfg.Filtering),
		MLEngine:      mlscoring.NewEngine(scorer, cfg.MLScoring.Threshold),
		Evaluator:     evaluator,
		Detector:      arbitrage.New(cfg.Arbitrage),
		Markets:       stores.markets,
		Executions:    stores.executions,
		Opportunities: stores.opportunities,
		SyncLogs:      stores.syncLogs,
		Logger:        log,
	})

	exec, err := pipe.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline error: %v\n", err)
		printSummary(exec)
		os.Exit(1)
	}
	printSummary(exec)
}

// pipelineStores bundles the storage backends of one run.
type pipelineStores struct {
	markets       storage.MarketStore
	executions    storage.ExecutionStore
	opportunities storage.OpportunityStore
	syncLogs      storage.SyncLogStore
	cache         storage.EvaluationCache
}

// buildStores connects the configured backends, or the in-memory set.
// Redis falls back to memory when no address is configured.
func buildStores(ctx context.Context, cfg *config.Config, useMemory bool) (*pipelineStores, func(), error) {
	if useMemory {
		return &pipelineStores{
			markets:       memory.NewMarketStore(),
			executions:    memory.NewExecutionStore(),
			opportunities: memory.NewOpportunityStore(),
			syncLogs:      memory.NewSyncLogStore(),
			cache:         memory.NewEvaluationCache(),
		}, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	stores := &pipelineStores{
		markets:       clickhouse.NewMarketStore(conn),
		executions:    postgres.NewExecutionStore(pool),
		opportunities: postgres.NewOpportunityStore(pool),
		syncLogs:      postgres.NewSyncLogStore(pool),
		cache:         memory.NewEvaluationCache(),
	}

	var closeCache func() error
	if cfg.Storage.RedisAddr != "" {
		redisCache, err := rediscache.New(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			pool.Close()
			conn.Close()
			return nil, nil, err
		}
		stores.cache = redisCache
		closeCache = redisCache.Close
	}

	cleanup := func() {
		if closeCache != nil {
			closeCache()
		}
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// buildExtractors selects fixture or live extraction per venue.
func buildExtractors(cfg *config.Config, fixturesDir string) []extract.Extractor {
	if fixturesDir != "" {
		return []extract.Extractor{
			extract.NewFixtureExtractor(domain.VenueKalshi, filepath.Join(fixturesDir, "kalshi.json")),
			extract.NewFixtureExtractor(domain.VenuePolymarket, filepath.Join(fixturesDir, "polymarket.json")),
		}
	}
	return []extract.Extractor{
		extract.NewKalshiExtractor(cfg.Venues.Kalshi),
		extract.NewPolymarketExtractor(cfg.Venues.Polymarket),
	}
}

// buildScorer loads the trained weights artifact when configured, else
// the heuristic fallback.
func buildScorer(cfg *config.Config) (mlscoring.Scorer, error) {
	if cfg.MLScoring.ModelPath != "" {
		return mlscoring.LoadWeights(cfg.MLScoring.ModelPath)
	}
	return mlscoring.HeuristicScorer{}, nil
}

func printSummary(exec *domain.PipelineExecution) {
	fmt.Printf("Execution %s: %s\n", exec.ExecutionID, exec.Status)
	fmt.Printf("  Markets processed:   %d\n", exec.MarketsProcessed)
	fmt.Printf("  Pairs adjudicated:   %d\n", exec.PairsEvaluated)
	fmt.Printf("  Opportunities found: %d\n", exec.OpportunitiesFound)
	fmt.Printf("  Cache hit rate:      %.0f%%\n", exec.CacheHitRate*100)
	fmt.Printf("  LLM cost:            $%.2f\n", exec.LLMCostUSD)
	fmt.Printf("  Duration:            %dms\n", exec.DurationMs)
	for _, sm := range exec.StageMetrics {
		fmt.Printf("  %-20s in=%-6d out=%-6d errs=%d %dms\n",
			sm.Stage, sm.InputCount, sm.OutputCount, sm.ErrorCount, sm.DurationMs)
	}
	if len(exec.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(exec.Errors))
		for _, e := range exec.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
