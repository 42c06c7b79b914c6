// Package main runs the arbitrage service: periodic pipeline
// executions plus an HTTP surface with Prometheus metrics, a websocket
// opportunity stream and a read API over past executions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

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
	"marketfinder/internal/observability"
	"marketfinder/internal/orchestrator"
	"marketfinder/internal/storage"
	"marketfinder/internal/storage/clickhouse"
	"marketfinder/internal/storage/memory"
	"marketfinder/internal/storage/migrations"
	"marketfinder/internal/storage/postgres"
	"marketfinder/internal/storage/rediscache"
	"marketfinder/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	fixturesDir := flag.String("fixtures", "", "Directory with <venue>.json fixtures instead of live venue APIs")
	memoryStores := flag.Bool("memory", false, "Use in-memory stores instead of PostgreSQL/ClickHouse/Redis")
	interval := flag.Duration("interval", 5*time.Minute, "Delay between pipeline executions")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, closeStores, err := buildStores(ctx, cfg, *memoryStores)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting stores: %v\n", err)
		os.Exit(1)
	}
	defer closeStores()

	metrics := observability.NewMetrics("")
	hub := stream.NewHub(metrics, log)
	go hub.Run(ctx)

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
		Metrics:       metrics,
		Publisher:     hub,
		Logger:        log,
	})

	go runLoop(ctx, pipe, stores.opportunities, metrics, *interval, log)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newMux(hub, stores),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// runLoop executes the pipeline on a fixed cadence and retires
// opportunities past their expiry between runs.
func runLoop(ctx context.Context, pipe *orchestrator.Pipeline, opps storage.OpportunityStore, metrics *observability.Metrics, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := pipe.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("pipeline run failed")
		}
		if n, err := opps.ExpireBefore(ctx, time.Now().UnixMilli()); err != nil {
			log.Warn().Err(err).Msg("opportunity expiry sweep failed")
		} else if n > 0 {
			log.Info().Int("expired", n).Msg("opportunities expired")
		}
		if active, err := opps.ListActive(ctx, 1000); err == nil {
			metrics.ActiveOpportunities.Set(float64(len(active)))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newMux(hub *stream.Hub, stores *pipelineStores) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/executions", func(w http.ResponseWriter, r *http.Request) {
		execs, err := stores.executions.ListRecent(r.Context(), 20)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, execs)
	})
	mux.HandleFunc("/opportunities", func(w http.ResponseWriter, r *http.Request) {
		opps, err := stores.opportunities.ListActive(r.Context(), 100)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, opps)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// pipelineStores bundles the storage backends of the service.
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
