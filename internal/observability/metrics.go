// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Extraction metrics
	MarketsFetched   *prometheus.CounterVec
	ExtractionErrors *prometheus.CounterVec

	// Funnel metrics
	StageInput    *prometheus.GaugeVec
	StageOutput   *prometheus.GaugeVec
	StageDuration *prometheus.HistogramVec
	PairsRejected *prometheus.CounterVec

	// LLM metrics
	ProviderCalls     prometheus.Counter
	ProviderFallbacks prometheus.Counter
	CacheHits         prometheus.Counter
	CacheLookups      prometheus.Counter
	LLMCostUSD        prometheus.Counter
	PairsTruncated    prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal   *prometheus.CounterVec
	PipelineDuration    prometheus.Histogram
	OpportunitiesFound  prometheus.Counter
	ActiveOpportunities prometheus.Gauge

	// Database metrics
	DBQueryErrors *prometheus.CounterVec

	// Stream metrics
	StreamSubscribers prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketfinder"
	}

	return &Metrics{
		MarketsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "markets_fetched_total",
			Help:      "Total number of raw markets fetched per venue",
		}, []string{"venue"}),
		ExtractionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "errors_total",
			Help:      "Total number of extraction failures per venue",
		}, []string{"venue"}),

		StageInput: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "funnel",
			Name:      "stage_input",
			Help:      "Items entering each stage in the latest run",
		}, []string{"stage"}),
		StageOutput: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "funnel",
			Name:      "stage_output",
			Help:      "Items surviving each stage in the latest run",
		}, []string{"stage"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "funnel",
			Name:      "stage_duration_seconds",
			Help:      "Wall time per stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		PairsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "funnel",
			Name:      "pairs_rejected_total",
			Help:      "Pairs rejected by the filter, by reason",
		}, []string{"reason"}),

		ProviderCalls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "provider_calls_total",
			Help:      "Total adjudication calls sent to the provider",
		}),
		ProviderFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "provider_fallbacks_total",
			Help:      "Adjudications served by the fallback path",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "cache_hits_total",
			Help:      "Evaluation cache hits",
		}),
		CacheLookups: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "cache_lookups_total",
			Help:      "Evaluation cache lookups",
		}),
		LLMCostUSD: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "cost_usd_total",
			Help:      "Cumulative provider spend in USD",
		}),
		PairsTruncated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "pairs_truncated_total",
			Help:      "Pairs dropped by the per-batch cost cap",
		}),

		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline executions by terminal status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "End-to-end pipeline duration",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		OpportunitiesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "opportunities_found_total",
			Help:      "Opportunities passing the profitability gate",
		}),
		ActiveOpportunities: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "active_opportunities",
			Help:      "Currently active stored opportunities",
		}),

		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Database errors by backend",
		}, []string{"backend"}),

		StreamSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Connected websocket subscribers",
		}),
	}
}

// RecordStage updates the funnel gauges and histogram for one stage.
func (m *Metrics) RecordStage(stage string, input, output int, seconds float64) {
	m.StageInput.WithLabelValues(stage).Set(float64(input))
	m.StageOutput.WithLabelValues(stage).Set(float64(output))
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordRejections adds filter rejection counts by reason.
func (m *Metrics) RecordRejections(reasons map[string]int) {
	for reason, n := range reasons {
		m.PairsRejected.WithLabelValues(reason).Add(float64(n))
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
