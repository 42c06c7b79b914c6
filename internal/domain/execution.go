package domain

// ExecutionStatus is the lifecycle state of a pipeline run.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "PENDING"
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

// Stage names the pipeline stages in execution order.
type Stage string

const (
	StageExtraction    Stage = "extraction"
	StageNormalization Stage = "normalization"
	StageBucketing     Stage = "bucketing"
	StageFiltering     Stage = "filtering"
	StageMLScoring     Stage = "ml_scoring"
	StageLLMEvaluation Stage = "llm_evaluation"
	StageArbitrage     Stage = "arbitrage_detection"
	StageStorage       Stage = "storage"
)

// Stages lists the pipeline stages in order.
var Stages = []Stage{
	StageExtraction, StageNormalization, StageBucketing, StageFiltering,
	StageMLScoring, StageLLMEvaluation, StageArbitrage, StageStorage,
}

// StageMetrics records one stage's contribution to a run.
type StageMetrics struct {
	Stage         Stage          // stage name
	InputCount    int            // items entering the stage
	OutputCount   int            // items surviving the stage
	ErrorCount    int            // per-item failures
	DurationMs    int64          // wall time
	RejectReasons map[string]int // reason -> count, filtering stages only
}

// PipelineExecution is one end-to-end run of the funnel.
// Corresponds to pipeline_executions table in PostgreSQL.
type PipelineExecution struct {
	ExecutionID        string          // PRIMARY KEY, uuid
	Status             ExecutionStatus // lifecycle state
	StartedAt          int64           // unix ms
	CompletedAt        *int64          // unix ms, nil while running
	DurationMs         int64           // total wall time
	MarketsProcessed   int             // normalized markets entering the funnel
	PairsEvaluated     int             // pairs sent to the adjudicator
	OpportunitiesFound int             // opportunities passing the profitability gate
	CacheHitRate       float64         // adjudicator cache hits / lookups
	LLMCostUSD         float64         // provider spend for the run
	StageMetrics       []StageMetrics  // per-stage accounting
	Errors             []string        // stage error messages
}

// StageMetricsFor returns the metrics recorded for a stage, or nil.
func (e *PipelineExecution) StageMetricsFor(stage Stage) *StageMetrics {
	for i := range e.StageMetrics {
		if e.StageMetrics[i].Stage == stage {
			return &e.StageMetrics[i]
		}
	}
	return nil
}
