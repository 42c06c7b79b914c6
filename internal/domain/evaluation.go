package domain

// Action is the adjudicator's recommendation for a pair.
type Action string

const (
	ActionProceed     Action = "PROCEED"
	ActionInvestigate Action = "INVESTIGATE"
	ActionReject      Action = "REJECT"
)

// Evaluation is the LLM adjudication result for a pair.
type Evaluation struct {
	PairID             string  // evaluated pair
	ConfidenceScore    float64 // 0..1 semantic equivalence confidence
	Reasoning          string  // model explanation, "[CACHED] " prefix on cache hits
	SemanticSimilarity float64 // 0..1
	ArbitrageViability float64 // 0..1
	RiskAssessment     string  // free-form risk note
	RecommendedAction  Action  // PROCEED | INVESTIGATE | REJECT
	Provider           string  // provider name, "fallback" on call failure
	Model              string  // model identifier
	CostUSD            float64 // provider cost attributed to this evaluation
	Cached             bool    // served from the evaluation cache
	EvaluatedAt        int64   // unix ms
}
