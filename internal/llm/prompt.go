package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketfinder/internal/domain"
)

// systemPrompt frames the adjudication task. Conservatism matters
// more than recall here: a false PROCEED costs real money downstream.
const systemPrompt = `You are an expert prediction-market analyst. You compare one market from each of two venues and judge whether they resolve on the same underlying event. Be conservative: when resolution criteria could diverge, lower your confidence and do not recommend PROCEED. Respond with JSON only.`

// responseSchema documents the expected reply shape inside the prompt.
const responseSchema = `{
  "confidence_score": <float 0-1, probability the markets are semantically equivalent>,
  "reasoning": "<short explanation>",
  "semantic_similarity": <float 0-1>,
  "arbitrage_viability": <float 0-1>,
  "risk_assessment": "<main risks>",
  "recommended_action": "PROCEED" | "INVESTIGATE" | "REJECT"
}`

// buildUserPrompt renders one pair for adjudication.
func buildUserPrompt(p *domain.MarketPair, mlScore float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compare these two prediction markets:\n\n")
	writeMarket(&b, "Kalshi", p.Kalshi)
	writeMarket(&b, "Polymarket", p.Polymarket)
	fmt.Fprintf(&b, "Pair statistics:\n")
	fmt.Fprintf(&b, "- Price spread: %.4f\n", p.Spread)
	fmt.Fprintf(&b, "- Text similarity: %.3f\n", p.TextSimilarity)
	fmt.Fprintf(&b, "- ML worthiness score: %.3f\n\n", mlScore)
	fmt.Fprintf(&b, "Reply with JSON matching this schema:\n%s\n", responseSchema)
	return b.String()
}

func writeMarket(b *strings.Builder, label string, m *domain.Market) {
	fmt.Fprintf(b, "%s market:\n", label)
	fmt.Fprintf(b, "- Title: %s\n", m.Title)
	fmt.Fprintf(b, "- Category: %s\n", m.Category)
	fmt.Fprintf(b, "- Yes price: %s\n", m.YesPrice.String())
	fmt.Fprintf(b, "- Volume: %s\n", m.Volume.String())
	fmt.Fprintf(b, "- Closes: %s\n\n", time.UnixMilli(m.CloseAt).UTC().Format(time.RFC3339))
}

// maxFallbackReasoning bounds how much raw model output is kept when
// the reply cannot be parsed.
const maxFallbackReasoning = 500

// parsedResponse mirrors the response schema.
type parsedResponse struct {
	ConfidenceScore    float64 `json:"confidence_score"`
	Reasoning          string  `json:"reasoning"`
	SemanticSimilarity float64 `json:"semantic_similarity"`
	ArbitrageViability float64 `json:"arbitrage_viability"`
	RiskAssessment     string  `json:"risk_assessment"`
	RecommendedAction  string  `json:"recommended_action"`
}

// parseResponse extracts the adjudication from raw model output. When
// the output is not valid JSON it degrades to a neutral INVESTIGATE
// evaluation carrying the raw content as reasoning.
func parseResponse(content string) (parsedResponse, bool) {
	raw := extractJSON(content)
	var out parsedResponse
	if err := json.Unmarshal([]byte(raw), &out); err == nil && validAction(out.RecommendedAction) {
		out.ConfidenceScore = clamp01(out.ConfidenceScore)
		out.SemanticSimilarity = clamp01(out.SemanticSimilarity)
		out.ArbitrageViability = clamp01(out.ArbitrageViability)
		return out, true
	}

	reasoning := content
	if len(reasoning) > maxFallbackReasoning {
		reasoning = reasoning[:maxFallbackReasoning]
	}
	return parsedResponse{
		ConfidenceScore:   0.5,
		Reasoning:         reasoning,
		RecommendedAction: string(domain.ActionInvestigate),
	}, false
}

// extractJSON strips markdown fences and grabs the outermost object.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func validAction(a string) bool {
	switch domain.Action(a) {
	case domain.ActionProceed, domain.ActionInvestigate, domain.ActionReject:
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
