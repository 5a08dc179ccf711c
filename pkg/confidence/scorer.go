// Package confidence scores generated answers and maps the score onto
// the operational recommendation tiers.
package confidence

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
)

const confidencePromptTemplate = `User Query: %s
Query Clarity: %s
AI Response from Knowledge Base: %s
Number of Relevant Documents Retrieved: %d
Document Quality Evaluation: %s

Based on the above information, calculate a confidence score (0-100) for how confident we are in this generated response.
Consider:
- Number and quality of retrieved documents
- How well the response answers the query
- Document evaluation result

Return ONLY a number between 0 and 100.`

// FallbackCap bounds the deterministic heuristic. An uncapped fallback
// could report a perfect score for a query whose external estimator
// just failed, which is exactly when trust should be lowest.
const FallbackCap = 0.95

// proceedVerdicts are the evaluator outcomes that allow generation.
var proceedVerdicts = map[string]bool{
	"safe":             true,
	"multiple_answers": true,
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Scorer estimates answer confidence in [0,1].
type Scorer struct {
	inferencer inference.Inferencer
}

// NewScorer builds a Scorer on the shared inference client.
func NewScorer(inferencer inference.Inferencer) *Scorer {
	return &Scorer{inferencer: inferencer}
}

// Score asks the external estimator for a 0-100 score and normalizes
// it. When the call fails or the output carries no number, the
// deterministic heuristic takes over. The returned value is always in
// [0,1].
func (s *Scorer) Score(ctx context.Context, query, response string, docCount int, verdict string) float64 {
	clarity := "vague"
	if len(strings.Fields(query)) > 3 {
		clarity = "clear"
	}
	prompt := fmt.Sprintf(confidencePromptTemplate, query, clarity, response, docCount, verdict)

	raw, err := s.inferencer.Infer(ctx, "You estimate confidence in support answers.", prompt)
	if err != nil {
		logging.Warnf("Confidence estimation failed, using fallback: %v", err)
		return s.observe(Fallback(docCount, verdict))
	}
	metrics.LLMCallsTotal.WithLabelValues("confidence").Inc()

	score, ok := parseScore(raw)
	if !ok {
		logging.Warnf("Confidence output %q carried no number, using fallback", raw)
		return s.observe(Fallback(docCount, verdict))
	}
	return s.observe(score)
}

func (s *Scorer) observe(score float64) float64 {
	metrics.ConfidenceScore.Observe(score)
	return score
}

// parseScore extracts the first number from the estimator output.
// Values above 1 are treated as percentages; everything clamps to [0,1].
func parseScore(raw string) (float64, bool) {
	match := numberRe.FindString(raw)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	if v > 1.0 {
		v /= 100
	}
	return math.Max(0, math.Min(1, v)), true
}

// Fallback is the deterministic heuristic: base 0.50, +0.30 for a
// proceed verdict, +0.15/+0.10/+0.05 for >=5/>=3/>=1 documents,
// capped at FallbackCap.
func Fallback(docCount int, verdict string) float64 {
	score := 0.5
	if proceedVerdicts[verdict] {
		score += 0.3
	}
	switch {
	case docCount >= 5:
		score += 0.15
	case docCount >= 3:
		score += 0.10
	case docCount >= 1:
		score += 0.05
	}
	return math.Min(score, FallbackCap)
}

// Recommendation is the operational action suggested for a score.
type Recommendation string

const (
	AutoResolve        Recommendation = "auto_resolve"
	SuggestHumanReview Recommendation = "suggest_human_review"
	EscalateToHuman    Recommendation = "escalate_to_human"
	RejectAndEscalate  Recommendation = "reject_and_escalate"
)

// RecommendationFor maps a confidence score to its tier. The tiering is
// advisory metadata: the loop's own safety flag is computed separately
// and the two may disagree.
func RecommendationFor(score float64) Recommendation {
	switch {
	case score >= 0.80:
		return AutoResolve
	case score >= 0.60:
		return SuggestHumanReview
	case score >= 0.40:
		return EscalateToHuman
	default:
		return RejectAndEscalate
	}
}
