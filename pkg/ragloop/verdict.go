package ragloop

import "strings"

// Verdict is the evaluator's judgment of retrieved-document quality.
type Verdict string

const (
	VerdictSafe             Verdict = "safe"
	VerdictMultipleAnswers  Verdict = "multiple_answers"
	VerdictContradictory    Verdict = "contradictory"
	VerdictMissingKnowledge Verdict = "missing_knowledge"

	// VerdictUnknown marks evaluator output that did not map to the
	// vocabulary. Treated as retryable: an unreadable evaluation is a
	// quality failure, not a pass.
	VerdictUnknown Verdict = "unknown"
)

var verdicts = []Verdict{
	VerdictSafe,
	VerdictMultipleAnswers,
	VerdictContradictory,
	VerdictMissingKnowledge,
}

// Proceed reports whether the verdict allows generation. The evaluator
// is deliberately lenient: only systematic contradiction or a total
// absence of relevant material blocks the answer.
func (v Verdict) Proceed() bool {
	return v == VerdictSafe || v == VerdictMultipleAnswers
}

// ParseVerdict normalizes free-form evaluator output. Exact match
// first, then longest-token substring search, then unknown.
func ParseVerdict(raw string) Verdict {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.Trim(norm, `"'.`+"`")

	for _, v := range verdicts {
		if norm == string(v) {
			return v
		}
	}

	spaced := strings.ReplaceAll(norm, " ", "_")
	best := VerdictUnknown
	bestLen := 0
	for _, v := range verdicts {
		token := string(v)
		if !strings.Contains(norm, token) && !strings.Contains(spaced, token) {
			continue
		}
		if len(token) > bestLen {
			best = v
			bestLen = len(token)
		}
	}
	return best
}
