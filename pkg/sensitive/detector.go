// Package sensitive implements the deterministic sensitive-data gate
// that runs before any model call. Detection is regex-only: matches are
// recorded with byte offsets, counted per risk level, and redacted from
// the text before it is logged or embedded anywhere.
package sensitive

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/doxa-platform/triage/pkg/observability/logging"
)

// RiskLevel classifies how damaging a leaked item is.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
)

// Match is a single pattern hit with byte offsets into the original text.
type Match struct {
	PatternID   string    `json:"pattern_id"`
	DataType    string    `json:"data_type"`
	MatchedText string    `json:"matched_text"`
	Start       int       `json:"start"`
	End         int       `json:"end"`
	Risk        RiskLevel `json:"risk_level"`
}

// Result is the outcome of scanning one message.
type Result struct {
	// ContainsSensitiveData is true when at least one pattern matched.
	ContainsSensitiveData bool `json:"contains_sensitive_data"`

	// ShouldEscalate mirrors ContainsSensitiveData: any hit forces a
	// human hand-off, regardless of risk level.
	ShouldEscalate bool `json:"should_escalate"`

	// Excluded is true when an exclusion phrase matched; no detection
	// ran and the text passed through untouched.
	Excluded bool `json:"excluded"`

	// Matches holds every hit, including overlapping ones.
	Matches []Match `json:"matches,omitempty"`

	// RiskSummary counts matches per risk level.
	RiskSummary map[RiskLevel]int `json:"risk_summary,omitempty"`

	// DetectedTypes lists the pattern IDs that matched, in catalogue order.
	DetectedTypes []string `json:"detected_types,omitempty"`

	// RedactedText is the input with every matched span replaced by a
	// [REDACTED-<TYPE>] marker. Safe to log and to persist.
	RedactedText string `json:"redacted_text"`

	// EscalationReason explains the hand-off at the highest risk level
	// present. Empty when nothing matched.
	EscalationReason string `json:"escalation_reason,omitempty"`
}

type compiledPattern struct {
	id       string
	dataType string
	risk     RiskLevel
	re       *regexp.Regexp
}

// Detector scans support messages against the pattern catalogue.
// Safe for concurrent use.
type Detector struct {
	patterns   []compiledPattern
	exclusions []*regexp.Regexp
}

// NewDetector compiles the catalogue and the exclusion phrases.
func NewDetector() *Detector {
	d := &Detector{
		patterns:   make([]compiledPattern, 0, len(catalogue)),
		exclusions: make([]*regexp.Regexp, 0, len(exclusionExprs)),
	}
	for _, p := range catalogue {
		d.patterns = append(d.patterns, compiledPattern{
			id:       p.ID,
			dataType: strings.ToUpper(strings.SplitN(p.ID, "_", 2)[0]),
			risk:     p.Risk,
			re:       regexp.MustCompile(`(?i)` + p.Expr),
		})
	}
	for _, e := range exclusionExprs {
		d.exclusions = append(d.exclusions, regexp.MustCompile(`(?i)`+e))
	}
	logging.Debugf("Sensitive-data detector ready: %d patterns, %d exclusions",
		len(d.patterns), len(d.exclusions))
	return d
}

// Detect scans text and returns the full detection outcome. When an
// exclusion phrase matches, the whole catalogue is skipped: routine
// account-recovery requests must never be flagged, even if the same
// message carries something that looks like a secret.
func (d *Detector) Detect(text string) Result {
	for _, excl := range d.exclusions {
		if excl.MatchString(text) {
			return Result{Excluded: true, RedactedText: text}
		}
	}

	res := Result{RedactedText: text}
	for _, p := range d.patterns {
		locs := p.re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		res.DetectedTypes = append(res.DetectedTypes, p.id)
		for _, loc := range locs {
			res.Matches = append(res.Matches, Match{
				PatternID:   p.id,
				DataType:    p.dataType,
				MatchedText: text[loc[0]:loc[1]],
				Start:       loc[0],
				End:         loc[1],
				Risk:        p.risk,
			})
		}
	}
	if len(res.Matches) == 0 {
		return res
	}

	res.ContainsSensitiveData = true
	res.ShouldEscalate = true
	res.RiskSummary = make(map[RiskLevel]int, 3)
	for _, m := range res.Matches {
		res.RiskSummary[m.Risk]++
	}
	res.RedactedText = redact(text, res.Matches)
	res.EscalationReason = escalationReason(res)

	logging.LogEvent("sensitive_data_detected", map[string]interface{}{
		"matches":        len(res.Matches),
		"detected_types": res.DetectedTypes,
		"risk_summary":   res.RiskSummary,
	})
	return res
}

// redact replaces every matched region with a [REDACTED-<TYPE>] marker.
// Overlapping matches are merged into one interval first, labeled by the
// widest match that covers it (a card number inside an IBAN redacts as
// IBAN, not as a phone fragment). Intervals are then replaced right to
// left so earlier offsets stay valid.
func redact(text string, matches []Match) string {
	ordered := make([]Match, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End > ordered[j].End
	})

	type interval struct {
		start, end int
		dataType   string
		width      int
	}
	var merged []interval
	for _, m := range ordered {
		w := m.End - m.Start
		if n := len(merged); n > 0 && m.Start <= merged[n-1].end {
			if m.End > merged[n-1].end {
				merged[n-1].end = m.End
			}
			if w > merged[n-1].width {
				merged[n-1].dataType = m.DataType
				merged[n-1].width = w
			}
			continue
		}
		merged = append(merged, interval{m.Start, m.End, m.DataType, w})
	}

	out := text
	for i := len(merged) - 1; i >= 0; i-- {
		iv := merged[i]
		out = out[:iv.start] + "[REDACTED-" + iv.dataType + "]" + out[iv.end:]
	}
	return out
}

// escalationReason formats the hand-off reason at the highest risk
// level present in the result.
func escalationReason(res Result) string {
	type tier struct {
		level  RiskLevel
		format string
	}
	tiers := []tier{
		{RiskCritical, "CRITICAL: Detected %d critical-risk data items (%s). MANDATORY escalation to human agent."},
		{RiskHigh, "HIGH: Detected %d high-risk data items (%s). Escalation to human agent required."},
		{RiskMedium, "MEDIUM: Detected %d medium-risk data items (%s). Escalation recommended for data safety."},
	}
	for _, t := range tiers {
		n := res.RiskSummary[t.level]
		if n == 0 {
			continue
		}
		var types []string
		seen := make(map[string]bool)
		for _, m := range res.Matches {
			if m.Risk == t.level && !seen[m.PatternID] {
				seen[m.PatternID] = true
				types = append(types, m.PatternID)
			}
		}
		return fmt.Sprintf(t.format, n, strings.Join(types, ", "))
	}
	return ""
}
