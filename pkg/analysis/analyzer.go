// Package analysis holds the pre- and post-processing agents around the
// retrieval loop: query summarization, context enrichment, language
// detection and response composition. Every agent degrades gracefully —
// a failed model call falls back to a deterministic result instead of
// failing the pipeline.
package analysis

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
)

const analyzerPrompt = `Analyze the user's query and return a structured analysis.

YOUR TASK:
1. Create a SUMMARY of the query (MAXIMUM 100 words, ideally 30-50 words)
   - Capture the main intent and context
2. Extract 5-10 KEYWORDS from the query
   - Include main topics, actions, and entities
   - Include domain-specific terms (Doxa, project, task, etc.)

OUTPUT FORMAT (STRICT JSON):
{
  "summary": "Brief summary of user intent in under 100 words",
  "keywords": ["keyword1", "keyword2", "keyword3", "keyword4", "keyword5"],
  "word_count": <number of words in summary>,
  "intent": "primary intent category"
}

INTENT CATEGORIES: how_to, information, troubleshooting, comparison, pricing, feature_request, account, complaint

IMPORTANT: Return ONLY valid JSON. No markdown, no explanation, no additional text.`

// QueryAnalysis is the structured summary of an incoming query.
type QueryAnalysis struct {
	Summary   string   `json:"summary"`
	Keywords  []string `json:"keywords"`
	WordCount int      `json:"word_count"`
	Intent    string   `json:"intent"`
}

// jsonBlockRe grabs the outermost brace-delimited block so fenced or
// prose-wrapped JSON still parses.
var jsonBlockRe = regexp.MustCompile(`\{[\s\S]*\}`)

// Analyzer produces a QueryAnalysis per query.
type Analyzer struct {
	inferencer inference.Inferencer
}

// NewAnalyzer builds an Analyzer on the shared inference client.
func NewAnalyzer(inferencer inference.Inferencer) *Analyzer {
	return &Analyzer{inferencer: inferencer}
}

// Analyze summarizes the query and extracts keywords. Model or parse
// failures produce a deterministic fallback built from the query text
// itself; analysis is metadata and must never abort the pipeline.
func (a *Analyzer) Analyze(ctx context.Context, query string) QueryAnalysis {
	raw, err := a.inferencer.Infer(ctx, analyzerPrompt, query)
	if err != nil {
		logging.Warnf("Query analysis call failed, using fallback: %v", err)
		return fallbackAnalysis(query)
	}
	metrics.LLMCallsTotal.WithLabelValues("analyze").Inc()
	return parseAnalysis(raw, query)
}

// parseAnalysis extracts the JSON block from the model output. When no
// parseable block exists, the raw text itself becomes the summary.
func parseAnalysis(raw, query string) QueryAnalysis {
	if block := jsonBlockRe.FindString(raw); block != "" {
		var qa QueryAnalysis
		if err := json.Unmarshal([]byte(block), &qa); err == nil {
			if qa.Summary == "" {
				qa.Summary = truncateRunes(query, 200)
			}
			if qa.Intent == "" {
				qa.Intent = "unknown"
			}
			return qa
		}
		logging.Debugf("Analyzer output looked like JSON but did not parse")
	}
	summary := truncateRunes(raw, 200)
	if summary == "" {
		summary = "Unable to analyze query"
	}
	return QueryAnalysis{Summary: summary, Intent: "unknown"}
}

// fallbackAnalysis derives metadata from the query text alone.
func fallbackAnalysis(query string) QueryAnalysis {
	words := strings.Fields(query)
	keywords := words
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	return QueryAnalysis{
		Summary:   truncateRunes(query, 100),
		Keywords:  keywords,
		WordCount: len(words),
		Intent:    "unknown",
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n])
}
