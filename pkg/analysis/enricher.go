package analysis

import (
	"context"
	"strings"

	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
)

const enricherPrompt = `Enrich the user's query to improve document retrieval.

ENRICHMENT TASKS:
1. EXPAND ABBREVIATIONS
   - 'PM' -> 'project management'
   - 'API' -> 'application programming interface'
2. ADD DOMAIN CONTEXT
   - 'project' -> 'Doxa project, project management, project creation'
   - 'task' -> 'task management, assign tasks, task tracking'
3. IDENTIFY KEY TERMS and add synonyms: 'create' -> 'make, add, new'
4. ADD RELATED CONCEPTS
   - 'pricing' -> add 'subscription, plans, cost, billing'
   - 'login' -> add 'authentication, access, credentials'

OUTPUT FORMAT:
Return the enriched query with additional context terms, nothing else.

Example:
Input: 'Pricing plans'
Output: 'Pricing plans subscription costs billing fees payment tiers packages'

Keep it concise but comprehensive. Focus on terms that will match documentation.`

// Enricher expands a query with synonyms and domain terms so the
// retriever casts a wider net.
type Enricher struct {
	inferencer inference.Inferencer
}

// NewEnricher builds an Enricher on the shared inference client.
func NewEnricher(inferencer inference.Inferencer) *Enricher {
	return &Enricher{inferencer: inferencer}
}

// Enrich returns the expanded query. On any failure the original query
// is returned unchanged: retrieval on the raw text beats no retrieval.
func (e *Enricher) Enrich(ctx context.Context, query string) string {
	raw, err := e.inferencer.Infer(ctx, enricherPrompt, query)
	if err != nil {
		logging.Warnf("Context enrichment failed, retrieving on the raw query: %v", err)
		return query
	}
	metrics.LLMCallsTotal.WithLabelValues("enrich").Inc()

	enriched := strings.TrimSpace(raw)
	if enriched == "" {
		return query
	}
	return enriched
}
