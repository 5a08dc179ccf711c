// Package auditlog persists one structured record per processed query,
// rotated by calendar day. Two backends exist: append-only JSONL files
// and Redis with a time index. An optional async writer decouples
// persistence from request latency.
package auditlog

import (
	"time"

	"github.com/doxa-platform/triage/pkg/ragloop"
	"github.com/doxa-platform/triage/pkg/tracing"
)

// Metadata identifies the record.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
}

// SummarySection describes the query as understood by the pipeline.
type SummarySection struct {
	OriginalQuery    string `json:"original_query"`
	QuerySummary     string `json:"query_summary,omitempty"`
	WordCount        int    `json:"word_count"`
	Intent           string `json:"intent,omitempty"`
	Classification   string `json:"classification"`
	DetectedLanguage string `json:"detected_language,omitempty"`
}

// KeywordsSection carries the retrieval-side query expansion.
type KeywordsSection struct {
	ExtractedKeywords []string `json:"extracted_keywords"`
	KeywordCount      int      `json:"keyword_count"`
	EnrichedQuery     string   `json:"enriched_query,omitempty"`
}

// RAGDoc is one retrieved document as persisted.
type RAGDoc struct {
	DocID   int    `json:"doc_id"`
	Content string `json:"content"`
}

// RAGDocsSection records the retrieval outcome.
type RAGDocsSection struct {
	RAGUsed           bool     `json:"rag_used"`
	Documents         []RAGDoc `json:"documents"`
	RelevantDocsCount int      `json:"relevant_docs_count"`
	RAGAttempts       int      `json:"rag_attempts"`
	RAGStatus         string   `json:"rag_status,omitempty"`
}

// ResponseSection records what the user received.
type ResponseSection struct {
	FinalResponse  string `json:"final_response"`
	RawResponse    string `json:"raw_rag_response,omitempty"`
	ResponseLength int    `json:"response_length"`
}

// ConfidenceSection records the scoring outcome. IsSafe here is the
// aggregation-layer notion: score >= 0.60 and not escalated, which is
// computed independently of the loop's own safety flag.
type ConfidenceSection struct {
	ConfidenceScore  float64 `json:"confidence_score"`
	IsSafe           bool    `json:"is_safe"`
	Recommendation   string  `json:"recommendation,omitempty"`
	EvaluationResult string  `json:"evaluation_result,omitempty"`
}

// EscalationSection records the hand-off decision.
type EscalationSection struct {
	Escalated          bool             `json:"escalated"`
	EscalationReason   string           `json:"escalation_reason,omitempty"`
	EscalationPriority string           `json:"escalation_priority,omitempty"`
	FeedbackHistory    []string         `json:"feedback_history,omitempty"`
	DevNotes           *ragloop.DevNotes `json:"dev_notes,omitempty"`
}

// Record is one audit entry, persisted once per processed query.
type Record struct {
	Metadata        Metadata                `json:"metadata"`
	Summary         SummarySection          `json:"summary"`
	Keywords        KeywordsSection         `json:"keywords"`
	RAGDocs         RAGDocsSection          `json:"rag_docs"`
	Response        ResponseSection         `json:"response"`
	Confidence      ConfidenceSection       `json:"confidence"`
	Escalation      EscalationSection       `json:"escalade_reason"`
	PipelineMetrics tracing.PipelineMetrics `json:"pipeline_metrics"`
}

// ID returns the record identifier (the trace ID).
func (r *Record) ID() string { return r.Metadata.TraceID }

// Finalize stamps the derived metadata fields from the timestamp.
func (r *Record) Finalize() {
	if r.Metadata.Timestamp.IsZero() {
		r.Metadata.Timestamp = time.Now()
	}
	r.Metadata.Date = r.Metadata.Timestamp.Format("2006-01-02")
	r.Metadata.Time = r.Metadata.Timestamp.Format("15:04:05")
	r.Response.ResponseLength = len(r.Response.FinalResponse)
	r.Keywords.KeywordCount = len(r.Keywords.ExtractedKeywords)
}
