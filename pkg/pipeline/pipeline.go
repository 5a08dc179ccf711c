// Package pipeline orchestrates one support query end to end:
// classification gate, query analysis, context enrichment, the
// retrieval feedback loop, language detection, response composition,
// confidence tiering and the audit record. Stages run strictly
// sequentially; concurrency exists only across queries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doxa-platform/triage/pkg/analysis"
	"github.com/doxa-platform/triage/pkg/auditlog"
	"github.com/doxa-platform/triage/pkg/classification"
	"github.com/doxa-platform/triage/pkg/confidence"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
	"github.com/doxa-platform/triage/pkg/ragloop"
	"github.com/doxa-platform/triage/pkg/tracing"
)

// ErrEmptyQuery rejects blank input before any external call is made.
var ErrEmptyQuery = errors.New("query text is empty")

// SafeConfidenceThreshold is the aggregation-layer safety rule: a
// result is safe when the final confidence reaches this bound and no
// escalation fired. The feedback loop keeps its own per-run safety
// flag; the two are computed independently and may disagree.
const SafeConfidenceThreshold = 0.60

// PipelineResult is the synchronous outcome returned to the caller.
type PipelineResult struct {
	TraceID            string                    `json:"trace_id"`
	Classification     classification.Label      `json:"classification"`
	EvaluationVerdict  ragloop.Verdict           `json:"evaluation_result,omitempty"`
	Attempts           int                       `json:"attempts"`
	DocCount           int                       `json:"relevant_docs_count"`
	ConfidenceScore    float64                   `json:"confidence_score"`
	IsSafe             bool                      `json:"is_safe"`
	Recommendation     confidence.Recommendation `json:"recommendation,omitempty"`
	ResponseText       string                    `json:"response"`
	RawResponse        string                    `json:"raw_rag_response,omitempty"`
	DetectedLanguage   string                    `json:"detected_language,omitempty"`
	Escalated          bool                      `json:"escalated"`
	EscalationReason   string                    `json:"escalation_reason,omitempty"`
	EscalationPriority string                    `json:"escalation_priority,omitempty"`
	FeedbackHistory    []string                  `json:"feedback_history,omitempty"`
	DevNotes           *ragloop.DevNotes         `json:"dev_notes,omitempty"`
}

// NewPipelineOptions wires the pipeline's collaborators. Every external
// dependency arrives as an injected component so tests can substitute
// doubles for each stage.
type NewPipelineOptions struct {
	Classifier *classification.Classifier
	Analyzer   *analysis.Analyzer
	Enricher   *analysis.Enricher
	Language   *analysis.LanguageDetector
	Composer   *analysis.Composer
	Loop       *ragloop.Loop

	// AuditWriter takes precedence over AuditStore when both are set.
	// Either may be nil; auditing never fails a request.
	AuditStore  auditlog.Store
	AuditWriter *auditlog.AsyncWriter

	// MaxRetries seeds the tracer's advisory circuit breaker.
	MaxRetries int

	// TargetLatencyMs and IdealLatencyMs are the SLO bounds.
	TargetLatencyMs int64
	IdealLatencyMs  int64

	// SupportContact appears in the critical-failure fallback message.
	SupportContact string
}

// Pipeline processes queries. Safe for concurrent use: per-query state
// lives on the Process stack, collaborators are read-only after
// construction.
type Pipeline struct {
	options NewPipelineOptions
}

// NewPipeline builds a Pipeline, applying defaults for unset bounds.
func NewPipeline(options NewPipelineOptions) *Pipeline {
	if options.SupportContact == "" {
		options.SupportContact = "support@doxa.dz"
	}
	return &Pipeline{options: options}
}

// Process runs the full pipeline for one query. The returned error is
// non-nil only for input errors; every downstream failure surfaces as
// an escalation inside the result, never as a fault.
func (p *Pipeline) Process(ctx context.Context, query, ticketID string) (*PipelineResult, *tracing.Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil, ErrEmptyQuery
	}

	tracer := tracing.NewTracer(tracing.NewTracerOptions{
		TicketID:        ticketID,
		MaxRetries:      p.options.MaxRetries,
		TargetLatencyMs: p.options.TargetLatencyMs,
		IdealLatencyMs:  p.options.IdealLatencyMs,
	})

	result := &PipelineResult{TraceID: tracer.TraceID()}
	record := &auditlog.Record{}
	record.Metadata.TraceID = tracer.TraceID()
	record.Metadata.TicketID = ticketID
	record.Metadata.Timestamp = time.Now()
	record.Summary.OriginalQuery = query

	var outcome *classification.Outcome
	err := tracer.WithStage(ctx, "classification", func(ctx context.Context) error {
		var err error
		outcome, err = p.options.Classifier.Classify(ctx, query)
		return err
	})
	if err != nil {
		return p.criticalFailure(ctx, result, record, tracer, err)
	}

	result.Classification = outcome.Label
	record.Summary.Classification = string(outcome.Label)

	disposition := classification.DispositionFor(outcome.Label)
	if !disposition.ShouldProcess {
		result.ResponseText = disposition.Message
		result.Escalated = disposition.Escalate
		result.EscalationPriority = disposition.Priority
		if outcome.Label == classification.LabelSensitive {
			// Only the redacted form may reach logs or humans.
			result.EscalationReason = outcome.Sensitive.EscalationReason
			record.Summary.OriginalQuery = outcome.Sensitive.RedactedText
		} else if disposition.Escalate {
			result.EscalationReason = "Query could not be classified"
		}
		if disposition.Escalate {
			metrics.EscalationsTotal.WithLabelValues(string(outcome.Label)).Inc()
		}
		return p.complete(ctx, result, record, tracer)
	}

	var qa analysis.QueryAnalysis
	_ = tracer.WithStage(ctx, "query_analysis", func(ctx context.Context) error {
		qa = p.options.Analyzer.Analyze(ctx, query)
		return nil
	})
	record.Summary.QuerySummary = qa.Summary
	record.Summary.WordCount = qa.WordCount
	record.Summary.Intent = qa.Intent
	record.Keywords.ExtractedKeywords = qa.Keywords

	var enriched string
	_ = tracer.WithStage(ctx, "context_enrichment", func(ctx context.Context) error {
		enriched = p.options.Enricher.Enrich(ctx, query)
		return nil
	})
	record.Keywords.EnrichedQuery = enriched

	var loopRes *ragloop.Result
	_ = tracer.WithStage(ctx, "rag_pipeline", func(ctx context.Context) error {
		loopRes = p.options.Loop.Run(ctx, enriched, tracer)
		tracer.RecordDocuments(loopRes.DocCount)
		return nil
	})

	var language string
	_ = tracer.WithStage(ctx, "language_detection", func(ctx context.Context) error {
		language = p.options.Language.Detect(ctx, query)
		return nil
	})
	result.DetectedLanguage = language
	record.Summary.DetectedLanguage = language

	var final string
	_ = tracer.WithStage(ctx, "response_composition", func(ctx context.Context) error {
		final = p.options.Composer.Compose(ctx, language, query, loopRes.Response)
		return nil
	})

	result.EvaluationVerdict = loopRes.Verdict
	result.Attempts = loopRes.Attempts
	result.DocCount = loopRes.DocCount
	result.ConfidenceScore = loopRes.ConfidenceScore
	result.ResponseText = final
	result.RawResponse = loopRes.Response

	if !loopRes.IsSafe {
		result.Escalated = true
		result.EscalationReason = loopRes.Reason
		result.FeedbackHistory = loopRes.FeedbackHistory
		result.DevNotes = loopRes.DevNotes
		if loopRes.DevNotes != nil {
			result.EscalationPriority = loopRes.DevNotes.Priority
			metrics.EscalationsTotal.WithLabelValues(loopRes.DevNotes.EscalationType).Inc()
		}
		logging.Warnf("[TRACE:%s] Escalated: %s", result.TraceID, result.EscalationReason)
	}

	record.RAGDocs.RAGUsed = true
	record.RAGDocs.RelevantDocsCount = loopRes.DocCount
	record.RAGDocs.RAGAttempts = loopRes.Attempts
	record.RAGDocs.RAGStatus = string(loopRes.Verdict)
	for i, content := range loopRes.Documents {
		record.RAGDocs.Documents = append(record.RAGDocs.Documents,
			auditlog.RAGDoc{DocID: i + 1, Content: content})
	}
	record.Response.RawResponse = loopRes.Response

	return p.complete(ctx, result, record, tracer)
}

// complete applies the aggregation-layer safety rule and the
// recommendation tier, closes the trace and persists the audit record.
func (p *Pipeline) complete(ctx context.Context, result *PipelineResult,
	record *auditlog.Record, tracer *tracing.Tracer) (*PipelineResult, *tracing.Summary, error) {

	result.IsSafe = result.ConfidenceScore >= SafeConfidenceThreshold && !result.Escalated
	result.Recommendation = confidence.RecommendationFor(result.ConfidenceScore)

	tracer.End()
	summary := tracer.Summary()

	record.Response.FinalResponse = result.ResponseText
	record.Confidence.ConfidenceScore = result.ConfidenceScore
	record.Confidence.IsSafe = result.IsSafe
	record.Confidence.Recommendation = string(result.Recommendation)
	record.Confidence.EvaluationResult = string(result.EvaluationVerdict)
	record.Escalation.Escalated = result.Escalated
	record.Escalation.EscalationReason = result.EscalationReason
	record.Escalation.EscalationPriority = result.EscalationPriority
	record.Escalation.FeedbackHistory = result.FeedbackHistory
	record.Escalation.DevNotes = result.DevNotes
	record.PipelineMetrics = tracer.Snapshot()
	record.Finalize()

	p.writeAudit(ctx, record)
	return result, &summary, nil
}

// criticalFailure is the catch-all for stage errors that cannot be
// turned into a domain escalation downstream. The user receives the
// generic apology, the trace and audit record keep the real error.
func (p *Pipeline) criticalFailure(ctx context.Context, result *PipelineResult,
	record *auditlog.Record, tracer *tracing.Tracer, err error) (*PipelineResult, *tracing.Summary, error) {

	logging.Errorf("[TRACE:%s] Critical pipeline error: %v", result.TraceID, err)
	result.ResponseText = fmt.Sprintf("I apologize, but I encountered an error processing your request. "+
		"Please contact %s", p.options.SupportContact)
	result.ConfidenceScore = 0
	result.Escalated = true
	result.EscalationReason = "Technical error during processing"
	result.EscalationPriority = "CRITICAL"
	result.DevNotes = &ragloop.DevNotes{
		EscalationType: "TECHNICAL_ERROR",
		ActionRequired: "Investigate the failing stage and answer the user manually",
		SendToAgent:    []string{"user_query", "full_error_context"},
		Priority:       "CRITICAL",
	}
	metrics.EscalationsTotal.WithLabelValues("TECHNICAL_ERROR").Inc()
	return p.complete(ctx, result, record, tracer)
}

// writeAudit persists the record through the async writer when one is
// configured, the store otherwise. Failures are logged and counted but
// never surface to the caller.
func (p *Pipeline) writeAudit(ctx context.Context, record *auditlog.Record) {
	switch {
	case p.options.AuditWriter != nil:
		p.options.AuditWriter.Enqueue(record)
	case p.options.AuditStore != nil:
		if err := p.options.AuditStore.StoreRecord(ctx, record); err != nil {
			metrics.AuditWriteFailures.Inc()
			logging.Warnf("Failed to persist audit record %s: %v", record.ID(), err)
		}
	}
}
