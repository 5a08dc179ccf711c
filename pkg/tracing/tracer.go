// Package tracing instruments one pipeline run: per-stage wall-clock
// timing, processing counters and an advisory retry circuit breaker.
// A Tracer belongs to exactly one query and is never shared across
// goroutines; concurrency exists only across queries.
package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
)

// StageMetrics records one stage invocation.
type StageMetrics struct {
	Name      string `json:"name"`
	LatencyMs int64  `json:"latency_ms"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// PipelineMetrics is the complete record of one pipeline run.
type PipelineMetrics struct {
	TraceID                 string         `json:"trace_id"`
	TicketID                string         `json:"ticket_id,omitempty"`
	StartedAt               time.Time      `json:"started_at"`
	CompletedAt             time.Time      `json:"completed_at"`
	TotalLatencyMs          int64          `json:"total_latency_ms"`
	Stages                  []StageMetrics `json:"stages"`
	TotalLLMCalls           int            `json:"total_llm_calls"`
	RAGAttempts             int            `json:"rag_attempts"`
	DocumentsRetrieved      int            `json:"documents_retrieved"`
	HadErrors               bool           `json:"had_errors"`
	ErrorStage              string         `json:"error_stage,omitempty"`
	ErrorMessage            string         `json:"error_message,omitempty"`
	CircuitBreakerTriggered bool           `json:"circuit_breaker_triggered"`
	RetryCount              int            `json:"retry_count"`
}

// Summary is the compact view attached to API responses.
type Summary struct {
	TraceID          string   `json:"trace_id"`
	TotalLatencyMs   int64    `json:"total_latency_ms"`
	LatencyTargetMet bool     `json:"latency_target_met"`
	LatencyIdealMet  bool     `json:"latency_ideal_met"`
	LLMCalls         int      `json:"llm_calls"`
	RAGAttempts      int      `json:"rag_attempts"`
	HadErrors        bool     `json:"had_errors"`
	Stages           []string `json:"stages"`
}

// NewTracerOptions configures a Tracer.
type NewTracerOptions struct {
	TicketID string

	// MaxRetries is the advisory circuit-breaker threshold.
	MaxRetries int

	// TargetLatencyMs and IdealLatencyMs are the SLO bounds compared
	// against total latency at End.
	TargetLatencyMs int64
	IdealLatencyMs  int64
}

// Tracer instruments a single pipeline run.
type Tracer struct {
	m        PipelineMetrics
	start    time.Time
	options  NewTracerOptions
	totalSet bool
}

// NewTracer starts a trace with a fresh collision-resistant identifier.
func NewTracer(options NewTracerOptions) *Tracer {
	if options.MaxRetries <= 0 {
		options.MaxRetries = 3
	}
	if options.TargetLatencyMs <= 0 {
		options.TargetLatencyMs = 10000
	}
	if options.IdealLatencyMs <= 0 {
		options.IdealLatencyMs = 5000
	}
	now := time.Now()
	t := &Tracer{
		m: PipelineMetrics{
			TraceID:   generateTraceID(now),
			TicketID:  options.TicketID,
			StartedAt: now.UTC(),
		},
		start:   now,
		options: options,
	}
	logging.Debugf("[TRACE:%s] Pipeline started", t.m.TraceID)
	return t
}

// generateTraceID builds a sortable-but-unique identifier: a UTC
// timestamp for humans, a UUID fragment for collision resistance.
func generateTraceID(now time.Time) string {
	return "TRC-" + now.UTC().Format("20060102150405") + "-" + uuid.NewString()[:8]
}

// TraceID returns the identifier generated at pipeline start.
func (t *Tracer) TraceID() string { return t.m.TraceID }

// WithStage times one pipeline stage. The body's error is recorded,
// marks the trace as failed and propagates unchanged; the tracer never
// swallows errors, it only annotates them.
func (t *Tracer) WithStage(ctx context.Context, name string, body func(context.Context) error) error {
	ctx, span := otel.Tracer("triage/pipeline").Start(ctx, name)
	span.SetAttributes(attribute.String("trace_id", t.m.TraceID))
	defer span.End()

	stage := StageMetrics{Name: name, Success: true}
	stageStart := time.Now()

	err := body(ctx)

	stage.LatencyMs = time.Since(stageStart).Milliseconds()
	if err != nil {
		stage.Success = false
		stage.Error = err.Error()
		t.m.HadErrors = true
		t.m.ErrorStage = name
		t.m.ErrorMessage = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.StageErrors.WithLabelValues(name).Inc()
		logging.Errorf("[TRACE:%s] Stage failed: %s - %v", t.m.TraceID, name, err)
	}
	t.m.Stages = append(t.m.Stages, stage)
	metrics.StageLatency.WithLabelValues(name).Observe(float64(stage.LatencyMs) / 1000)
	logging.Debugf("[TRACE:%s] Completed stage: %s (%dms)", t.m.TraceID, name, stage.LatencyMs)
	return err
}

// RecordLLMCall counts one external model invocation.
func (t *Tracer) RecordLLMCall() { t.m.TotalLLMCalls++ }

// RecordRetrievalAttempt counts one document-store retrieval.
func (t *Tracer) RecordRetrievalAttempt() {
	t.m.RAGAttempts++
	metrics.RetrievalAttempts.Inc()
}

// RecordDocuments records the document count of the decisive attempt.
func (t *Tracer) RecordDocuments(n int) { t.m.DocumentsRetrieved = n }

// RecordRetry counts a feedback-loop retry and trips the advisory
// circuit breaker at the threshold. The breaker does not abort the
// loop; the loop's own retry bound is authoritative.
func (t *Tracer) RecordRetry() {
	t.m.RetryCount++
	metrics.RetrievalRetries.Inc()
	if t.m.RetryCount >= t.options.MaxRetries && !t.m.CircuitBreakerTriggered {
		t.m.CircuitBreakerTriggered = true
		metrics.CircuitBreakerTrips.Inc()
		logging.Warnf("[TRACE:%s] Circuit breaker triggered after %d retries",
			t.m.TraceID, t.m.RetryCount)
	}
}

// End closes the trace and records total latency. Idempotent.
func (t *Tracer) End() {
	if t.totalSet {
		return
	}
	t.totalSet = true
	t.m.CompletedAt = time.Now().UTC()
	t.m.TotalLatencyMs = time.Since(t.start).Milliseconds()
	metrics.PipelineLatency.Observe(float64(t.m.TotalLatencyMs) / 1000)

	logging.LogEvent("pipeline_completed", map[string]interface{}{
		"trace_id":         t.m.TraceID,
		"total_latency_ms": t.m.TotalLatencyMs,
		"llm_calls":        t.m.TotalLLMCalls,
		"rag_attempts":     t.m.RAGAttempts,
		"retries":          t.m.RetryCount,
		"had_errors":       t.m.HadErrors,
	})
}

// Snapshot returns a copy of the full metrics record.
func (t *Tracer) Snapshot() PipelineMetrics {
	snap := t.m
	snap.Stages = append([]StageMetrics(nil), t.m.Stages...)
	return snap
}

// Summary builds the compact view with the SLO booleans.
func (t *Tracer) Summary() Summary {
	names := make([]string, 0, len(t.m.Stages))
	for _, s := range t.m.Stages {
		names = append(names, s.Name)
	}
	return Summary{
		TraceID:          t.m.TraceID,
		TotalLatencyMs:   t.m.TotalLatencyMs,
		LatencyTargetMet: t.m.TotalLatencyMs < t.options.TargetLatencyMs,
		LatencyIdealMet:  t.m.TotalLatencyMs < t.options.IdealLatencyMs,
		LLMCalls:         t.m.TotalLLMCalls,
		RAGAttempts:      t.m.RAGAttempts,
		HadErrors:        t.m.HadErrors,
		Stages:           names,
	}
}
