// Package metrics defines the Prometheus instruments exported by the
// support pipeline. All instruments are registered via promauto at
// package load and served from the /metrics endpoint in cmd/main.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineLatency observes end-to-end pipeline latency per query.
	PipelineLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "triage_pipeline_duration_seconds",
			Help:    "End-to-end support pipeline latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	// StageLatency observes per-stage latency keyed by stage name.
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_stage_duration_seconds",
			Help:    "Per-stage pipeline latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	// StageErrors counts stage failures keyed by stage name.
	StageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_stage_errors_total",
			Help: "Number of pipeline stage failures",
		},
		[]string{"stage"},
	)

	// ClassificationsTotal counts processed queries by assigned label.
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_classifications_total",
			Help: "Query classifications by label",
		},
		[]string{"label"},
	)

	// SensitiveDetections counts sensitive-data hits by risk level.
	SensitiveDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_sensitive_detections_total",
			Help: "Sensitive-data pattern matches by risk level",
		},
		[]string{"risk_level"},
	)

	// EscalationsTotal counts escalations by reason class.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_escalations_total",
			Help: "Escalations to a human agent by reason",
		},
		[]string{"reason"},
	)

	// LLMCallsTotal counts external model invocations by role.
	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_llm_calls_total",
			Help: "External model calls by role (classify, evaluate, generate, ...)",
		},
		[]string{"role"},
	)

	// RetrievalAttempts counts document-store retrieval attempts.
	RetrievalAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_retrieval_attempts_total",
			Help: "Vector store retrieval attempts including retries",
		},
	)

	// RetrievalRetries counts feedback-loop retries.
	RetrievalRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_retrieval_retries_total",
			Help: "Feedback-loop retries after a retryable verdict",
		},
	)

	// CircuitBreakerTrips counts traces whose retry counter reached the limit.
	CircuitBreakerTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_circuit_breaker_trips_total",
			Help: "Traces where the advisory retry circuit breaker tripped",
		},
	)

	// ConfidenceScore observes final confidence scores.
	ConfidenceScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "triage_confidence_score",
			Help:    "Final confidence score distribution",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// AuditWriteFailures counts audit records that could not be persisted.
	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_audit_write_failures_total",
			Help: "Audit log records dropped due to store errors",
		},
	)
)
