package tracing

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var traceIDRe = regexp.MustCompile(`^TRC-\d{14}-[0-9a-f]{8}$`)

func TestNewTracer_GeneratesUniqueIDs(t *testing.T) {
	a := NewTracer(NewTracerOptions{})
	b := NewTracer(NewTracerOptions{})

	assert.Regexp(t, traceIDRe, a.TraceID())
	assert.Regexp(t, traceIDRe, b.TraceID())
	assert.NotEqual(t, a.TraceID(), b.TraceID())
}

func TestWithStage_RecordsSuccessInOrder(t *testing.T) {
	tr := NewTracer(NewTracerOptions{})

	require.NoError(t, tr.WithStage(context.Background(), "classification", func(context.Context) error {
		return nil
	}))
	require.NoError(t, tr.WithStage(context.Background(), "retrieval", func(context.Context) error {
		return nil
	}))

	snap := tr.Snapshot()
	require.Len(t, snap.Stages, 2)
	assert.Equal(t, "classification", snap.Stages[0].Name)
	assert.Equal(t, "retrieval", snap.Stages[1].Name)
	assert.True(t, snap.Stages[0].Success)
	assert.False(t, snap.HadErrors)
}

func TestWithStage_PropagatesErrorAndMarksTrace(t *testing.T) {
	tr := NewTracer(NewTracerOptions{})
	boom := errors.New("model unreachable")

	err := tr.WithStage(context.Background(), "generation", func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom, "the tracer must never swallow stage errors")

	snap := tr.Snapshot()
	require.Len(t, snap.Stages, 1)
	assert.False(t, snap.Stages[0].Success)
	assert.Equal(t, "model unreachable", snap.Stages[0].Error)
	assert.True(t, snap.HadErrors)
	assert.Equal(t, "generation", snap.ErrorStage)
}

func TestCounters(t *testing.T) {
	tr := NewTracer(NewTracerOptions{MaxRetries: 3})

	tr.RecordLLMCall()
	tr.RecordLLMCall()
	tr.RecordRetrievalAttempt()
	tr.RecordDocuments(7)

	snap := tr.Snapshot()
	assert.Equal(t, 2, snap.TotalLLMCalls)
	assert.Equal(t, 1, snap.RAGAttempts)
	assert.Equal(t, 7, snap.DocumentsRetrieved)
}

func TestRecordRetry_TripsCircuitBreakerAtThreshold(t *testing.T) {
	tr := NewTracer(NewTracerOptions{MaxRetries: 3})

	tr.RecordRetry()
	tr.RecordRetry()
	assert.False(t, tr.Snapshot().CircuitBreakerTriggered)

	tr.RecordRetry()
	snap := tr.Snapshot()
	assert.True(t, snap.CircuitBreakerTriggered)
	assert.Equal(t, 3, snap.RetryCount)
}

func TestEnd_ComputesLatencyAndSummary(t *testing.T) {
	tr := NewTracer(NewTracerOptions{TicketID: "TCK-42", TargetLatencyMs: 10000, IdealLatencyMs: 5000})
	require.NoError(t, tr.WithStage(context.Background(), "classification", func(context.Context) error {
		return nil
	}))
	tr.RecordLLMCall()
	tr.End()

	snap := tr.Snapshot()
	assert.Equal(t, "TCK-42", snap.TicketID)
	assert.False(t, snap.CompletedAt.IsZero())
	assert.GreaterOrEqual(t, snap.TotalLatencyMs, int64(0))

	sum := tr.Summary()
	assert.Equal(t, tr.TraceID(), sum.TraceID)
	assert.True(t, sum.LatencyTargetMet, "an in-process test run beats the 10s target")
	assert.True(t, sum.LatencyIdealMet)
	assert.Equal(t, 1, sum.LLMCalls)
	assert.Equal(t, []string{"classification"}, sum.Stages)
}

func TestEnd_IsIdempotent(t *testing.T) {
	tr := NewTracer(NewTracerOptions{})
	tr.End()
	first := tr.Snapshot().TotalLatencyMs
	tr.End()
	assert.Equal(t, first, tr.Snapshot().TotalLatencyMs)
}
