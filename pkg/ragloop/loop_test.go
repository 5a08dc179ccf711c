package ragloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doxa-platform/triage/pkg/confidence"
	"github.com/doxa-platform/triage/pkg/docstore"
	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/tracing"
)

type fakeStore struct {
	docs    []docstore.Document
	err     error
	budgets []int
	queries []string
}

func (f *fakeStore) Query(_ context.Context, queryText string, topK int) ([]docstore.Document, error) {
	f.budgets = append(f.budgets, topK)
	f.queries = append(f.queries, queryText)
	return f.docs, f.err
}

// scriptedEvaluator returns one verdict per call, repeating the last.
type scriptedEvaluator struct {
	verdicts []string
	calls    int
}

func (s *scriptedEvaluator) Infer(context.Context, string, string) (string, error) {
	i := s.calls
	if i >= len(s.verdicts) {
		i = len(s.verdicts) - 1
	}
	s.calls++
	return s.verdicts[i], nil
}

type fakeGenerator struct {
	result  *inference.GenerationResult
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, _, user string) (*inference.GenerationResult, error) {
	f.prompts = append(f.prompts, user)
	return f.result, f.err
}

type staticInferencer struct{ response string }

func (s staticInferencer) Infer(context.Context, string, string) (string, error) {
	return s.response, nil
}

func docsN(n int) []docstore.Document {
	docs := make([]docstore.Document, n)
	for i := range docs {
		docs[i] = docstore.Document{Content: fmt.Sprintf("doc %d", i+1)}
	}
	return docs
}

func newTestLoop(store docstore.Backend, eval inference.Inferencer, gen inference.Generator) *Loop {
	return NewLoop(NewLoopOptions{
		Store:     store,
		Evaluator: eval,
		Generator: gen,
		Scorer:    confidence.NewScorer(staticInferencer{response: "85"}),
	})
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		raw  string
		want Verdict
	}{
		{"safe", VerdictSafe},
		{" SAFE\n", VerdictSafe},
		{"multiple_answers", VerdictMultipleAnswers},
		{"multiple answers", VerdictMultipleAnswers},
		{"The documents are contradictory.", VerdictContradictory},
		{"missing_knowledge", VerdictMissingKnowledge},
		{"I think we should proceed", VerdictUnknown},
		{"", VerdictUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseVerdict(tt.raw), "raw=%q", tt.raw)
	}
}

func TestResultBudget_GrowsAndCaps(t *testing.T) {
	l := NewLoop(NewLoopOptions{BaseResults: 6, MaxResults: 15})

	budgets := []int{}
	for attempt := 1; attempt <= 6; attempt++ {
		budgets = append(budgets, l.resultBudget(attempt))
	}
	assert.Equal(t, []int{6, 8, 10, 12, 14, 15}, budgets)
	for i := 1; i < len(budgets); i++ {
		assert.GreaterOrEqual(t, budgets[i], budgets[i-1], "budget must be non-decreasing")
	}
}

func TestRun_SafeFirstAttempt(t *testing.T) {
	store := &fakeStore{docs: docsN(6)}
	gen := &fakeGenerator{result: &inference.GenerationResult{Text: "Voici la réponse.", FinishReason: inference.FinishComplete}}
	l := newTestLoop(store, &scriptedEvaluator{verdicts: []string{"safe"}}, gen)

	res := l.Run(context.Background(), "comment créer un projet", tracing.NewTracer(tracing.NewTracerOptions{}))

	assert.True(t, res.IsSafe)
	assert.False(t, res.ShouldEscalate)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, VerdictSafe, res.Verdict)
	assert.Equal(t, "Voici la réponse.", res.Response)
	assert.Equal(t, 6, res.DocCount)
	assert.Empty(t, res.FeedbackHistory)
	assert.Empty(t, res.SuccessMessage)
	assert.InDelta(t, 0.85, res.ConfidenceScore, 1e-9)
}

func TestRun_RecoversOnThirdAttempt(t *testing.T) {
	store := &fakeStore{docs: docsN(4)}
	gen := &fakeGenerator{result: &inference.GenerationResult{Text: "réponse", FinishReason: inference.FinishComplete}}
	eval := &scriptedEvaluator{verdicts: []string{"missing_knowledge", "missing_knowledge", "safe"}}
	l := newTestLoop(store, eval, gen)

	res := l.Run(context.Background(), "question facturation", tracing.NewTracer(tracing.NewTracerOptions{}))

	assert.True(t, res.IsSafe)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, res.FeedbackHistory, 2)
	assert.Equal(t, []int{6, 8, 10}, store.budgets, "third attempt budget is base+4")
	assert.Equal(t, "Successfully resolved after 3 attempt(s)", res.SuccessMessage)

	// Retries retrieve with the refined query; generation always uses
	// the original one.
	assert.Contains(t, store.queries[1], "search more broadly")
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "question facturation")
	assert.NotContains(t, gen.prompts[0], "Previous search")
}

func TestRun_ContradictoryExhaustsAndEscalates(t *testing.T) {
	store := &fakeStore{docs: docsN(2)}
	gen := &fakeGenerator{result: &inference.GenerationResult{Text: "unused"}}
	eval := &scriptedEvaluator{verdicts: []string{"contradictory", "contradictory", "contradictory"}}
	l := newTestLoop(store, eval, gen)

	res := l.Run(context.Background(), "quel est le prix", tracing.NewTracer(tracing.NewTracerOptions{}))

	assert.False(t, res.IsSafe)
	assert.True(t, res.ShouldEscalate)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, res.FeedbackHistory, 2, "no entry for the final escalating attempt")
	require.NotNil(t, res.DevNotes)
	assert.Equal(t, "MEDIUM", res.DevNotes.Priority)
	assert.Equal(t, "CONTRADICTORY_DOCUMENTATION", res.DevNotes.EscalationType)
	assert.Contains(t, res.Response, "ESCALATION-QUALITY-3")
	assert.Contains(t, res.Response, "support@doxa.dz")
	assert.Empty(t, gen.prompts, "no generation on escalation")
}

func TestRun_MissingKnowledgeEscalatesHighPriority(t *testing.T) {
	store := &fakeStore{docs: nil}
	eval := &scriptedEvaluator{verdicts: []string{"missing_knowledge"}}
	l := NewLoop(NewLoopOptions{
		Store:      store,
		Evaluator:  eval,
		Generator:  &fakeGenerator{},
		Scorer:     confidence.NewScorer(staticInferencer{response: "10"}),
		MaxRetries: 1,
	})

	res := l.Run(context.Background(), "q", tracing.NewTracer(tracing.NewTracerOptions{}))

	assert.True(t, res.ShouldEscalate)
	require.NotNil(t, res.DevNotes)
	assert.Equal(t, "HIGH", res.DevNotes.Priority)
	assert.Equal(t, "MISSING_KNOWLEDGE", res.DevNotes.EscalationType)
}

func TestRun_NeverExceedsMaxRetries(t *testing.T) {
	for _, maxRetries := range []int{1, 2, 3, 5} {
		store := &fakeStore{docs: docsN(1)}
		eval := &scriptedEvaluator{verdicts: []string{"missing_knowledge"}}
		l := NewLoop(NewLoopOptions{
			Store:      store,
			Evaluator:  eval,
			Generator:  &fakeGenerator{},
			Scorer:     confidence.NewScorer(staticInferencer{response: "50"}),
			MaxRetries: maxRetries,
		})

		res := l.Run(context.Background(), "q", tracing.NewTracer(tracing.NewTracerOptions{}))
		assert.Len(t, store.budgets, maxRetries, "maxRetries=%d", maxRetries)
		assert.GreaterOrEqual(t, res.Attempts, 1)
		assert.LessOrEqual(t, res.Attempts, maxRetries)
	}
}

func TestRun_RetrievalErrorBecomesTechnicalEscalation(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	l := newTestLoop(store, &scriptedEvaluator{verdicts: []string{"safe"}}, &fakeGenerator{})

	res := l.Run(context.Background(), "q", tracing.NewTracer(tracing.NewTracerOptions{}))

	assert.False(t, res.IsSafe)
	assert.True(t, res.ShouldEscalate)
	require.NotNil(t, res.DevNotes)
	assert.Equal(t, "TECHNICAL_ERROR", res.DevNotes.EscalationType)
	assert.Equal(t, "CRITICAL", res.DevNotes.Priority)
	assert.Contains(t, res.Response, "support@doxa.dz")
	assert.NotContains(t, res.Response, "connection refused",
		"transport diagnostics must not reach the user")
}

func TestRun_SafetyBlockedGenerationEscalatesGenerically(t *testing.T) {
	store := &fakeStore{docs: docsN(3)}
	gen := &fakeGenerator{err: inference.ErrSafetyBlocked}
	l := newTestLoop(store, &scriptedEvaluator{verdicts: []string{"safe"}}, gen)

	res := l.Run(context.Background(), "q", tracing.NewTracer(tracing.NewTracerOptions{}))

	assert.False(t, res.IsSafe)
	assert.True(t, res.ShouldEscalate)
	assert.Contains(t, res.Response, "agent humain")
	assert.False(t, strings.Contains(res.Response, "safety"),
		"raw model diagnostics must not reach the user")
	assert.Contains(t, res.Reason, "generation failed")
}

func TestRun_UnknownVerdictIsRetryable(t *testing.T) {
	store := &fakeStore{docs: docsN(2)}
	eval := &scriptedEvaluator{verdicts: []string{"cannot decide", "safe"}}
	gen := &fakeGenerator{result: &inference.GenerationResult{Text: "ok"}}
	l := newTestLoop(store, eval, gen)

	res := l.Run(context.Background(), "q", tracing.NewTracer(tracing.NewTracerOptions{}))

	assert.True(t, res.IsSafe)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, res.FeedbackHistory, 1)
}

func TestRun_TracerCountsRetriesAndAttempts(t *testing.T) {
	store := &fakeStore{docs: docsN(2)}
	eval := &scriptedEvaluator{verdicts: []string{"missing_knowledge", "safe"}}
	gen := &fakeGenerator{result: &inference.GenerationResult{Text: "ok"}}
	l := newTestLoop(store, eval, gen)

	tr := tracing.NewTracer(tracing.NewTracerOptions{MaxRetries: 3})
	l.Run(context.Background(), "q", tr)

	snap := tr.Snapshot()
	assert.Equal(t, 2, snap.RAGAttempts)
	assert.Equal(t, 1, snap.RetryCount)
	assert.False(t, snap.CircuitBreakerTriggered)
	// evaluator x2 + generation + confidence
	assert.Equal(t, 4, snap.TotalLLMCalls)
}
