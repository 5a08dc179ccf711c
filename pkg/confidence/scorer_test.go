package confidence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeInferencer struct {
	response string
	err      error
}

func (f *fakeInferencer) Infer(context.Context, string, string) (string, error) {
	return f.response, f.err
}

func TestScore_NormalizesEstimatorOutput(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     float64
	}{
		{"plain percentage", "85", 0.85},
		{"decimal percentage", "72.5", 0.725},
		{"already normalized", "0.9", 0.9},
		{"wrapped in prose", "The confidence score is 60 out of 100.", 0.6},
		{"above range clamps", "250", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(&fakeInferencer{response: tt.response})
			got := s.Score(context.Background(), "how do I create a project", "answer", 4, "safe")
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScore_EstimatorFailureUsesFallback(t *testing.T) {
	s := NewScorer(&fakeInferencer{err: errors.New("down")})
	got := s.Score(context.Background(), "query text here", "answer", 5, "safe")
	// base 0.5 + 0.3 proceed + 0.15 docs
	assert.InDelta(t, 0.95, got, 1e-9)
}

func TestScore_NoNumberInOutputUsesFallback(t *testing.T) {
	s := NewScorer(&fakeInferencer{response: "I cannot judge this."})
	got := s.Score(context.Background(), "query text here", "answer", 0, "contradictory")
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name     string
		docCount int
		verdict  string
		want     float64
	}{
		{"proceed with many docs hits the cap", 5, "safe", 0.95},
		{"multiple_answers counts as proceed", 5, "multiple_answers", 0.95},
		{"proceed with three docs", 3, "safe", 0.90},
		{"proceed with one doc", 1, "safe", 0.85},
		{"proceed with no docs", 0, "safe", 0.80},
		{"retry verdict with many docs", 5, "missing_knowledge", 0.65},
		{"retry verdict with nothing", 0, "contradictory", 0.50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fallback(tt.docCount, tt.verdict)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.LessOrEqual(t, got, FallbackCap, "fallback must never exceed the cap")
		})
	}
}

func TestRecommendationFor(t *testing.T) {
	assert.Equal(t, AutoResolve, RecommendationFor(0.80))
	assert.Equal(t, AutoResolve, RecommendationFor(0.95))
	assert.Equal(t, SuggestHumanReview, RecommendationFor(0.79))
	assert.Equal(t, SuggestHumanReview, RecommendationFor(0.60))
	assert.Equal(t, EscalateToHuman, RecommendationFor(0.59))
	assert.Equal(t, EscalateToHuman, RecommendationFor(0.40))
	assert.Equal(t, RejectAndEscalate, RecommendationFor(0.39))
	assert.Equal(t, RejectAndEscalate, RecommendationFor(0))
}
