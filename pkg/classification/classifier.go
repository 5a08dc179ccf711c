package classification

import (
	"context"
	"fmt"
	"strings"

	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
	"github.com/doxa-platform/triage/pkg/sensitive"
)

const classifierPrompt = `Classify the user query for the Doxa platform support system.

CLASSIFICATION PRIORITY (check in order, return first match):
1. 'spam' - gibberish, random characters, nonsense, repeated words
2. 'aggressive' - hostile, abusive, threatening language
3. 'out_of_scope' - unrelated topics (geography, weather, cooking, general knowledge, etc.)
4. 'ambiguous' - too vague, lacks context (e.g. 'help', 'i need help')
5. 'doxa_related' - valid specific query about the Doxa platform

CRITICAL: General knowledge questions MUST be 'out_of_scope', NOT 'doxa_related'.
Examples: 'where is paris' = out_of_scope, 'what is AI' = out_of_scope

ABSOLUTE OUTPUT RULE:
1. DO NOT ANSWER THE QUESTION. You are a CLASSIFIER, not an assistant.
2. Your ENTIRE response must be ONLY ONE WORD from this list:
spam OR aggressive OR out_of_scope OR ambiguous OR doxa_related

No JSON. No explanations. No sentences. No punctuation. ONLY the single category word.`

// Outcome is a full classification decision.
type Outcome struct {
	Label Label

	// Sensitive carries the detection details when the deterministic
	// gate fired; zero-valued otherwise.
	Sensitive sensitive.Result

	// RawResponse is the unparsed model output, kept for audit.
	RawResponse string
}

// NewClassifierOptions configures a Classifier.
type NewClassifierOptions struct {
	Inferencer inference.Inferencer
	Detector   *sensitive.Detector
}

// Classifier assigns a taxonomy label to each incoming query.
type Classifier struct {
	inferencer inference.Inferencer
	detector   *sensitive.Detector
}

// NewClassifier builds a Classifier. A nil detector gets a default one.
func NewClassifier(options NewClassifierOptions) *Classifier {
	det := options.Detector
	if det == nil {
		det = sensitive.NewDetector()
	}
	return &Classifier{
		inferencer: options.Inferencer,
		detector:   det,
	}
}

// Classify runs the sensitive-data gate, then at most one external
// label-inference call. The gate firing means zero external calls:
// matched text must never leave the process, not even inside a
// classification prompt.
func (c *Classifier) Classify(ctx context.Context, query string) (*Outcome, error) {
	det := c.detector.Detect(query)
	if det.ContainsSensitiveData {
		logging.Infof("Sensitive data detected, classification forced to %s (types: %s)",
			LabelSensitive, strings.Join(det.DetectedTypes, ", "))
		for level, n := range det.RiskSummary {
			metrics.SensitiveDetections.WithLabelValues(string(level)).Add(float64(n))
		}
		metrics.ClassificationsTotal.WithLabelValues(string(LabelSensitive)).Inc()
		return &Outcome{Label: LabelSensitive, Sensitive: det}, nil
	}

	raw, err := c.inferencer.Infer(ctx, classifierPrompt, query)
	if err != nil {
		return nil, fmt.Errorf("classification inference failed: %w", err)
	}
	metrics.LLMCallsTotal.WithLabelValues("classify").Inc()

	label := ParseLabel(raw)
	if label == LabelUnknown {
		logging.Warnf("Classifier output %q did not map to the taxonomy", raw)
	}
	metrics.ClassificationsTotal.WithLabelValues(string(label)).Inc()
	return &Outcome{Label: label, RawResponse: raw}, nil
}
