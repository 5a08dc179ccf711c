// Package ragloop implements the retrieval-evaluation feedback loop as
// an explicit state machine: RETRIEVE -> EVALUATE -> {PROCEED,
// REFINE_AND_RETRY, ESCALATE}. The retry bound is structural — the
// machine cannot express more than MaxRetries retrieval attempts.
package ragloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/doxa-platform/triage/pkg/confidence"
	"github.com/doxa-platform/triage/pkg/docstore"
	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/tracing"
)

// State is a feedback-loop state.
type State string

const (
	StateRetrieve       State = "RETRIEVE"
	StateEvaluate       State = "EVALUATE"
	StateProceed        State = "PROCEED"
	StateRefineAndRetry State = "REFINE_AND_RETRY"
	StateEscalate       State = "ESCALATE"
)

const evaluatorPrompt = `Evaluate retrieved documents for quality issues before answer generation.

BE VERY LENIENT - Always try to proceed if there's ANY relevant info.

EVALUATION PRIORITY (check in order):
1. 'safe' - DEFAULT CHOICE. Use if ANY document has relevant info.
2. 'multiple_answers' - documents provide multiple valid options (this is fine!)
3. 'contradictory' - ONLY for MAJOR direct conflicts (very rare!)
4. 'missing_knowledge' - ONLY if 100% of docs are completely unrelated (very rare!)

KEY PRINCIPLE: If even ONE document contains something useful, return 'safe'.
Off-topic documents mixed with relevant ones = 'safe' (ignore the bad ones).

ABSOLUTE OUTPUT RULE:
Your ENTIRE response must be ONLY ONE WORD from:
safe OR multiple_answers OR contradictory OR missing_knowledge

DO NOT write explanations. ONLY the category word.`

const generationSystemPrompt = "Vous êtes un assistant de support technique pour Doxa. " +
	"Votre rôle est de répondre aux questions des utilisateurs en vous basant " +
	"UNIQUEMENT sur la documentation fournie."

const generationPromptTemplate = `RÈGLES STRICTES :
1. Répondez UNIQUEMENT avec les informations présentes dans le contexte ci-dessous
2. Si l'information n'est pas explicitement mentionnée dans le contexte, répondez : "Cette information n'est pas disponible dans la documentation fournie. Je vous recommande de contacter %s pour plus de détails."
3. Ne faites AUCUNE supposition, déduction ou utilisation de connaissances externes
4. Citez les informations pertinentes du contexte dans votre réponse
5. Si plusieurs sources du contexte sont pertinentes, combinez-les de manière cohérente
6. Soyez précis et concis - évitez les informations non pertinentes

CONTEXTE DOCUMENTAIRE :
%s

---

QUESTION DE L'UTILISATEUR : %s

VOTRE RÉPONSE :`

// DevNotes is the developer-facing escalation guidance.
type DevNotes struct {
	EscalationType string   `json:"escalation_type"`
	ActionRequired string   `json:"action_required"`
	SendToAgent    []string `json:"send_to_agent"`
	Priority       string   `json:"priority"`
}

// Result is the loop outcome for one query.
type Result struct {
	Verdict         Verdict   `json:"evaluation_result"`
	ShouldEscalate  bool      `json:"should_escalate"`
	IsSafe          bool      `json:"is_safe"`
	Response        string    `json:"response"`
	Attempts        int       `json:"attempts"`
	DocCount        int       `json:"relevant_docs_count"`
	Documents       []string  `json:"-"`
	ConfidenceScore float64   `json:"confidence_score"`
	FeedbackHistory []string  `json:"feedback_history,omitempty"`
	Reason          string    `json:"reason"`
	DevNotes        *DevNotes `json:"dev_notes,omitempty"`
	SuccessMessage  string    `json:"success_message,omitempty"`
}

// NewLoopOptions configures a Loop.
type NewLoopOptions struct {
	Store     docstore.Backend
	Evaluator inference.Inferencer
	Generator inference.Generator
	Scorer    *confidence.Scorer

	// MaxRetries bounds retrieval attempts (default 3).
	MaxRetries int

	// BaseResults is the first-attempt result budget (default 6); the
	// budget grows by 2 per retry and caps at MaxResults (default 15).
	BaseResults int
	MaxResults  int

	// SupportContact appears in user-facing escalation messages.
	SupportContact string
}

// Loop runs the feedback loop. Safe for concurrent use; per-query
// state lives entirely on the Run stack.
type Loop struct {
	options NewLoopOptions
}

// NewLoop builds a Loop, applying defaults for unset bounds.
func NewLoop(options NewLoopOptions) *Loop {
	if options.MaxRetries <= 0 {
		options.MaxRetries = 3
	}
	if options.BaseResults <= 0 {
		options.BaseResults = 6
	}
	if options.MaxResults <= 0 {
		options.MaxResults = 15
	}
	if options.SupportContact == "" {
		options.SupportContact = "support@doxa.dz"
	}
	return &Loop{options: options}
}

// resultBudget widens the net on each retry under the hypothesis that
// the first, narrower query simply missed relevant material.
func (l *Loop) resultBudget(attempt int) int {
	n := l.options.BaseResults + 2*(attempt-1)
	if n > l.options.MaxResults {
		return l.options.MaxResults
	}
	return n
}

// Run drives the state machine for one query. Transport and model
// failures never propagate: every path ends in a Result, either a
// generated answer or an escalation.
func (l *Loop) Run(ctx context.Context, query string, tracer *tracing.Tracer) *Result {
	state := StateRetrieve
	attempt := 1
	currentQuery := query
	var docs []docstore.Document
	var verdict Verdict
	var history []string

	// The machine terminates within MaxRetries cycles; the iteration
	// cap makes the guarantee independent of transition mistakes.
	for iter := 0; iter < 4*l.options.MaxRetries+4; iter++ {
		switch state {
		case StateRetrieve:
			budget := l.resultBudget(attempt)
			logging.Infof("Retrieval attempt %d/%d (budget %d)", attempt, l.options.MaxRetries, budget)
			tracer.RecordRetrievalAttempt()
			retrieved, err := l.options.Store.Query(ctx, currentQuery, budget)
			if err != nil {
				return l.technicalEscalation(attempt, history, fmt.Errorf("document retrieval failed: %w", err))
			}
			docs = retrieved
			state = StateEvaluate

		case StateEvaluate:
			v, err := l.evaluate(ctx, currentQuery, docs)
			tracer.RecordLLMCall()
			if err != nil {
				return l.technicalEscalation(attempt, history, fmt.Errorf("document evaluation failed: %w", err))
			}
			verdict = v
			logging.Infof("Evaluation verdict on attempt %d: %s", attempt, verdict)
			switch {
			case verdict.Proceed():
				state = StateProceed
			case attempt < l.options.MaxRetries:
				state = StateRefineAndRetry
			default:
				state = StateEscalate
			}

		case StateRefineAndRetry:
			history = append(history, fmt.Sprintf("Attempt %d: %s", attempt, failureDescription(verdict)))
			currentQuery = refineQuery(query, verdict)
			logging.Debugf("Refined query for attempt %d: %s", attempt+1, currentQuery)
			tracer.RecordRetry()
			attempt++
			state = StateRetrieve

		case StateProceed:
			return l.proceed(ctx, query, verdict, docs, attempt, history, tracer)

		case StateEscalate:
			return l.escalate(verdict, attempt, history, docs)
		}
	}

	// Unreachable by construction; kept as a correctness assertion so
	// a broken transition can never leave the caller without a result.
	logging.Errorf("Feedback loop exited without a decision for query %q", query)
	return &Result{
		Verdict:        VerdictUnknown,
		ShouldEscalate: true,
		IsSafe:         false,
		Response: fmt.Sprintf("Votre demande nécessite l'assistance d'un agent humain. Contactez %s",
			l.options.SupportContact),
		Attempts:        attempt,
		FeedbackHistory: history,
		Reason:          "Unknown error in feedback loop",
		DevNotes: &DevNotes{
			EscalationType: "SYSTEM_ERROR",
			ActionRequired: "Debug feedback loop logic",
			SendToAgent:    []string{"user_query", "full_error_context"},
			Priority:       "CRITICAL",
		},
	}
}

// evaluate submits the query and documents to the multi-verdict
// evaluator.
func (l *Loop) evaluate(ctx context.Context, query string, docs []docstore.Document) (Verdict, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "USER QUERY:\n%s\n\n%s\n\nRETRIEVED DOCUMENTS:\n", query, strings.Repeat("=", 60))
	for i, d := range docs {
		fmt.Fprintf(&sb, "Document %d:\n%s\n\n", i+1, d.Content)
	}

	raw, err := l.options.Evaluator.Infer(ctx, evaluatorPrompt, sb.String())
	if err != nil {
		return VerdictUnknown, err
	}
	return ParseVerdict(raw), nil
}

// proceed generates the answer from the original (unrefined) query and
// the decisive attempt's documents, then scores confidence.
func (l *Loop) proceed(ctx context.Context, originalQuery string, verdict Verdict,
	docs []docstore.Document, attempt int, history []string, tracer *tracing.Tracer) *Result {

	contents := make([]string, 0, len(docs))
	var ctxLines strings.Builder
	for _, d := range docs {
		contents = append(contents, d.Content)
		ctxLines.WriteString("- " + d.Content + "\n")
	}
	prompt := fmt.Sprintf(generationPromptTemplate,
		l.options.SupportContact, ctxLines.String(), originalQuery)

	gen, err := l.options.Generator.Generate(ctx, generationSystemPrompt, prompt)
	tracer.RecordLLMCall()
	if err != nil {
		// Safety blocks, empty completions and transport errors all end
		// the same way for the user: a contact-support escalation. The
		// distinguishing detail stays in the dev notes.
		return l.technicalEscalation(attempt, history, fmt.Errorf("answer generation failed: %w", err))
	}

	score := l.options.Scorer.Score(ctx, originalQuery, gen.Text, len(docs), string(verdict))
	tracer.RecordLLMCall()

	successMsg := ""
	if attempt > 1 {
		successMsg = fmt.Sprintf("Successfully resolved after %d attempt(s)", attempt)
	}
	return &Result{
		Verdict:         verdict,
		IsSafe:          true,
		Response:        gen.Text,
		Attempts:        attempt,
		DocCount:        len(docs),
		Documents:       contents,
		ConfidenceScore: score,
		FeedbackHistory: history,
		Reason:          "Documents evaluated as safe to proceed",
		SuccessMessage:  successMsg,
	}
}

// escalate builds the terminal quality-failure result after the last
// attempt. No history entry is appended for the escalating attempt
// itself; the history describes the retries that led here.
func (l *Loop) escalate(verdict Verdict, attempt int, history []string, docs []docstore.Document) *Result {
	contents := make([]string, 0, len(docs))
	for _, d := range docs {
		contents = append(contents, d.Content)
	}

	msg := fmt.Sprintf(`Je n'ai pas pu trouver une réponse fiable après %d tentatives.

Problème rencontré : %s

Votre demande sera escaladée à un agent humain.
Veuillez contacter : %s

Un agent vous répondra dans les plus brefs délais avec des informations précises.

Référence : ESCALATION-QUALITY-%d`,
		l.options.MaxRetries, failureDescription(verdict), l.options.SupportContact, attempt)

	return &Result{
		Verdict:         verdict,
		ShouldEscalate:  true,
		IsSafe:          false,
		Response:        msg,
		Attempts:        attempt,
		DocCount:        len(docs),
		Documents:       contents,
		FeedbackHistory: history,
		Reason:          fmt.Sprintf("Failed after %d attempts due to document quality issues", attempt),
		DevNotes:        devNotesForVerdict(verdict),
	}
}

// technicalEscalation is the terminal result for transport and model
// failures: the user gets the generic contact-support message, the
// developer notes carry the real error.
func (l *Loop) technicalEscalation(attempt int, history []string, err error) *Result {
	logging.Errorf("Technical failure in feedback loop: %v", err)
	return &Result{
		Verdict:        VerdictUnknown,
		ShouldEscalate: true,
		IsSafe:         false,
		Response: fmt.Sprintf("Je rencontre un problème technique pour traiter votre demande. "+
			"Votre demande sera escaladée à un agent humain.\nVeuillez contacter : %s",
			l.options.SupportContact),
		Attempts:        attempt,
		FeedbackHistory: history,
		Reason:          err.Error(),
		DevNotes: &DevNotes{
			EscalationType: "TECHNICAL_ERROR",
			ActionRequired: "Investigate the failing dependency and answer the user manually",
			SendToAgent:    []string{"user_query", "full_error_context"},
			Priority:       "CRITICAL",
		},
	}
}

// refineQuery appends a verdict-specific clarifying suffix to the
// original query so the next retrieval searches differently, not just
// again.
func refineQuery(originalQuery string, verdict Verdict) string {
	switch verdict {
	case VerdictContradictory:
		return originalQuery + " (Previous search returned conflicting documentation - need a single authoritative source)"
	case VerdictMissingKnowledge:
		return originalQuery + " (Previous search found no relevant documentation - search more broadly with related terms)"
	default:
		return originalQuery + " (Previous search had quality issues - need better documentation)"
	}
}

func failureDescription(verdict Verdict) string {
	switch verdict {
	case VerdictContradictory:
		return "Documents contradictoires dans la base de connaissances"
	case VerdictMissingKnowledge:
		return "Documentation pertinente introuvable"
	default:
		return "Document quality issues"
	}
}

func devNotesForVerdict(verdict Verdict) *DevNotes {
	switch verdict {
	case VerdictContradictory:
		return &DevNotes{
			EscalationType: "CONTRADICTORY_DOCUMENTATION",
			ActionRequired: "Human agent should reconcile the conflicting sources and provide the authoritative answer",
			SendToAgent:    []string{"user_query", "feedback_history", "retrieved_documents"},
			Priority:       "MEDIUM",
		}
	case VerdictMissingKnowledge:
		return &DevNotes{
			EscalationType: "MISSING_KNOWLEDGE",
			ActionRequired: "Human agent should answer from outside the knowledge base or flag a documentation gap",
			SendToAgent:    []string{"user_query", "feedback_history", "retrieved_documents"},
			Priority:       "HIGH",
		}
	default:
		return &DevNotes{
			EscalationType: "DOCUMENT_QUALITY_ISSUES",
			ActionRequired: "Human agent should review query and provide accurate answer",
			SendToAgent:    []string{"user_query", "feedback_history", "retrieved_documents"},
			Priority:       "HIGH",
		}
	}
}
