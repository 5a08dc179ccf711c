// Package classification routes incoming support queries into the
// six-label taxonomy. The sensitive-data gate runs first and is the
// only deterministic override; everything else goes through one
// label-inference call whose noisy output is normalized here.
package classification

import "strings"

// Label is a taxonomy category assigned to a query.
type Label string

const (
	LabelSpam        Label = "spam"
	LabelAggressive  Label = "aggressive"
	LabelSensitive   Label = "sensitive"
	LabelOutOfScope  Label = "out_of_scope"
	LabelAmbiguous   Label = "ambiguous"
	LabelDoxaRelated Label = "doxa_related"

	// LabelUnknown marks output the parser could not map to the
	// taxonomy. It always escalates; queries are never dropped.
	LabelUnknown Label = "unknown"
)

// taxonomy lists the assignable labels in priority order: when the
// model output contains several candidates of equal length, the
// earliest-listed one wins.
var taxonomy = []Label{
	LabelSpam,
	LabelAggressive,
	LabelSensitive,
	LabelOutOfScope,
	LabelAmbiguous,
	LabelDoxaRelated,
}

// greetingTokens trigger the ambiguous fallback when the model answer
// carries no taxonomy token at all. A bare greeting is a vague query,
// not a classification failure.
var greetingTokens = map[string]bool{
	"hello":   true,
	"hi":      true,
	"hey":     true,
	"bonjour": true,
	"salut":   true,
	"help":    true,
	"aide":    true,
}

// ParseLabel normalizes a raw model response into a taxonomy label.
// Strict first: the trimmed, lower-cased output must equal a label.
// Lenient second: substring search, longest taxonomy token wins (so
// "the query is out_of_scope" does not resolve to a shorter token that
// happens to appear in prose). If nothing matches, greeting/help
// wording maps to ambiguous; anything else is unknown.
func ParseLabel(raw string) Label {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.Trim(norm, `"'.`+"`")

	for _, l := range taxonomy {
		if norm == string(l) {
			return l
		}
	}

	// Models sometimes write "out of scope" or "doxa related".
	spaced := strings.ReplaceAll(norm, " ", "_")

	best := LabelUnknown
	bestLen := 0
	for _, l := range taxonomy {
		token := string(l)
		if !strings.Contains(norm, token) && !strings.Contains(spaced, token) {
			continue
		}
		if len(token) > bestLen {
			best = l
			bestLen = len(token)
		}
	}
	if best != LabelUnknown {
		return best
	}

	for _, word := range strings.FieldsFunc(norm, func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if greetingTokens[word] {
			return LabelAmbiguous
		}
	}
	return LabelUnknown
}

// Disposition is the fixed handling policy for a label.
type Disposition struct {
	// Message is the user-facing text for terminal labels. Empty for
	// doxa_related, which proceeds into the answer pipeline.
	Message string

	// ShouldProcess is true only when the query continues into
	// retrieval and generation.
	ShouldProcess bool

	// Escalate routes the ticket to a human agent.
	Escalate bool

	// Priority is the developer-facing escalation priority.
	Priority string
}

var dispositions = map[Label]Disposition{
	LabelSpam: {
		Message: "This appears to be spam or nonsense. Please provide a valid query.",
	},
	LabelAggressive: {
		Message: "Your message contains aggressive language. Please rephrase politely.",
	},
	LabelSensitive: {
		Message: "ALERTE SÉCURITÉ: Votre message contient des données personnelles sensibles " +
			"(numéros de carte, téléphone, email, etc.). Pour votre protection, ces informations " +
			"ont été détectées et votre demande sera traitée par un agent humain. " +
			"Ne partagez JAMAIS vos données sensibles dans un chat.",
		Escalate: true,
		Priority: "CRITICAL",
	},
	LabelOutOfScope: {
		Message: "This question is outside the scope of Doxa platform support. " +
			"I can only help with questions about the Doxa project management platform.",
	},
	LabelAmbiguous: {
		Message: "Your question is too vague. Please provide more specific details. " +
			"Example: Instead of 'I need help', try 'How do I create a project in Doxa?'",
	},
	LabelDoxaRelated: {
		ShouldProcess: true,
	},
	LabelUnknown: {
		Message: "Votre demande n'a pas pu être classifiée automatiquement. " +
			"Elle sera transmise à un agent humain.",
		Escalate: true,
		Priority: "HIGH",
	},
}

// DispositionFor returns the handling policy for a label. Unlisted
// labels fall back to the unknown policy.
func DispositionFor(label Label) Disposition {
	if d, ok := dispositions[label]; ok {
		return d
	}
	return dispositions[LabelUnknown]
}
