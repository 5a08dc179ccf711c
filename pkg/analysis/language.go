package analysis

import (
	"context"
	"strings"

	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
)

const languagePrompt = `Detect the language of the user's message.

SUPPORTED LANGUAGES:
- 'fr' - French
- 'en' - English
- 'ar' - Arabic
- 'es' - Spanish

OUTPUT FORMAT:
Return ONLY the 2-letter language code: fr, en, ar, or es

RULES:
- If mixed languages, choose the dominant one
- If uncertain, default to 'fr' (French)
- Return ONLY the code, no explanation`

// DefaultLanguage is used whenever detection fails or returns an
// unsupported code. The platform's user base is French-first.
const DefaultLanguage = "fr"

var supportedLanguages = map[string]bool{
	"fr": true,
	"en": true,
	"ar": true,
	"es": true,
}

// LanguageDetector resolves the reply language for a query.
type LanguageDetector struct {
	inferencer inference.Inferencer
}

// NewLanguageDetector builds a LanguageDetector on the shared client.
func NewLanguageDetector(inferencer inference.Inferencer) *LanguageDetector {
	return &LanguageDetector{inferencer: inferencer}
}

// Detect returns one of fr/en/ar/es, defaulting to fr on any failure.
func (d *LanguageDetector) Detect(ctx context.Context, query string) string {
	raw, err := d.inferencer.Infer(ctx, languagePrompt, query)
	if err != nil {
		logging.Warnf("Language detection failed, defaulting to %s: %v", DefaultLanguage, err)
		return DefaultLanguage
	}
	metrics.LLMCallsTotal.WithLabelValues("detect_language").Inc()
	return normalizeLanguage(raw)
}

// normalizeLanguage keeps the first two letters of the answer and
// rejects anything outside the supported set.
func normalizeLanguage(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	if len(code) > 2 {
		code = code[:2]
	}
	if !supportedLanguages[code] {
		return DefaultLanguage
	}
	return code
}
