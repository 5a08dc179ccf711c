package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/doxa-platform/triage/pkg/inference"
	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
)

const composerPrompt = `Format the AI response into a professional, structured customer support response.

TEMPLATE STRUCTURE (4 PARTS):

1. THANKS
   - Brief thank you for contacting support
   - FR: 'Merci de nous avoir contactés.'
   - EN: 'Thank you for reaching out to us.'

2. PROBLEM RECAP
   - Show understanding of the issue
   - FR: 'Nous comprenons que vous souhaitez [problème].'
   - EN: 'We understand that you would like to [problem].'

3. DETAILED SOLUTION
   - Provide the actual answer/solution
   - Use bullet points or numbered steps if applicable

4. NEXT ACTION / CTA
   - Tell user what to do next
   - FR: 'N'hésitez pas à nous recontacter si vous avez d'autres questions.'
   - EN: 'Please don't hesitate to reach out if you have further questions.'
   - Include contact: support@doxa.dz

INPUT FORMAT:
You will receive:
- language: 'fr', 'en', 'ar', or 'es'
- user_query: The original question
- raw_answer: The AI-generated answer

OUTPUT FORMAT:
Return ONLY the formatted response following the 4-part template,
written in the given language.

TONE: Professional, helpful, concise. No hallucinations.`

// Composer wraps the raw generated answer in the 4-part support
// template (thanks, recap, solution, next action).
type Composer struct {
	inferencer inference.Inferencer
}

// NewComposer builds a Composer on the shared inference client.
func NewComposer(inferencer inference.Inferencer) *Composer {
	return &Composer{inferencer: inferencer}
}

// Compose formats rawAnswer for the user in the detected language.
// On failure the raw answer is returned as-is: formatting is cosmetic
// and must never cost the user their answer.
func (c *Composer) Compose(ctx context.Context, language, userQuery, rawAnswer string) string {
	input := fmt.Sprintf("language: %s\nuser_query: %s\nraw_answer: %s\n",
		language, userQuery, rawAnswer)

	raw, err := c.inferencer.Infer(ctx, composerPrompt, input)
	if err != nil {
		logging.Warnf("Response composition failed, returning the raw answer: %v", err)
		return rawAnswer
	}
	metrics.LLMCallsTotal.WithLabelValues("compose").Inc()

	composed := strings.TrimSpace(raw)
	if composed == "" {
		return rawAnswer
	}
	return composed
}
