package sensitive

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var digitRe = regexp.MustCompile(`\d`)

func TestDetect_CleanTextPassesThrough(t *testing.T) {
	d := NewDetector()
	res := d.Detect("Comment configurer la facturation de mon compte ?")

	assert.False(t, res.ContainsSensitiveData)
	assert.False(t, res.ShouldEscalate)
	assert.False(t, res.Excluded)
	assert.Empty(t, res.Matches)
	assert.Equal(t, "Comment configurer la facturation de mon compte ?", res.RedactedText)
}

func TestDetect_VisaCardForcesEscalation(t *testing.T) {
	d := NewDetector()
	res := d.Detect("4111 1111 1111 1111 please refund me")

	require.True(t, res.ContainsSensitiveData)
	assert.True(t, res.ShouldEscalate)
	assert.GreaterOrEqual(t, res.RiskSummary[RiskCritical], 1)
	assert.Contains(t, res.DetectedTypes, "credit_card_visa")
	assert.Contains(t, res.RedactedText, "[REDACTED-CREDIT]")
	assert.Empty(t, digitRe.FindString(res.RedactedText),
		"redacted text must not retain any card digits")
	assert.Contains(t, res.EscalationReason, "CRITICAL")
	assert.Contains(t, res.EscalationReason, "MANDATORY")
}

func TestDetect_OverlappingCardPatternsAllRecorded(t *testing.T) {
	d := NewDetector()
	res := d.Detect("card: 4111-1111-1111-1111")

	// Visa and the generic 16-digit pattern both hit the same span.
	assert.Contains(t, res.DetectedTypes, "credit_card_visa")
	assert.Contains(t, res.DetectedTypes, "credit_card_generic")
	assert.GreaterOrEqual(t, len(res.Matches), 2)
	assert.Empty(t, digitRe.FindString(res.RedactedText))
}

func TestDetect_ExclusionPrecedence(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		text string
	}{
		{"reset password", "I want to reset my password"},
		{"forgot password", "forgot password, can you help?"},
		{"change password", "How do I change my password?"},
		{"password reset link", "The password reset email never arrived"},
		{"update email", "Please update my email on file"},
		{"verify email", "I cannot verify my email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Detect(tt.text)
			assert.True(t, res.Excluded)
			assert.False(t, res.ContainsSensitiveData)
			assert.False(t, res.ShouldEscalate)
			assert.Equal(t, tt.text, res.RedactedText)
		})
	}
}

func TestDetect_ExclusionWinsEvenWithRealSecret(t *testing.T) {
	d := NewDetector()
	// The exclusion phrase suppresses the entire catalogue, including
	// the card number later in the same message. Accepted tradeoff.
	res := d.Detect("Please reset my password, my card is 4111 1111 1111 1111")

	assert.True(t, res.Excluded)
	assert.False(t, res.ShouldEscalate)
	assert.Equal(t, "Please reset my password, my card is 4111 1111 1111 1111", res.RedactedText)
}

func TestDetect_SharedPasswordIsCritical(t *testing.T) {
	d := NewDetector()
	res := d.Detect("my account is broken, password: hunter2")

	require.True(t, res.ShouldEscalate)
	assert.Contains(t, res.DetectedTypes, "password_explicit")
	assert.GreaterOrEqual(t, res.RiskSummary[RiskCritical], 1)
	assert.Contains(t, res.RedactedText, "[REDACTED-PASSWORD]")
	assert.NotContains(t, res.RedactedText, "hunter2")
}

func TestDetect_EmailIsHighRisk(t *testing.T) {
	d := NewDetector()
	res := d.Detect("contact me at jean.dupont@example.com about the invoice")

	require.True(t, res.ShouldEscalate)
	assert.Contains(t, res.DetectedTypes, "email_standard")
	assert.Equal(t, 0, res.RiskSummary[RiskCritical])
	assert.Contains(t, res.EscalationReason, "HIGH")
	assert.Contains(t, res.RedactedText, "[REDACTED-EMAIL]")
	assert.NotContains(t, res.RedactedText, "jean.dupont@example.com")
}

func TestDetect_IBANIsCritical(t *testing.T) {
	d := NewDetector()
	res := d.Detect("virement vers FR76 3000 6000 0112 3456 7890 189 svp")

	require.True(t, res.ShouldEscalate)
	assert.Contains(t, res.DetectedTypes, "iban")
	assert.Contains(t, res.EscalationReason, "CRITICAL")
	assert.Contains(t, res.RedactedText, "[REDACTED-IBAN]")
}

func TestDetect_StreetAddressDetected(t *testing.T) {
	d := NewDetector()
	res := d.Detect("ship it to 10 main street please")

	require.True(t, res.ShouldEscalate)
	assert.Contains(t, res.DetectedTypes, "address_full")
	assert.Contains(t, res.RedactedText, "[REDACTED-ADDRESS]")
}

func TestDetect_ReasonRankedBySeverity(t *testing.T) {
	d := NewDetector()
	// Mixed levels: the reason reports the critical tier, not the high one.
	res := d.Detect("mail me at a@b.com, card 5212 3456 7890 1234")

	require.True(t, res.ShouldEscalate)
	assert.GreaterOrEqual(t, res.RiskSummary[RiskCritical], 1)
	assert.GreaterOrEqual(t, res.RiskSummary[RiskHigh], 1)
	assert.Contains(t, res.EscalationReason, "CRITICAL")
}

func TestDetect_RedactionIsIdempotent(t *testing.T) {
	d := NewDetector()
	first := d.Detect("4111 1111 1111 1111 please refund me")
	second := d.Detect(first.RedactedText)

	assert.False(t, second.ContainsSensitiveData,
		"scanning redacted text must find nothing")
	assert.Equal(t, first.RedactedText, second.RedactedText)
}
