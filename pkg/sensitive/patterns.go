package sensitive

// Pattern is a named detection rule in the catalogue.
type Pattern struct {
	// ID identifies the pattern; the first underscore-separated token
	// is the data type used in redaction markers.
	ID string

	// Expr is the regular expression; all patterns match case-insensitively.
	Expr string

	// Description is a short human-readable summary.
	Description string

	// Risk is the level counted in the risk summary.
	Risk RiskLevel
}

// catalogue lists all detection patterns in evaluation order. Overlapping
// matches are all recorded; the catalogue is deliberately biased toward
// false positives so any hit forces escalation.
var catalogue = []Pattern{
	// Payment cards (critical)
	{
		ID:          "credit_card_visa",
		Expr:        `\b4[0-9]{3}[\s\-]?[0-9]{4}[\s\-]?[0-9]{4}[\s\-]?[0-9]{4}\b`,
		Description: "Visa card (starts with 4)",
		Risk:        RiskCritical,
	},
	{
		ID:          "credit_card_mastercard",
		Expr:        `\b5[1-5][0-9]{2}[\s\-]?[0-9]{4}[\s\-]?[0-9]{4}[\s\-]?[0-9]{4}\b`,
		Description: "Mastercard (starts with 51-55)",
		Risk:        RiskCritical,
	},
	{
		ID:          "credit_card_amex",
		Expr:        `\b3[47][0-9]{2}[\s\-]?[0-9]{6}[\s\-]?[0-9]{5}\b`,
		Description: "American Express (starts with 34 or 37)",
		Risk:        RiskCritical,
	},
	{
		ID:          "credit_card_generic",
		Expr:        `\b(?:\d{4}[\s\-]?){3}\d{4}\b`,
		Description: "Generic 16-digit card number",
		Risk:        RiskCritical,
	},

	// Email (high)
	{
		ID:          "email_standard",
		Expr:        `\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,7}\b`,
		Description: "Standard email address",
		Risk:        RiskHigh,
	},

	// Phone numbers (high)
	{
		ID:          "phone_international",
		Expr:        `\b\+?[1-9]\d{1,14}\b`,
		Description: "International phone (E.164 format)",
		Risk:        RiskHigh,
	},
	{
		ID:          "phone_french",
		Expr:        `\b(?:0|\+33[\s.]?)[1-9](?:[\s.\-]?\d{2}){4}\b`,
		Description: "French phone number",
		Risk:        RiskHigh,
	},
	{
		ID:          "phone_us",
		Expr:        `\b(?:\+1[\s\-]?)?(?:\([0-9]{3}\)|[0-9]{3})[\s\-]?[0-9]{3}[\s\-]?[0-9]{4}\b`,
		Description: "US phone number",
		Risk:        RiskHigh,
	},
	{
		ID:          "phone_algerian",
		Expr:        `\b(?:0|\+213[\s.]?)[567]\d{2}[\s.\-]?\d{2}[\s.\-]?\d{2}[\s.\-]?\d{2}\b`,
		Description: "Algerian phone number",
		Risk:        RiskHigh,
	},

	// National identifiers (critical)
	{
		ID:          "ssn_us",
		Expr:        `\b\d{3}[\s\-]?\d{2}[\s\-]?\d{4}\b`,
		Description: "US Social Security Number",
		Risk:        RiskCritical,
	},
	{
		ID:          "nin_french",
		Expr:        `\b[12]\s?\d{2}\s?\d{2}\s?\d{2}\s?\d{3}\s?\d{3}\s?\d{2}\b`,
		Description: "French National ID (INSEE)",
		Risk:        RiskCritical,
	},

	// Credentials (critical)
	{
		ID:          "password_explicit",
		Expr:        `\b(?:password|pwd|pass|mot\s*de\s*passe|mdp)[\s:=]+\S+`,
		Description: "Explicitly shared password",
		Risk:        RiskCritical,
	},
	{
		ID:          "password_secret",
		Expr:        `\b(?:secret|token|api[_\s]?key|private[_\s]?key)[\s:=]+\S+`,
		Description: "Secret/API key shared",
		Risk:        RiskCritical,
	},

	// Financial data (critical)
	{
		ID:          "iban",
		Expr:        `\b[a-z]{2}\d{2}\s?(?:\d{4}\s?){4,7}\d{1,4}\b`,
		Description: "IBAN bank account",
		Risk:        RiskCritical,
	},
	{
		ID:          "cvv",
		Expr:        `\b(?:cvv|cvc|cvv2|cvc2|security\s*code)[\s:=]+\d{3,4}\b`,
		Description: "Card CVV/CVC code",
		Risk:        RiskCritical,
	},

	// Location data (medium)
	{
		ID:          "address_full",
		Expr:        `\b\d{1,5}\s+(?:[a-zà-ÿ]+\s+){1,5}(?:street|st|avenue|ave|road|rd|boulevard|blvd|rue|place)\b`,
		Description: "Full street address",
		Risk:        RiskMedium,
	},
	{
		ID:          "postal_code_fr",
		Expr:        `\b(?:f\-|fr)?(?:0[1-9]|[1-9][0-9])\d{3}\b`,
		Description: "French postal code",
		Risk:        RiskMedium,
	},

	// Date of birth (medium) - only when explicitly labeled
	{
		ID:          "dob_explicit",
		Expr:        `\b(?:date\s*(?:of\s*)?birth|dob|né\s*le|naissance)[\s:=]+\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`,
		Description: "Date of birth",
		Risk:        RiskMedium,
	},
}

// exclusionExprs are phrases that look sensitive but are routine support
// requests. They take absolute precedence over the detection catalogue,
// even when the same message also carries a real secret elsewhere — a
// deliberate tradeoff inherited from the product; see DESIGN.md.
var exclusionExprs = []string{
	`reset\s+(?:my\s+)?password`,
	`forgot\s+(?:my\s+)?password`,
	`change\s+(?:my\s+)?password`,
	`password\s+reset`,
	`update\s+(?:my\s+)?email`,
	`verify\s+(?:my\s+)?email`,
}
