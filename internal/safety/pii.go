// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package safety

import (
	"regexp"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

const filterPII = "pii"

// piiPatterns maps a PII category to its detector and the placeholder used
// when redacting. Order matters: credit cards are matched before phone
// numbers so a 16-digit card is not half-eaten by the phone pattern.
var piiPatterns = []struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}{
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN_REDACTED]"},
	{"credit_card", regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), "[CARD_REDACTED]"},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL_REDACTED]"},
	{"ip_address", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP_REDACTED]"},
	{"phone", regexp.MustCompile(`\+?\d{0,3}[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), "[PHONE_REDACTED]"},
	{"passport", regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`), "[PASSPORT_REDACTED]"},
}

// ContainsPII reports whether text matches any known PII pattern. The
// search connector uses it to drop results that leak personal data.
func ContainsPII(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range piiPatterns {
		if p.pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Redact replaces every detected PII span with its category placeholder,
// preserving the surrounding text. It returns the redacted text and the
// categories found.
func Redact(text string) (string, []string) {
	var found []string
	redacted := text
	for _, p := range piiPatterns {
		if p.pattern.MatchString(redacted) {
			found = append(found, p.name)
			redacted = p.pattern.ReplaceAllString(redacted, p.replacement)
		}
	}
	return redacted, found
}

// piiFilter masks PII spans on both stages. Redactions are logged by the
// pipeline and never halt it.
type piiFilter struct{}

func (f *piiFilter) Name() string { return filterPII }

func (f *piiFilter) AppliesTo(types.SafetyStage) bool { return true }

func (f *piiFilter) Evaluate(text string, _ Context) types.SafetyVerdict {
	redacted, found := Redact(text)
	if len(found) == 0 {
		return types.SafetyVerdict{FilterName: f.Name(), Action: types.ActionPass}
	}
	return types.SafetyVerdict{
		FilterName:   f.Name(),
		Action:       types.ActionRedact,
		RedactedText: redacted,
		Reason:       "detected " + strings.Join(found, ", "),
	}
}
