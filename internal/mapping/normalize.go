package mapping

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHeader folds a header for similarity comparison: compatibility
// decomposition, diacritics dropped, lower-cased, and everything except
// letters and digits removed. "E-Mail Address" and "email_address" both
// become "emailaddress".
func NormalizeHeader(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateHeaders rejects blank and duplicate headers.
func ValidateHeaders(headers []string) []string {
	var problems []string
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			problems = append(problems, fmt.Sprintf("blank header at position %d", i))
			continue
		}
		if seen[h] {
			problems = append(problems, fmt.Sprintf("duplicate header %q", h))
		}
		seen[h] = true
	}
	return problems
}
