// Package normalize canonicalizes document text and queries so both sides
// of a lexical match see the same form.
package normalize

import (
	"strings"
	"unicode"
)

// Text normalizes with punctuation removal, the form stored in the index
// and used for queries.
func Text(s string) string {
	return Normalize(s, true)
}

// Normalize turns every whitespace run (newlines and tabs included) into a
// single space, optionally drops runes that are neither letters, digits nor
// whitespace, lower-cases the result and trims it. Normalize is idempotent.
func Normalize(s string, removePunctuation bool) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case removePunctuation && !unicode.IsLetter(r) && !unicode.IsDigit(r):
			// dropped runes never separate words, "don't" becomes "dont"
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

// Words splits normalized text into its words.
func Words(s string) []string {
	return strings.Fields(s)
}
