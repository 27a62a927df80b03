package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLength is the shortest token kept by NormalizeDescription.
const minTokenLength = 3

// NormalizeAmount returns the magnitude of a movement. Statement amounts may
// be signed; ledger amounts are already non-negative.
func NormalizeAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Abs()
}

// NormalizeDescription folds a free-text description into comparison tokens:
// lower-cased, accents removed, punctuation dropped, split on whitespace, and
// tokens shorter than three characters discarded. Token order follows the
// input.
func NormalizeDescription(description string) []string {
	folded := foldAccents(strings.ToLower(description))

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, folded)

	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if utf8.RuneCountInString(field) >= minTokenLength {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// foldAccents decomposes s (NFD) and drops the combining marks. Transformers
// carry state, so a fresh chain is built per call.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
