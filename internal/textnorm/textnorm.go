// Package textnorm reduces free text to the canonical form used by every matcher.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonWord    = regexp.MustCompile(`[^\w\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases text, strips diacritics, replaces punctuation with spaces
// and collapses whitespace. "Pavimentação Asfáltica!" becomes "pavimentacao asfaltica".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(text)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err == nil {
		text = stripped
	}

	text = nonWord.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// Words returns the normalized words of text.
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}
