// Package fuzzy implements the approximate term matching used to compare user
// keywords with procurement texts.
package fuzzy

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/spigell/licita-radar/internal/textnorm"
)

const (
	DefaultThreshold = 0.6

	// containmentScore is returned by Similarity when one string contains the other,
	// regardless of their length ratio.
	containmentScore = 0.9
)

// Options holds the cutoffs used by ContainsTerm. Lengths are measured on
// normalized text.
type Options struct {
	// Threshold is the minimal similarity accepted by the fuzzy branches.
	Threshold float64 `mapstructure:"threshold"`
	// ShortTermLength is the longest term that is only tested by substring.
	ShortTermLength int `mapstructure:"short-term-length"`
	// FuzzyWordLength is the length a word must exceed to be compared by similarity.
	FuzzyWordLength int `mapstructure:"fuzzy-word-length"`
	// WholeStringLength is the length a term must exceed to be compared with the whole text.
	WholeStringLength int `mapstructure:"whole-string-length"`
	// CoverageTermLength is the length a term must exceed to enable word coverage.
	CoverageTermLength int `mapstructure:"coverage-term-length"`
	// CoverageRatio is the share of significant term words that must appear in the text.
	CoverageRatio float64 `mapstructure:"coverage-ratio"`

	// thresholdSet marks a threshold given through WithThreshold, so 0 is
	// honored instead of meaning "not configured".
	thresholdSet bool
}

// DefaultOptions returns the cutoffs tuned for Portuguese procurement texts.
func DefaultOptions() Options {
	return Options{
		Threshold:          DefaultThreshold,
		ShortTermLength:    2,
		FuzzyWordLength:    3,
		WholeStringLength:  5,
		CoverageTermLength: 8,
		CoverageRatio:      0.7,
	}
}

// withDefaults fills zero values with the defaults so a partially configured
// Options is still usable.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Threshold < 0 || (o.Threshold == 0 && !o.thresholdSet) {
		o.Threshold = d.Threshold
	}
	if o.ShortTermLength <= 0 {
		o.ShortTermLength = d.ShortTermLength
	}
	if o.FuzzyWordLength <= 0 {
		o.FuzzyWordLength = d.FuzzyWordLength
	}
	if o.WholeStringLength <= 0 {
		o.WholeStringLength = d.WholeStringLength
	}
	if o.CoverageTermLength <= 0 {
		o.CoverageTermLength = d.CoverageTermLength
	}
	if o.CoverageRatio <= 0 || o.CoverageRatio > 1 {
		o.CoverageRatio = d.CoverageRatio
	}
	return o
}

// WithThreshold returns a copy of the options using the given threshold. Unlike
// a zero Threshold field, an explicit 0 accepts any similarity.
func (o Options) WithThreshold(threshold float64) Options {
	o.Threshold = threshold
	o.thresholdSet = true
	return o
}

// Similarity scores two strings in [0,1] after normalization.
//
// Identical strings score 1. When one contains the other the score is 0.9, even
// for a tiny string inside a long one. Strings shorter than three characters
// score 1 only when equal. Everything else is scored by normalized Levenshtein
// distance. Empty strings score 0 against anything but themselves.
func Similarity(a, b string) float64 {
	return similarity(textnorm.Normalize(a), textnorm.Normalize(b))
}

// similarity expects normalized input.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containmentScore
	}
	if len(a) < 3 || len(b) < 3 {
		return 0
	}

	distance := levenshtein.ComputeDistance(a, b)
	longest := max(len(a), len(b))

	return 1 - float64(distance)/float64(longest)
}

// Matcher answers whether a text contains a term under the configured options.
type Matcher struct {
	opts Options
}

// NewMatcher creates a Matcher. Zero fields of opts fall back to DefaultOptions.
func NewMatcher(opts Options) *Matcher {
	return &Matcher{opts: opts.withDefaults()}
}

// Options returns the effective options of the matcher.
func (m *Matcher) Options() Options {
	return m.opts
}

// ContainsTerm reports whether term approximately occurs in text using the
// package defaults and the given threshold.
func ContainsTerm(text, term string, threshold float64) bool {
	return NewMatcher(DefaultOptions().WithThreshold(threshold)).ContainsTerm(text, term)
}

// ContainsTerm reports whether term approximately occurs in text. The strategies
// are tried in order and the first success wins:
//  1. substring of the normalized text;
//  2. every word of a multi-word term matches some text word;
//  3. any pair of long words is similar enough;
//  4. the whole text is similar to a long term;
//  5. most significant words of a long term appear in the text.
func (m *Matcher) ContainsTerm(text, term string) bool {
	return m.containsNormalized(textnorm.Normalize(text), textnorm.Normalize(term))
}

func (m *Matcher) containsNormalized(text, term string) bool {
	if term == "" || text == "" {
		return false
	}

	if len(term) <= m.opts.ShortTermLength {
		return strings.Contains(text, term)
	}

	if strings.Contains(text, term) {
		return true
	}

	textWords := strings.Fields(text)
	termWords := strings.Fields(term)

	if len(termWords) > 1 && m.allWordsMatch(textWords, termWords) {
		return true
	}

	if m.anyWordPairMatches(textWords, termWords) {
		return true
	}

	if len(term) > m.opts.WholeStringLength && similarity(text, term) >= m.opts.Threshold {
		return true
	}

	if len(term) > m.opts.CoverageTermLength && m.coversSignificantWords(text, termWords) {
		return true
	}

	return false
}

func (m *Matcher) allWordsMatch(textWords, termWords []string) bool {
	for _, termWord := range termWords {
		if !m.wordMatchesAny(termWord, textWords) {
			return false
		}
	}
	return true
}

func (m *Matcher) wordMatchesAny(termWord string, textWords []string) bool {
	for _, textWord := range textWords {
		if strings.Contains(textWord, termWord) {
			return true
		}
		if len(termWord) > m.opts.FuzzyWordLength && similarity(textWord, termWord) >= m.opts.Threshold {
			return true
		}
	}
	return false
}

func (m *Matcher) anyWordPairMatches(textWords, termWords []string) bool {
	for _, textWord := range textWords {
		if len(textWord) <= m.opts.FuzzyWordLength {
			continue
		}
		for _, termWord := range termWords {
			if len(termWord) <= m.opts.FuzzyWordLength {
				continue
			}
			if strings.Contains(textWord, termWord) || strings.Contains(termWord, textWord) {
				return true
			}
			if similarity(textWord, termWord) >= m.opts.Threshold {
				return true
			}
		}
	}
	return false
}

func (m *Matcher) coversSignificantWords(text string, termWords []string) bool {
	significant := make([]string, 0, len(termWords))
	for _, word := range termWords {
		if len(word) > m.opts.FuzzyWordLength {
			significant = append(significant, word)
		}
	}
	if len(significant) < 2 {
		return false
	}

	found := 0
	for _, word := range significant {
		if strings.Contains(text, word) {
			found++
		}
	}

	required := int(math.Ceil(float64(len(significant))*m.opts.CoverageRatio - 1e-9))
	return found >= required
}
