package sector

import (
	"strings"

	"github.com/spigell/licita-radar/internal/fuzzy"
	"github.com/spigell/licita-radar/internal/procurement"
	"github.com/spigell/licita-radar/internal/textnorm"
)

const categoryClassLength = 4

// Weights tune how much evidence each kind of term needs.
type Weights struct {
	// PrimaryThreshold is the similarity needed for a sector name match.
	PrimaryThreshold float64 `mapstructure:"primary-threshold"`
	// SecondaryThreshold is the similarity needed for a fuzzy sub-sector hit.
	SecondaryThreshold float64 `mapstructure:"secondary-threshold"`
	// SecondaryMinHits is how many fuzzy sub-sector hits accept a record.
	SecondaryMinHits int `mapstructure:"secondary-min-hits"`
	// IgnoreCategoryCodes disables the CNAE class overlap check.
	IgnoreCategoryCodes bool `mapstructure:"ignore-category-codes"`
}

// DefaultWeights returns the weights used when nothing is configured.
func DefaultWeights() Weights {
	return Weights{
		PrimaryThreshold:   fuzzy.DefaultThreshold,
		SecondaryThreshold: 0.75,
		SecondaryMinHits:   2,
	}
}

func (w Weights) withDefaults() Weights {
	def := DefaultWeights()
	if w.PrimaryThreshold <= 0 {
		w.PrimaryThreshold = def.PrimaryThreshold
	}
	if w.SecondaryThreshold <= 0 {
		w.SecondaryThreshold = def.SecondaryThreshold
	}
	if w.SecondaryMinHits <= 0 {
		w.SecondaryMinHits = def.SecondaryMinHits
	}
	return w
}

// Matcher scores records against a keyword set. It holds no mutable state and
// is safe for concurrent use.
type Matcher struct {
	weights   Weights
	primary   *fuzzy.Matcher
	secondary *fuzzy.Matcher
}

// NewMatcher builds a matcher. Zero weights fall back to DefaultWeights.
func NewMatcher(opts fuzzy.Options, weights Weights) *Matcher {
	weights = weights.withDefaults()
	return &Matcher{
		weights:   weights,
		primary:   fuzzy.NewMatcher(opts.WithThreshold(weights.PrimaryThreshold)),
		secondary: fuzzy.NewMatcher(opts.WithThreshold(weights.SecondaryThreshold)),
	}
}

// Weights returns the effective weights.
func (m *Matcher) Weights() Weights {
	return m.weights
}

// Matches reports whether the record belongs to the activities in ks.
func (m *Matcher) Matches(record *procurement.Record, ks KeywordSet) bool {
	if ks.Empty() {
		return true
	}
	if record == nil {
		return false
	}

	text := textnorm.Normalize(record.SubjectText())

	for _, term := range ks.Primary {
		if text != "" && m.primary.ContainsTerm(text, term) {
			return true
		}
	}

	if !m.weights.IgnoreCategoryCodes && sharesCategoryClass(record.CategoryCodes(), ks.CategoryCodes) {
		return true
	}

	if text == "" {
		return false
	}

	hits := 0
	for _, term := range ks.Secondary {
		if strings.Contains(text, term) {
			return true
		}
		if m.secondary.ContainsTerm(text, term) {
			hits++
			if hits >= m.weights.SecondaryMinHits {
				return true
			}
		}
	}

	return false
}

// MatchesActivities builds the keyword set for profile and checks record with
// default options. Use a Matcher directly when scanning many records.
func MatchesActivities(record *procurement.Record, profile Profile, system SynonymTable) bool {
	ks := BuildKeywordSet(profile, system)
	return NewMatcher(fuzzy.DefaultOptions(), DefaultWeights()).Matches(record, ks)
}

func sharesCategoryClass(recordCodes, profileCodes []string) bool {
	if len(recordCodes) == 0 || len(profileCodes) == 0 {
		return false
	}

	classes := make(map[string]struct{}, len(profileCodes))
	for _, code := range profileCodes {
		if class := categoryClass(code); class != "" {
			classes[class] = struct{}{}
		}
	}
	for _, code := range recordCodes {
		if _, ok := classes[categoryClass(code)]; ok {
			return true
		}
	}
	return false
}

// categoryClass returns the first four digits of a CNAE code, or "" when the
// code is too short.
func categoryClass(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == categoryClassLength {
				return b.String()
			}
		}
	}
	return ""
}
