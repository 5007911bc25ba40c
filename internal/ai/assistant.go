// Package ai defines the contract of external relevance classifiers.
package ai

import "context"

// Verdict is the three-valued answer of an external classifier.
type Verdict int

const (
	// Inconclusive means the classifier gave no usable answer.
	Inconclusive Verdict = iota
	Match
	NoMatch
)

func (v Verdict) String() string {
	switch v {
	case Match:
		return "match"
	case NoMatch:
		return "no_match"
	default:
		return "inconclusive"
	}
}

// Assessment is a parsed classifier answer.
type Assessment struct {
	Verdict    Verdict
	Confidence float64
	Reason     string
	Raw        string
}

// Classifier decides whether a procurement subject belongs to any of the
// given sectors.
type Classifier interface {
	Classify(ctx context.Context, subject string, sectors []string) (*Assessment, error)
}
