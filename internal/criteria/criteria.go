// Package criteria evaluates saved search filters against procurement records.
package criteria

import (
	"strings"

	"github.com/spigell/licita-radar/internal/procurement"
	"github.com/spigell/licita-radar/internal/textnorm"
)

// Criteria is the canonical rule set of a saved filter. Empty fields do not
// constrain the match.
type Criteria struct {
	Keywords      []string `mapstructure:"keywords" json:"keywords,omitempty"`
	States        []string `mapstructure:"states" json:"states,omitempty"`
	Modalities    []string `mapstructure:"modalities" json:"modalities,omitempty"`
	ValueMin      *float64 `mapstructure:"value-min" json:"valueMin,omitempty"`
	ValueMax      *float64 `mapstructure:"value-max" json:"valueMax,omitempty"`
	Organizations []string `mapstructure:"organizations" json:"organizations,omitempty"`
	CategoryCodes []string `mapstructure:"category-codes" json:"categoryCodes,omitempty"`
}

// IsEmpty reports whether no field is set.
func (c *Criteria) IsEmpty() bool {
	return len(c.Keywords) == 0 &&
		len(c.States) == 0 &&
		len(c.Modalities) == 0 &&
		c.ValueMin == nil &&
		c.ValueMax == nil &&
		len(c.Organizations) == 0 &&
		len(c.CategoryCodes) == 0
}

// Matches reports whether record satisfies every non-empty field of c. Fields
// are checked in a fixed order and the first failure stops the evaluation. A
// nil record only matches empty criteria; Apply drops nil records before
// evaluating any filter.
func Matches(record *procurement.Record, c Criteria) bool {
	if record == nil {
		return c.IsEmpty()
	}

	if len(c.Keywords) > 0 {
		subject := textnorm.Normalize(record.Subject)
		if !anyContains(subject, c.Keywords, textnorm.Normalize) {
			return false
		}
	}

	if len(c.States) > 0 {
		state := strings.ToUpper(strings.TrimSpace(record.StateCode))
		found := false
		for _, s := range c.States {
			if strings.ToUpper(strings.TrimSpace(s)) == state {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(c.Modalities) > 0 && !anyContains(strings.ToLower(record.Modality), c.Modalities, strings.ToLower) {
		return false
	}

	value := record.Value()
	if c.ValueMin != nil && value < *c.ValueMin {
		return false
	}
	if c.ValueMax != nil && value > *c.ValueMax {
		return false
	}

	if len(c.Organizations) > 0 && !anyContains(strings.ToLower(record.OrganizationName), c.Organizations, strings.ToLower) {
		return false
	}

	if len(c.CategoryCodes) > 0 {
		found := false
		for _, item := range record.LineItems {
			if item.CategoryCode != "" && anyContains(item.CategoryCode, c.CategoryCodes, strings.TrimSpace) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// anyContains skips needles that prepare to an empty string, so "-" or "!!!"
// never match everything.
func anyContains(text string, needles []string, prepare func(string) string) bool {
	for _, n := range needles {
		n = prepare(n)
		if strings.TrimSpace(n) == "" {
			continue
		}
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
