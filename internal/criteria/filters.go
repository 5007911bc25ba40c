package criteria

import (
	"fmt"

	"github.com/spigell/licita-radar/internal/procurement"
)

// Mode tells whether a filter keeps or removes the records it matches.
type Mode string

const (
	ModeInclude Mode = "include"
	ModeExclude Mode = "exclude"
)

// SavedFilter is a named, reusable set of criteria.
type SavedFilter struct {
	ID        string   `mapstructure:"id" json:"id,omitempty"`
	Name      string   `mapstructure:"name" json:"name"`
	Mode      Mode     `mapstructure:"mode" json:"mode"`
	Active    bool     `mapstructure:"active" json:"active"`
	AutoApply bool     `mapstructure:"auto-apply" json:"autoApply"`
	Criteria  Criteria `mapstructure:"criteria" json:"criteria"`
}

// Applies reports whether the filter takes part in automatic filtering.
func (f *SavedFilter) Applies() bool {
	return f.Active && f.AutoApply
}

// Validate checks the mode.
func (f *SavedFilter) Validate() error {
	switch f.Mode {
	case ModeInclude, ModeExclude:
		return nil
	default:
		return fmt.Errorf("filter %q: unknown mode %q", f.Name, f.Mode)
	}
}

// Result is the outcome of Apply.
type Result struct {
	Filtered []*procurement.Record
	// IncludedCount is the number of records left after the include filters.
	IncludedCount int
	// ExcludedCount is the number of included records removed by exclude filters.
	ExcludedCount int
}

// Apply runs every applicable filter over records. Include filters narrow the
// set one after another. A record matching any exclude filter is then removed.
// The input slice is not modified and the order of records is preserved.
// Without applicable filters the records pass through unchanged.
func Apply(records []*procurement.Record, filters []SavedFilter) Result {
	var include, exclude []SavedFilter
	for _, f := range filters {
		if !f.Applies() {
			continue
		}
		switch f.Mode {
		case ModeInclude:
			include = append(include, f)
		case ModeExclude:
			exclude = append(exclude, f)
		}
	}

	if len(include) == 0 && len(exclude) == 0 {
		kept := make([]*procurement.Record, len(records))
		copy(kept, records)
		return Result{Filtered: kept, IncludedCount: len(kept)}
	}

	// A nil record cannot be evaluated, so it never survives an active filter.
	kept := make([]*procurement.Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			kept = append(kept, r)
		}
	}

	for _, f := range include {
		narrowed := kept[:0:0]
		for _, r := range kept {
			if Matches(r, f.Criteria) {
				narrowed = append(narrowed, r)
			}
		}
		kept = narrowed
	}

	result := Result{IncludedCount: len(kept)}
	if len(exclude) == 0 {
		result.Filtered = kept
		return result
	}

	filtered := make([]*procurement.Record, 0, len(kept))
	for _, r := range kept {
		if matchesAny(r, exclude) {
			result.ExcludedCount++
			continue
		}
		filtered = append(filtered, r)
	}
	result.Filtered = filtered

	return result
}

func matchesAny(r *procurement.Record, filters []SavedFilter) bool {
	for _, f := range filters {
		if Matches(r, f.Criteria) {
			return true
		}
	}
	return false
}
