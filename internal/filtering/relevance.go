package filtering

import (
	"context"
	"errors"
	"strconv"

	"github.com/spigell/licita-radar/internal/classify"
	"github.com/spigell/licita-radar/internal/procurement"
)

type relevanceFilter struct {
	toggle
	stats *classify.Stats
}

// NewRelevance creates the step that keeps records matching the profile
// activities, optionally rescued by the external classifier.
func NewRelevance() Filter {
	return &relevanceFilter{}
}

func (f *relevanceFilter) Name() string { return "relevance" }

func (f *relevanceFilter) Validate(*Config) error { return nil }

func (f *relevanceFilter) Apply(ctx context.Context, deps Deps, r *procurement.Records) (*procurement.Records, Step, error) {
	initial := r.Len()
	if deps.Classifier == nil {
		return r, Step{}, errors.New("classifier is required for relevance filtering")
	}

	next, stats := deps.Classifier.ClassifyAll(ctx, r.Items, deps.Keywords)
	f.stats = stats

	return next, newStep(initial, next), nil
}

// Rejected returns the records the external classifier turned down.
func (f *relevanceFilter) Rejected() []*procurement.Record {
	if f.stats == nil {
		return nil
	}
	return f.stats.Rejected
}

func (f *relevanceFilter) Status() Status {
	details := map[string]string{}
	if f.stats != nil {
		details["semantic"] = strconv.Itoa(f.stats.Semantic)
		details["consulted"] = strconv.Itoa(f.stats.Consulted)
		details["rescued"] = strconv.Itoa(f.stats.Rescued)
		details["skipped"] = strconv.Itoa(f.stats.Skipped)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
