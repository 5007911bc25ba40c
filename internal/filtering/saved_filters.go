package filtering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/criteria"
	"github.com/spigell/licita-radar/internal/procurement"
)

type savedFiltersFilter struct {
	toggle
	filters  []criteria.SavedFilter
	included int
	excluded int
}

// NewSavedFilters creates a filter that applies the active auto-apply saved filters.
func NewSavedFilters() Filter {
	return &savedFiltersFilter{}
}

func (f *savedFiltersFilter) Name() string { return "saved_filters" }

func (f *savedFiltersFilter) Validate(cfg *Config) error {
	f.filters = nil
	if cfg == nil {
		return nil
	}
	for _, sf := range cfg.SavedFilters {
		if err := sf.Validate(); err != nil {
			return err
		}
	}
	f.filters = cfg.SavedFilters
	return nil
}

func (f *savedFiltersFilter) Apply(_ context.Context, deps Deps, r *procurement.Records) (*procurement.Records, Step, error) {
	initial := r.Len()

	res := criteria.Apply(r.Items, f.filters)
	f.included = res.IncludedCount
	f.excluded = res.ExcludedCount

	if initial != len(res.Filtered) {
		deps.Logger.Info("saved filters applied",
			zap.Strings("filters", f.applied()),
			zap.Int("included", res.IncludedCount),
			zap.Int("excluded", res.ExcludedCount),
		)
	}

	next := procurement.NewRecords(res.Filtered)
	return next, newStep(initial, next), nil
}

func (f *savedFiltersFilter) applied() []string {
	var names []string
	for _, sf := range f.filters {
		if sf.Applies() {
			names = append(names, fmt.Sprintf("%s:%s", sf.Mode, sf.Name))
		}
	}
	return names
}

func (f *savedFiltersFilter) Status() Status {
	details := map[string]string{
		"included": strconv.Itoa(f.included),
		"excluded": strconv.Itoa(f.excluded),
	}
	if names := f.applied(); len(names) > 0 {
		details["filters"] = strings.Join(names, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
