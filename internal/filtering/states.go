package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/procurement"
	"github.com/spigell/licita-radar/internal/sector"
)

type statesFilter struct {
	toggle
	profile *sector.Profile
}

// NewStatesOfInterest creates a filter that removes records from states outside
// the profile. An empty state list or the Nacional entry keeps everything.
func NewStatesOfInterest() Filter {
	return &statesFilter{}
}

func (f *statesFilter) Name() string { return "states_of_interest" }

func (f *statesFilter) Validate(cfg *Config) error {
	f.profile = nil
	if cfg != nil {
		f.profile = cfg.Profile
	}
	return nil
}

func (f *statesFilter) Apply(_ context.Context, deps Deps, r *procurement.Records) (*procurement.Records, Step, error) {
	initial := r.Len()
	if f.profile == nil || f.profile.IsNational() {
		return r, newStep(initial, r), nil
	}

	kept := make([]*procurement.Record, 0, initial)
	for _, record := range r.Items {
		if f.profile.AcceptsState(record.StateCode) {
			kept = append(kept, record)
		}
	}

	next := procurement.NewRecords(kept)
	if dropped := initial - next.Len(); dropped > 0 {
		deps.Logger.Debug("excluding records outside states of interest",
			zap.Strings("states", f.profile.States),
			zap.Int("excluded", dropped),
		)
	}

	return next, newStep(initial, next), nil
}

func (f *statesFilter) Status() Status {
	details := map[string]string{}
	if f.profile != nil && len(f.profile.States) > 0 {
		details["states"] = strings.Join(f.profile.States, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
