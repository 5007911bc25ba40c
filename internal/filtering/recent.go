package filtering

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/procurement"
)

type recentFilter struct {
	toggle
	since time.Time
}

// NewRecent creates a filter that removes records published before the
// configured cutoff. Records without a publication date are kept.
func NewRecent() Filter {
	return &recentFilter{}
}

func (f *recentFilter) Name() string { return "recent" }

func (f *recentFilter) Validate(cfg *Config) error {
	f.since = time.Time{}
	if cfg != nil {
		f.since = cfg.Since
	}
	return nil
}

func (f *recentFilter) Apply(_ context.Context, deps Deps, r *procurement.Records) (*procurement.Records, Step, error) {
	initial := r.Len()
	if f.since.IsZero() {
		return r, newStep(initial, r), nil
	}

	kept := make([]*procurement.Record, 0, initial)
	var old []string
	for _, record := range r.Items {
		if !record.PublicationDate.IsZero() && record.PublicationDate.Before(f.since) {
			old = append(old, record.Key())
			continue
		}
		kept = append(kept, record)
	}

	if len(old) > 0 {
		deps.Logger.Debug("excluding records published before cutoff",
			zap.Time("since", f.since),
			zap.Strings("excluded_records", old),
		)
	}

	next := procurement.NewRecords(kept)
	return next, newStep(initial, next), nil
}

func (f *recentFilter) Status() Status {
	details := map[string]string{}
	if !f.since.IsZero() {
		details["since"] = f.since.Format(time.RFC3339)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
