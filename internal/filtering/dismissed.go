package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/procurement"
)

type dismissedFilter struct {
	toggle
	path string
}

// NewDismissed creates a filter that removes records listed in the dismissed file.
func NewDismissed() Filter {
	return &dismissedFilter{}
}

func (f *dismissedFilter) Name() string { return "dismissed" }

func (f *dismissedFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.DismissedFile)
	}
	return nil
}

func (f *dismissedFilter) Apply(_ context.Context, deps Deps, r *procurement.Records) (*procurement.Records, Step, error) {
	initial := r.Len()
	if f.path == "" {
		return r, newStep(initial, r), nil
	}

	dismissed, err := procurement.GetDismissedFromFile(f.path)
	if err != nil {
		return r, Step{}, fmt.Errorf("getting dismissed records from file: %w", err)
	}

	removed := r.Exclude(procurement.RecordKeyField, dismissed.Keys())
	if len(removed) > 0 {
		deps.Logger.Info("excluding records based on dismissed file",
			zap.String("path", f.path),
			zap.Strings("excluded_records", removed),
			zap.Int("records_left", r.Len()),
		)
	}

	return r, newStep(initial, r), nil
}

func (f *dismissedFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
