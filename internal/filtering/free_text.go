package filtering

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/procurement"
)

type freeTextFilter struct {
	toggle
	terms []string
}

// NewFreeText creates a filter that keeps records matching any search term.
func NewFreeText() Filter {
	return &freeTextFilter{}
}

func (f *freeTextFilter) Name() string { return "free_text" }

func (f *freeTextFilter) Validate(cfg *Config) error {
	f.terms = nil
	if cfg != nil {
		f.terms = cfg.Terms
	}
	return nil
}

func (f *freeTextFilter) Apply(_ context.Context, deps Deps, r *procurement.Records) (*procurement.Records, Step, error) {
	initial := r.Len()
	if len(f.terms) == 0 {
		return r, newStep(initial, r), nil
	}
	if deps.Scanner == nil {
		return r, Step{}, errors.New("scanner is required for free text search")
	}

	next := procurement.NewRecords(deps.Scanner.Filter(r.Items, f.terms))
	deps.Logger.Debug("free text search",
		zap.Strings("terms", f.terms),
		zap.Int("matched", next.Len()),
	)

	return next, newStep(initial, next), nil
}

func (f *freeTextFilter) Status() Status {
	details := map[string]string{}
	if len(f.terms) > 0 {
		details["terms"] = strings.Join(f.terms, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
