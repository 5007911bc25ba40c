// Package filtering runs the ordered pipeline that narrows fetched records down
// to the ones worth showing.
package filtering

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/classify"
	"github.com/spigell/licita-radar/internal/criteria"
	"github.com/spigell/licita-radar/internal/procurement"
	"github.com/spigell/licita-radar/internal/search"
	"github.com/spigell/licita-radar/internal/sector"
)

// Filter represents a single filtering step applied to records.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, r *procurement.Records) (*procurement.Records, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger     *zap.Logger
	Classifier *classify.Hybrid
	Keywords   sector.KeywordSet
	Scanner    *search.Scanner
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

func newStep(initial int, r *procurement.Records) Step {
	return Step{Initial: initial, Dropped: initial - r.Len(), Left: r.Len()}
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	Profile       *sector.Profile
	SavedFilters  []criteria.SavedFilter
	Terms         []string
	Since         time.Time
	DismissedFile string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// rejectionCollector is implemented by filters whose rejections should be
// remembered in the dismissed file.
type rejectionCollector interface {
	Rejected() []*procurement.Record
}

// Default returns every filter in execution order. Cheap filters run first so
// the relevance step sees as few records as possible.
func Default() []Filter {
	return []Filter{
		NewDismissed(),
		NewRecent(),
		NewStatesOfInterest(),
		NewSavedFilters(),
		NewFreeText(),
		NewRelevance(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially. It returns the surviving
// records and the records rejected by steps that collect rejections.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, r *procurement.Records) (*procurement.Records, []*procurement.Record, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	var rejected []*procurement.Record
	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, r)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		r = next

		if collector, ok := step.(rejectionCollector); ok {
			rejected = append(rejected, collector.Rejected()...)
		}
	}

	return r, rejected, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle is embedded by filters that can be switched off.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }
