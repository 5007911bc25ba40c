// Package classify combines the local sector matcher with an optional external
// classifier that can rescue records the matcher rejected.
package classify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/licita-radar/internal/ai"
	"github.com/spigell/licita-radar/internal/logger"
	"github.com/spigell/licita-radar/internal/procurement"
	"github.com/spigell/licita-radar/internal/sector"
)

const defaultTimeout = 20 * time.Second

// SemanticMatcher is the synchronous relevance check, usually *sector.Matcher.
type SemanticMatcher interface {
	Matches(record *procurement.Record, ks sector.KeywordSet) bool
}

// Options control when and how the external classifier is consulted.
type Options struct {
	// UseExternal enables the external classifier for rejected records.
	UseExternal bool `mapstructure:"use-external"`
	// Timeout bounds every external call.
	Timeout time.Duration `mapstructure:"timeout"`
	// Concurrency is the number of parallel external calls. 1 is sequential.
	Concurrency int `mapstructure:"concurrency"`
	// MaxExternalCalls caps external calls per ClassifyAll. 0 means no cap.
	MaxExternalCalls int `mapstructure:"max-external-calls"`
}

// Hybrid classifies records with the semantic matcher first and asks the
// external classifier only about records the matcher rejected.
type Hybrid struct {
	semantic SemanticMatcher
	external ai.Classifier
	sectors  []string
	opts     Options
	logger   *zap.Logger
}

// New builds a Hybrid. A nil external classifier disables external calls
// regardless of opts.UseExternal.
func New(semantic SemanticMatcher, external ai.Classifier, sectors []string, opts Options, log *zap.Logger) *Hybrid {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hybrid{
		semantic: semantic,
		external: external,
		sectors:  sectors,
		opts:     opts,
		logger:   log,
	}
}

func (h *Hybrid) externalEnabled() bool {
	return h.opts.UseExternal && h.external != nil && len(h.sectors) > 0
}

// Classify reports whether record is relevant for ks.
func (h *Hybrid) Classify(ctx context.Context, record *procurement.Record, ks sector.KeywordSet) bool {
	if ks.Empty() {
		return true
	}

	semantic := h.matchSemantic(record, ks)
	if semantic || !h.externalEnabled() {
		return semantic
	}

	return resolve(semantic, h.consult(ctx, record).Verdict)
}

// Stats summarizes a ClassifyAll run.
type Stats struct {
	Total int
	// Semantic is the number of records accepted by the semantic matcher.
	Semantic int
	// Consulted is the number of external calls made.
	Consulted int
	// Rescued records were rejected by the matcher and accepted externally.
	Rescued int
	// Confirmed records were rejected by both.
	Confirmed int
	// Inconclusive external answers, including errors and timeouts.
	Inconclusive int
	// Skipped rejected records left unchecked because of MaxExternalCalls.
	Skipped int
	// Rejected holds the records the external classifier turned down.
	Rejected []*procurement.Record
}

// ClassifyAll runs the semantic matcher over every record and then consults the
// external classifier for the rejected ones, capped by MaxExternalCalls and
// fanned out up to Concurrency. The accepted records keep their input order.
func (h *Hybrid) ClassifyAll(ctx context.Context, records []*procurement.Record, ks sector.KeywordSet) (*procurement.Records, *Stats) {
	stats := &Stats{Total: len(records)}

	if ks.Empty() {
		stats.Semantic = len(records)
		return procurement.NewRecords(append([]*procurement.Record(nil), records...)), stats
	}

	accepted := make([]bool, len(records))
	var doubtful []int
	for i, r := range records {
		if h.matchSemantic(r, ks) {
			accepted[i] = true
			stats.Semantic++
			continue
		}
		doubtful = append(doubtful, i)
	}

	if h.externalEnabled() && len(doubtful) > 0 {
		if limit := h.opts.MaxExternalCalls; limit > 0 && len(doubtful) > limit {
			stats.Skipped = len(doubtful) - limit
			doubtful = doubtful[:limit]
		}

		verdicts := make([]ai.Verdict, len(doubtful))
		var g errgroup.Group
		g.SetLimit(h.opts.Concurrency)
		for n, idx := range doubtful {
			g.Go(func() error {
				verdicts[n] = h.consult(ctx, records[idx]).Verdict
				return nil
			})
		}
		// consult never returns an error.
		_ = g.Wait()

		stats.Consulted = len(doubtful)
		for n, idx := range doubtful {
			switch verdicts[n] {
			case ai.Match:
				accepted[idx] = true
				stats.Rescued++
			case ai.NoMatch:
				stats.Confirmed++
				stats.Rejected = append(stats.Rejected, records[idx])
			default:
				stats.Inconclusive++
			}
		}
	}

	kept := make([]*procurement.Record, 0, len(records))
	for i, r := range records {
		if accepted[i] {
			kept = append(kept, r)
		}
	}

	h.logger.Info("relevance classification finished",
		zap.Int("total", stats.Total),
		zap.Int("semantic", stats.Semantic),
		zap.Int("consulted", stats.Consulted),
		zap.Int("rescued", stats.Rescued),
		zap.Int("inconclusive", stats.Inconclusive),
		zap.Int("skipped", stats.Skipped),
	)

	return procurement.NewRecords(kept), stats
}

// matchSemantic turns a panicking evaluation into a non-match.
func (h *Hybrid) matchSemantic(record *procurement.Record, ks sector.KeywordSet) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("semantic matcher panicked",
				append(logger.RecordFields(record), zap.Any("panic", r))...)
			ok = false
		}
	}()
	return h.semantic.Matches(record, ks)
}

// consult asks the external classifier under the configured timeout. Errors,
// panics and timeouts are reported as an inconclusive assessment.
func (h *Hybrid) consult(ctx context.Context, record *procurement.Record) *ai.Assessment {
	inconclusive := &ai.Assessment{Verdict: ai.Inconclusive}
	fields := logger.RecordFields(record)

	subject := record.SubjectText()
	if subject == "" {
		return inconclusive
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	type result struct {
		assessment *ai.Assessment
		err        error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("external classifier panicked: %v", r)}
			}
		}()
		a, err := h.external.Classify(ctx, subject, h.sectors)
		done <- result{assessment: a, err: err}
	}()

	select {
	case <-ctx.Done():
		h.logger.Warn("external classifier timed out", append(fields, zap.Error(ctx.Err()))...)
		return inconclusive
	case res := <-done:
		if res.err != nil {
			h.logger.Warn("external classifier failed", append(fields, zap.Error(res.err))...)
			return inconclusive
		}
		if res.assessment == nil {
			return inconclusive
		}
		h.logger.Debug("external classifier verdict", append(fields,
			zap.String("verdict", res.assessment.Verdict.String()),
			zap.Float64("confidence", res.assessment.Confidence),
			zap.String("reason", res.assessment.Reason),
		)...)
		return res.assessment
	}
}

func resolve(semantic bool, verdict ai.Verdict) bool {
	switch verdict {
	case ai.Match:
		return true
	case ai.NoMatch:
		return false
	default:
		return semantic
	}
}
