package classify

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/licita-radar/internal/ai"
	"github.com/spigell/licita-radar/internal/procurement"
	"github.com/spigell/licita-radar/internal/sector"
)

// semanticFunc accepts records whose subject contains "obra" and panics on
// subjects containing "panic".
type semanticFunc struct {
	calls atomic.Int32
}

func (s *semanticFunc) Matches(record *procurement.Record, _ sector.KeywordSet) bool {
	s.calls.Add(1)
	if strings.Contains(record.Subject, "panic") {
		panic("boom")
	}
	return strings.Contains(record.Subject, "obra")
}

type stubClassifier struct {
	mu       sync.Mutex
	verdicts map[string]ai.Verdict
	err      error
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  int32
	subjects []string
}

func (s *stubClassifier) Classify(ctx context.Context, subject string, sectors []string) (*ai.Assessment, error) {
	s.calls.Add(1)
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	s.mu.Lock()
	if current > s.maxSeen {
		s.maxSeen = current
	}
	s.subjects = append(s.subjects, subject)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if strings.Contains(subject, "explode") {
		panic("classifier exploded")
	}
	return &ai.Assessment{Verdict: s.verdicts[subject]}, nil
}

func keywords() sector.KeywordSet {
	return sector.KeywordSet{Primary: []string{"obra"}, All: []string{"obra"}}
}

func TestClassifyWithoutKeywordsAcceptsWithoutCalls(t *testing.T) {
	semantic := &semanticFunc{}
	external := &stubClassifier{}
	h := New(semantic, external, []string{"Obras"}, Options{UseExternal: true}, zap.NewNop())

	if !h.Classify(context.Background(), &procurement.Record{Subject: "qualquer"}, sector.KeywordSet{}) {
		t.Fatal("expected accept when no keywords are configured")
	}
	if semantic.calls.Load() != 0 || external.calls.Load() != 0 {
		t.Fatalf("expected no calls, got semantic=%d external=%d", semantic.calls.Load(), external.calls.Load())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		subject     string
		useExternal bool
		verdict     ai.Verdict
		err         error
		expect      bool
		calls       int32
	}{
		{name: "semantic match skips external", subject: "obra de ponte", useExternal: true, expect: true, calls: 0},
		{name: "semantic reject without external", subject: "merenda", useExternal: false, expect: false, calls: 0},
		{name: "external rescues", subject: "merenda", useExternal: true, verdict: ai.Match, expect: true, calls: 1},
		{name: "external confirms", subject: "merenda", useExternal: true, verdict: ai.NoMatch, expect: false, calls: 1},
		{name: "inconclusive falls back", subject: "merenda", useExternal: true, verdict: ai.Inconclusive, expect: false, calls: 1},
		{name: "network error falls back", subject: "merenda", useExternal: true, err: errors.New("connection reset"), expect: false, calls: 1},
		{name: "classifier panic falls back", subject: "explode", useExternal: true, verdict: ai.Match, expect: false, calls: 1},
		{name: "semantic panic is a reject", subject: "panic", useExternal: false, expect: false, calls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			external := &stubClassifier{verdicts: map[string]ai.Verdict{tt.subject: tt.verdict}, err: tt.err}
			h := New(&semanticFunc{}, external, []string{"Obras"}, Options{UseExternal: tt.useExternal}, zap.NewNop())

			got := h.Classify(context.Background(), &procurement.Record{ID: "1", Subject: tt.subject}, keywords())
			if got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
			if external.calls.Load() != tt.calls {
				t.Fatalf("expected %d external calls, got %d", tt.calls, external.calls.Load())
			}
		})
	}
}

func TestClassifyTimeoutFallsBack(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	external := &stubClassifier{verdicts: map[string]ai.Verdict{"merenda": ai.Match}, delay: time.Second}
	h := New(&semanticFunc{}, external, []string{"Obras"}, Options{UseExternal: true, Timeout: 10 * time.Millisecond}, zap.New(core))

	if h.Classify(context.Background(), &procurement.Record{ID: "1", Subject: "merenda"}, keywords()) {
		t.Fatal("expected timeout to fall back to the semantic result")
	}
	if observed.FilterMessageSnippet("external classifier").Len() != 1 {
		t.Fatalf("expected one warning, got %v", observed.All())
	}
}

func TestClassifyWithoutExternalClassifier(t *testing.T) {
	h := New(&semanticFunc{}, nil, []string{"Obras"}, Options{UseExternal: true}, nil)
	if h.Classify(context.Background(), &procurement.Record{Subject: "merenda"}, keywords()) {
		t.Fatal("expected reject when no external classifier is configured")
	}
}

func batch() []*procurement.Record {
	return []*procurement.Record{
		{ID: "1", Subject: "obra de ponte"},
		{ID: "2", Subject: "merenda"},
		{ID: "3", Subject: "obra de escola"},
		{ID: "4", Subject: "asfalto urbano"},
		{ID: "5", Subject: "papelaria"},
		{ID: "6", Subject: "panic"},
	}
}

func TestClassifyAll(t *testing.T) {
	external := &stubClassifier{verdicts: map[string]ai.Verdict{
		"merenda":        ai.NoMatch,
		"asfalto urbano": ai.Match,
	}}
	h := New(&semanticFunc{}, external, []string{"Obras"}, Options{UseExternal: true, Concurrency: 3}, zap.NewNop())

	records, stats := h.ClassifyAll(context.Background(), batch(), keywords())

	if got := records.Keys(); !reflect.DeepEqual(got, []string{"1", "3", "4"}) {
		t.Fatalf("expected [1 3 4], got %v", got)
	}
	if stats.Total != 6 || stats.Semantic != 2 || stats.Consulted != 4 || stats.Rescued != 1 || stats.Confirmed != 1 || stats.Inconclusive != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.Rejected) != 1 || stats.Rejected[0].ID != "2" {
		t.Fatalf("unexpected rejected records: %v", stats.Rejected)
	}
}

func TestClassifyAllCapsExternalCalls(t *testing.T) {
	external := &stubClassifier{verdicts: map[string]ai.Verdict{"merenda": ai.Match, "asfalto urbano": ai.Match}}
	h := New(&semanticFunc{}, external, []string{"Obras"}, Options{UseExternal: true, MaxExternalCalls: 1}, zap.NewNop())

	records, stats := h.ClassifyAll(context.Background(), batch(), keywords())

	if external.calls.Load() != 1 {
		t.Fatalf("expected 1 external call, got %d", external.calls.Load())
	}
	if stats.Skipped != 3 {
		t.Fatalf("expected 3 skipped, got %d", stats.Skipped)
	}
	// The cap keeps the earliest rejected records.
	if got := records.Keys(); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Fatalf("expected [1 2 3], got %v", got)
	}
}

func TestClassifyAllBoundsConcurrency(t *testing.T) {
	records := make([]*procurement.Record, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, &procurement.Record{ID: string(rune('a' + i)), Subject: "merenda " + string(rune('a'+i))})
	}
	external := &stubClassifier{delay: 5 * time.Millisecond}
	h := New(&semanticFunc{}, external, []string{"Obras"}, Options{UseExternal: true, Concurrency: 2}, zap.NewNop())

	h.ClassifyAll(context.Background(), records, keywords())

	if external.calls.Load() != 12 {
		t.Fatalf("expected 12 calls, got %d", external.calls.Load())
	}
	if external.maxSeen > 2 {
		t.Fatalf("expected at most 2 calls in flight, saw %d", external.maxSeen)
	}
}

func TestClassifyAllWithoutKeywords(t *testing.T) {
	semantic := &semanticFunc{}
	h := New(semantic, &stubClassifier{}, []string{"Obras"}, Options{UseExternal: true}, zap.NewNop())

	records, stats := h.ClassifyAll(context.Background(), batch(), sector.KeywordSet{})
	if records.Len() != 6 || stats.Semantic != 6 {
		t.Fatalf("expected everything accepted, got %d (%+v)", records.Len(), stats)
	}
	if semantic.calls.Load() != 0 {
		t.Fatalf("expected no semantic calls, got %d", semantic.calls.Load())
	}
}
