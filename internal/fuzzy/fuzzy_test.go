package fuzzy

import (
	"math"
	"testing"

	"github.com/spigell/licita-radar/internal/textnorm"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   string
		expect float64
	}{
		{name: "identical after normalization", a: "Pavimentação", b: "pavimentacao", expect: 1},
		{name: "containment", a: "abc", b: "abcdef", expect: 0.9},
		{name: "containment reversed", a: "abcdef", b: "abc", expect: 0.9},
		{name: "tiny string inside long text", a: "ti", b: "servicos de ti e suporte", expect: 0.9},
		{name: "short strings differ", a: "ab", b: "ac", expect: 0},
		{name: "empty against text", a: "", b: "obra", expect: 0},
		{name: "both empty", a: "", b: "", expect: 1},
		{name: "one substitution", a: "limpeza", b: "limpesa", expect: 1 - 1.0/7},
		{name: "levenshtein", a: "kitten", b: "sitting", expect: 1 - 3.0/7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.expect) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestContainsTerm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		term      string
		threshold float64
		expect    bool
	}{
		{name: "exact substring", text: "construção de pontes e viadutos", term: "pontes", threshold: 0.6, expect: true},
		{name: "accent insensitive", text: "Pavimentação asfáltica", term: "PAVIMENTACAO", threshold: 0.6, expect: true},
		{name: "short term substring", text: "serviços de TI", term: "ti", threshold: 0.6, expect: true},
		{name: "short term never fuzzy", text: "serviços de limpeza", term: "xy", threshold: 0.1, expect: false},
		{name: "typo in single word", text: "serviços de limpeza urbana", term: "limpesa", threshold: 0.6, expect: true},
		{name: "typo rejected by strict threshold", text: "serviços de limpeza urbana", term: "limpesa", threshold: 0.9, expect: false},
		{name: "multi word term", text: "construção de pontes", term: "ponte construida", threshold: 0.6, expect: true},
		{name: "unrelated", text: "fornecimento de merenda escolar", term: "pavimentação", threshold: 0.6, expect: false},
		{name: "empty term", text: "qualquer coisa", term: "", threshold: 0.6, expect: false},
		{name: "empty text", text: "", term: "obra", threshold: 0.6, expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ContainsTerm(tt.text, tt.term, tt.threshold); got != tt.expect {
				t.Fatalf("ContainsTerm(%q, %q, %v): expected %v, got %v", tt.text, tt.term, tt.threshold, tt.expect, got)
			}
		})
	}
}

func TestCoversSignificantWords(t *testing.T) {
	m := NewMatcher(Options{CoverageRatio: 0.6})
	text := "manutencao de elevadores do predio central"

	tests := []struct {
		name   string
		words  []string
		expect bool
	}{
		{name: "two of three", words: []string{"manutencao", "corretiva", "elevadores"}, expect: true},
		{name: "one of three", words: []string{"reforma", "corretiva", "elevadores"}, expect: false},
		{name: "single significant word", words: []string{"de", "elevadores"}, expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.coversSignificantWords(text, tt.words); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

var propertyPairs = []struct{ text, term string }{
	{"Construção de pontes e viadutos", "pontes"},
	{"Aquisição de medicamentos hospitalares", "medicamento"},
	{"Serviços de limpeza urbana", "limpesa"},
	{"Fornecimento de merenda escolar", "merendas escolares"},
	{"Locação de veículos", "locacao de veiculo pesado"},
	{"Manutenção predial preventiva e corretiva", "manutenção corretiva predial"},
	{"Obras de drenagem pluvial", "pavimentação"},
	{"Pregão eletrônico para TI", "tecnologia da informacao"},
	{"Leilão de bens inservíveis", "leilao"},
}

func TestContainsTermNormalizationInvariance(t *testing.T) {
	for _, pair := range propertyPairs {
		raw := ContainsTerm(pair.text, pair.term, DefaultThreshold)
		normalized := ContainsTerm(textnorm.Normalize(pair.text), textnorm.Normalize(pair.term), DefaultThreshold)
		if raw != normalized {
			t.Fatalf("normalization changed the verdict for %q / %q", pair.text, pair.term)
		}
	}
}

func TestContainsTermThresholdMonotonicity(t *testing.T) {
	thresholds := []float64{0, 0.05, 0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1}

	for _, pair := range propertyPairs {
		matchedBefore := true
		for _, threshold := range thresholds {
			matched := ContainsTerm(pair.text, pair.term, threshold)
			if matched && !matchedBefore {
				t.Fatalf("raising threshold to %v turned a non-match into a match for %q / %q", threshold, pair.text, pair.term)
			}
			matchedBefore = matched
		}
	}
}

func TestContainsTermZeroThreshold(t *testing.T) {
	if !ContainsTerm("abcdefgh", "abcdxyzw", 0) {
		t.Fatal("expected threshold 0 to accept a half similar word")
	}

	if got := NewMatcher(DefaultOptions().WithThreshold(0)).Options().Threshold; got != 0 {
		t.Fatalf("expected explicit zero threshold to be kept, got %v", got)
	}
	if got := NewMatcher(Options{}).Options().Threshold; got != DefaultThreshold {
		t.Fatalf("expected unset threshold to default to %v, got %v", DefaultThreshold, got)
	}
	if got := NewMatcher(Options{}.WithThreshold(-1)).Options().Threshold; got != DefaultThreshold {
		t.Fatalf("expected negative threshold to default to %v, got %v", DefaultThreshold, got)
	}
}

func TestNewMatcherFillsDefaults(t *testing.T) {
	opts := NewMatcher(Options{Threshold: 0.8}).Options()
	if opts.Threshold != 0.8 {
		t.Fatalf("expected threshold to be kept, got %v", opts.Threshold)
	}
	if opts.ShortTermLength != 2 || opts.FuzzyWordLength != 3 || opts.WholeStringLength != 5 || opts.CoverageTermLength != 8 {
		t.Fatalf("expected default length cutoffs, got %+v", opts)
	}
	if opts.CoverageRatio != 0.7 {
		t.Fatalf("expected default coverage ratio, got %v", opts.CoverageRatio)
	}
}
