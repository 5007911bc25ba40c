// Package search implements the live free-text search over procurement records.
package search

import (
	"regexp"
	"strings"

	"github.com/spigell/licita-radar/internal/fuzzy"
	"github.com/spigell/licita-radar/internal/procurement"
	"github.com/spigell/licita-radar/internal/textnorm"
)

// fieldGroup extracts a group of texts from a record. Groups are scanned in order.
type fieldGroup struct {
	name   string
	fields func(r *procurement.Record) []string
}

var fieldPriority = []fieldGroup{
	{name: "primary", fields: func(r *procurement.Record) []string {
		return []string{r.Subject, r.OrganizationName, r.ControlNumber, r.Modality}
	}},
	{name: "secondary", fields: func(r *procurement.Record) []string {
		return []string{r.UnitName, r.Municipality, r.StateCode, r.ComplementaryInfo, r.ProcessNumber, r.PurchaseNumber}
	}},
	{name: "metadata", fields: func(r *procurement.Record) []string {
		return []string{
			r.MetadataText(procurement.MetaObject),
			r.MetadataText(procurement.MetaDetailedObject),
			r.MetadataText(procurement.MetaDescription),
			r.MetadataText(procurement.MetaJustification),
		}
	}},
	{name: "line_items", fields: func(r *procurement.Record) []string {
		texts := make([]string, 0, len(r.LineItems)*5)
		for _, item := range r.LineItems {
			texts = append(texts, item.Description, item.Material, item.Service, item.Brand, item.Specification)
		}
		return texts
	}},
}

// Scanner matches search terms against the text fields of a record.
type Scanner struct {
	matcher *fuzzy.Matcher
}

// NewScanner creates a Scanner using the given fuzzy options.
func NewScanner(opts fuzzy.Options) *Scanner {
	return &Scanner{matcher: fuzzy.NewMatcher(opts)}
}

// RecordMatchesTerm reports whether term occurs in any text field of record.
// Fields are scanned by priority and the first hit short-circuits.
func (s *Scanner) RecordMatchesTerm(record *procurement.Record, term string) bool {
	_, ok := s.MatchedGroup(record, term)
	return ok
}

// MatchedGroup returns the name of the field group where term was found.
func (s *Scanner) MatchedGroup(record *procurement.Record, term string) (string, bool) {
	if record == nil || strings.TrimSpace(term) == "" {
		return "", false
	}

	for _, group := range fieldPriority {
		for _, text := range group.fields(record) {
			if text == "" {
				continue
			}
			if s.matcher.ContainsTerm(text, term) {
				return group.name, true
			}
		}
	}

	return "", false
}

// RecordMatchesAny reports whether record matches at least one of terms.
func (s *Scanner) RecordMatchesAny(record *procurement.Record, terms []string) bool {
	for _, term := range terms {
		if s.RecordMatchesTerm(record, term) {
			return true
		}
	}
	return false
}

// Filter returns the records matching any of terms. Without usable terms every
// record is kept.
func (s *Scanner) Filter(records []*procurement.Record, terms []string) []*procurement.Record {
	terms = cleanTerms(terms)
	if len(terms) == 0 {
		return records
	}

	kept := make([]*procurement.Record, 0, len(records))
	for _, record := range records {
		if s.RecordMatchesAny(record, terms) {
			kept = append(kept, record)
		}
	}

	return kept
}

// FilterByFreeText parses raw search input and filters records with the given threshold.
func FilterByFreeText(records []*procurement.Record, raw string, threshold float64) []*procurement.Record {
	scanner := NewScanner(fuzzy.DefaultOptions().WithThreshold(threshold))
	return scanner.Filter(records, ParseTerms(raw))
}

var separators = regexp.MustCompile(`[,\n\r]+`)

// ParseTerms splits raw search input into terms. Commas and line breaks separate
// terms; an entry with spaces is kept as one multi-word phrase.
func ParseTerms(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return cleanTerms(separators.Split(raw, -1))
}

func cleanTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.Join(strings.Fields(term), " ")
		if term == "" {
			continue
		}
		key := textnorm.Normalize(term)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, term)
	}
	return cleaned
}
