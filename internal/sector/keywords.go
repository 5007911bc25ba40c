package sector

import (
	"strings"

	"github.com/spigell/licita-radar/internal/textnorm"
)

// KeywordSet holds the normalized terms derived from a profile.
type KeywordSet struct {
	Primary       []string
	Secondary     []string
	All           []string
	CategoryCodes []string
}

// Empty reports whether no term constrains the match.
func (k KeywordSet) Empty() bool {
	return len(k.All) == 0
}

// BuildKeywordSet derives primary terms from sector names and secondary terms
// from sub-sectors. Personalized synonyms from the profile and the system
// table expand the set each term came from. A term that is both primary and
// secondary stays primary only.
func BuildKeywordSet(profile Profile, system SynonymTable) KeywordSet {
	personalized := FromMap(profile.Synonyms)

	primary := newTermSet()
	secondary := newTermSet()

	expand := func(set *termSet, term string) {
		if !set.add(term) {
			return
		}
		for _, syn := range personalized.FindSynonyms(term) {
			set.add(syn)
		}
		for _, syn := range system.FindSynonyms(term) {
			set.add(syn)
		}
	}

	for _, s := range profile.Sectors {
		expand(primary, s.Name)
		for _, sub := range s.SubSectors {
			expand(secondary, sub)
		}
	}

	ks := KeywordSet{
		Primary:       primary.items,
		CategoryCodes: profile.CategoryCodes(),
	}
	for _, term := range secondary.items {
		if !primary.has(term) {
			ks.Secondary = append(ks.Secondary, term)
		}
	}
	ks.All = make([]string, 0, len(ks.Primary)+len(ks.Secondary))
	ks.All = append(ks.All, ks.Primary...)
	ks.All = append(ks.All, ks.Secondary...)

	return ks
}

type termSet struct {
	seen  map[string]struct{}
	items []string
}

func newTermSet() *termSet {
	return &termSet{seen: make(map[string]struct{})}
}

func (s *termSet) add(term string) bool {
	term = textnorm.Normalize(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	if _, ok := s.seen[term]; ok {
		return false
	}
	s.seen[term] = struct{}{}
	s.items = append(s.items, term)
	return true
}

func (s *termSet) has(term string) bool {
	_, ok := s.seen[term]
	return ok
}
