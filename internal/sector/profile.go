// Package sector turns a company profile into keywords and scores procurement
// records against them.
package sector

import (
	"strings"

	"github.com/spigell/licita-radar/internal/textnorm"
)

// NationalScope is the state entry meaning every state is of interest.
const NationalScope = "Nacional"

// Sector is a business activity declared by the company.
type Sector struct {
	Name       string   `mapstructure:"name" json:"name"`
	SubSectors []string `mapstructure:"sub-sectors" json:"subSectors,omitempty"`
}

// Profile is the read-only company profile consumed by the engine.
type Profile struct {
	PrincipalCategoryCode  string              `mapstructure:"principal-category-code" json:"principalCategoryCode,omitempty"`
	SecondaryCategoryCodes []string            `mapstructure:"secondary-category-codes" json:"secondaryCategoryCodes,omitempty"`
	Sectors                []Sector            `mapstructure:"sectors" json:"sectors,omitempty"`
	States                 []string            `mapstructure:"states" json:"states,omitempty"`
	Synonyms               map[string][]string `mapstructure:"synonyms" json:"synonyms,omitempty"`
}

// SectorNames returns the declared sector names, followed by their sub-sectors in parentheses.
func (p *Profile) SectorNames() []string {
	names := make([]string, 0, len(p.Sectors))
	for _, s := range p.Sectors {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		subs := make([]string, 0, len(s.SubSectors))
		for _, sub := range s.SubSectors {
			if sub = strings.TrimSpace(sub); sub != "" {
				subs = append(subs, sub)
			}
		}
		if len(subs) > 0 {
			name += " (" + strings.Join(subs, ", ") + ")"
		}
		names = append(names, name)
	}
	return names
}

// CategoryCodes returns the principal and secondary CNAE codes.
func (p *Profile) CategoryCodes() []string {
	codes := make([]string, 0, len(p.SecondaryCategoryCodes)+1)
	if code := strings.TrimSpace(p.PrincipalCategoryCode); code != "" {
		codes = append(codes, code)
	}
	for _, code := range p.SecondaryCategoryCodes {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// AcceptsState reports whether a record published in state is of interest.
// An empty list or the Nacional entry accepts every state.
func (p *Profile) AcceptsState(state string) bool {
	if len(p.States) == 0 {
		return true
	}

	state = strings.ToUpper(strings.TrimSpace(state))
	national := textnorm.Normalize(NationalScope)
	for _, s := range p.States {
		if textnorm.Normalize(s) == national {
			return true
		}
		if strings.ToUpper(strings.TrimSpace(s)) == state && state != "" {
			return true
		}
	}
	return false
}

// IsNational reports whether the profile covers every state.
func (p *Profile) IsNational() bool {
	for _, s := range p.States {
		if textnorm.Normalize(s) == textnorm.Normalize(NationalScope) {
			return true
		}
	}
	return len(p.States) == 0
}
