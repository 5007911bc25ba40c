package criteria

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/licita-radar/internal/textnorm"
)

// criteriaAliases maps normalized key spellings, including the legacy
// portuguese ones, to the canonical mapstructure keys of Criteria.
var criteriaAliases = map[string]string{
	"keywords":      "keywords",
	"palavraschave": "keywords",
	"termos":        "keywords",

	"states":  "states",
	"ufs":     "states",
	"uf":      "states",
	"estados": "states",

	"modalities":  "modalities",
	"modalidades": "modalities",
	"modalidade":  "modalities",

	"valuemin":    "value-min",
	"valorminimo": "value-min",
	"valormin":    "value-min",

	"valuemax":    "value-max",
	"valormaximo": "value-max",
	"valormax":    "value-max",

	"organizations": "organizations",
	"orgaos":        "organizations",
	"orgao":         "organizations",

	"categorycodes": "category-codes",
	"cnaes":         "category-codes",
	"cnae":          "category-codes",
}

var filterAliases = map[string]string{
	"id":                     "id",
	"name":                   "name",
	"nome":                   "name",
	"mode":                   "mode",
	"modo":                   "mode",
	"tipo":                   "mode",
	"active":                 "active",
	"ativo":                  "active",
	"autoapply":              "auto-apply",
	"aplicarautomaticamente": "auto-apply",
	"criteria":               "criteria",
	"criterios":              "criteria",
}

// FromMap converts a loosely shaped criteria object into Criteria. Keys may use
// camelCase, snake_case, kebab-case or the legacy portuguese names. List fields
// accept a list or a comma separated string. Amounts accept numbers and
// brazilian formatted strings such as "R$ 1.500,00". Unknown keys are ignored.
func FromMap(m map[string]any) (Criteria, error) {
	var c Criteria
	if len(m) == 0 {
		return c, nil
	}

	if err := decode(canonicalKeys(m, criteriaAliases), &c); err != nil {
		return Criteria{}, fmt.Errorf("failed to decode criteria: %w", err)
	}

	c.Keywords = cleanList(c.Keywords)
	c.States = cleanList(c.States)
	c.Modalities = cleanList(c.Modalities)
	c.Organizations = cleanList(c.Organizations)
	c.CategoryCodes = cleanList(c.CategoryCodes)

	return c, nil
}

// FilterFromMap converts a loosely shaped saved filter into SavedFilter. A
// missing mode defaults to include. Missing active and auto-apply flags default
// to true so that filters written by hand in a config file take effect.
func FilterFromMap(m map[string]any) (SavedFilter, error) {
	f := SavedFilter{Mode: ModeInclude, Active: true, AutoApply: true}

	canon := canonicalKeys(m, filterAliases)
	raw, hasCriteria := canon["criteria"]
	delete(canon, "criteria")

	if err := decode(canon, &f); err != nil {
		return SavedFilter{}, fmt.Errorf("failed to decode filter: %w", err)
	}
	f.Mode = Mode(strings.ToLower(strings.TrimSpace(string(f.Mode))))
	switch f.Mode {
	case "incluir", "":
		f.Mode = ModeInclude
	case "excluir":
		f.Mode = ModeExclude
	}

	if hasCriteria && raw != nil {
		cm, ok := raw.(map[string]any)
		if !ok {
			return SavedFilter{}, fmt.Errorf("filter %q: criteria must be an object, got %T", f.Name, raw)
		}
		c, err := FromMap(cm)
		if err != nil {
			return SavedFilter{}, fmt.Errorf("filter %q: %w", f.Name, err)
		}
		f.Criteria = c
	}

	if err := f.Validate(); err != nil {
		return SavedFilter{}, err
	}

	return f, nil
}

// FiltersFromMaps converts a list of loosely shaped filters.
func FiltersFromMaps(items []map[string]any) ([]SavedFilter, error) {
	filters := make([]SavedFilter, 0, len(items))
	for i, item := range items {
		f, err := FilterFromMap(item)
		if err != nil {
			return nil, fmt.Errorf("filter #%d: %w", i, err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func decode(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			amountHook,
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func canonicalKeys(m map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if canonical, ok := aliases[aliasKey(k)]; ok {
			out[canonical] = v
		}
	}
	return out
}

func aliasKey(k string) string {
	return strings.ReplaceAll(textnorm.Normalize(strings.NewReplacer("-", "", "_", "").Replace(k)), " ", "")
}

// amountHook parses strings into amounts when the target is a float or a float
// pointer, accepting both "1500.50" and "R$ 1.500,50". An empty string leaves
// a pointer nil.
func amountHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	pointer := to.Kind() == reflect.Ptr && to.Elem().Kind() == reflect.Float64
	if to.Kind() != reflect.Float64 && !pointer {
		return data, nil
	}

	s := strings.TrimSpace(data.(string))
	if s == "" {
		if pointer {
			return nil, nil
		}
		return float64(0), nil
	}
	return parseAmount(s)
}

var thousandsRe = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	s = strings.ReplaceAll(s, " ", "")
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case thousandsRe.MatchString(s):
		// "1.500" and "1.500.000" are brazilian thousands, not decimals.
		s = strings.ReplaceAll(s, ".", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func cleanList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
