package sector

import (
	"sort"

	"github.com/spigell/licita-radar/internal/textnorm"
)

// SynonymGroup is a root term and the terms considered equivalent to it.
type SynonymGroup struct {
	Root     string
	Synonyms []string
}

// SynonymTable is a read-only list of synonym groups.
type SynonymTable []SynonymGroup

// DefaultSynonyms is the built-in procurement vocabulary. Terms shorter than
// three characters are left out since they match inside unrelated words.
var DefaultSynonyms = SynonymTable{
	// Obras e engenharia
	{Root: "construção civil", Synonyms: []string{"obra", "edificação", "execução de obra", "engenharia civil"}},
	{Root: "pavimentação", Synonyms: []string{"asfalto", "recapeamento", "calçamento", "tapa-buraco", "pavimento"}},
	{Root: "reforma", Synonyms: []string{"adequação predial", "recuperação", "restauração", "revitalização"}},
	{Root: "saneamento", Synonyms: []string{"esgoto", "drenagem", "abastecimento de água", "rede coletora"}},
	{Root: "manutenção predial", Synonyms: []string{"conservação predial", "manutenção preventiva", "manutenção corretiva"}},

	// Serviços
	{Root: "limpeza", Synonyms: []string{"higienização", "conservação", "asseio", "zeladoria"}},
	{Root: "vigilância", Synonyms: []string{"segurança patrimonial", "monitoramento", "vigilante"}},
	{Root: "transporte", Synonyms: []string{"frete", "locação de veículos", "fretamento", "logística"}},
	{Root: "eventos", Synonyms: []string{"sonorização", "palco", "estrutura para eventos", "buffet"}},

	// Tecnologia
	{Root: "tecnologia da informação", Synonyms: []string{"informática", "software", "hardware", "sistemas", "computadores"}},
	{Root: "telecomunicações", Synonyms: []string{"telefonia", "internet", "link de dados", "fibra óptica"}},

	// Saúde
	{Root: "saúde", Synonyms: []string{"hospitalar", "ambulatorial", "material médico", "insumos hospitalares"}},
	{Root: "medicamentos", Synonyms: []string{"fármacos", "remédios", "insumos farmacêuticos", "medicamento"}},
	{Root: "equipamentos médicos", Synonyms: []string{"equipamento hospitalar", "aparelhos médicos", "material odontológico"}},

	// Suprimentos
	{Root: "alimentação", Synonyms: []string{"merenda", "refeições", "gêneros alimentícios", "alimentos", "hortifrutigranjeiros"}},
	{Root: "combustível", Synonyms: []string{"gasolina", "diesel", "etanol", "abastecimento de frota"}},
	{Root: "material de escritório", Synonyms: []string{"material de expediente", "papelaria", "suprimentos de escritório"}},
	{Root: "mobiliário", Synonyms: []string{"móveis", "cadeiras", "mesas", "armários"}},
	{Root: "uniformes", Synonyms: []string{"vestuário", "fardamento", "confecção"}},
	{Root: "veículos", Synonyms: []string{"automóveis", "viaturas", "ambulâncias", "caminhões", "frota"}},
}

// FromMap builds a table from personalized synonyms keyed by term. Groups are
// ordered by root so expansions are stable across runs.
func FromMap(m map[string][]string) SynonymTable {
	roots := make([]string, 0, len(m))
	for root := range m {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	table := make(SynonymTable, 0, len(m))
	for _, root := range roots {
		table = append(table, SynonymGroup{Root: root, Synonyms: m[root]})
	}
	return table
}

// FindSynonyms returns the terms equivalent to term. When term is listed as a
// synonym, the root and the remaining synonyms of its group are returned.
// Comparison ignores case and accents.
func (t SynonymTable) FindSynonyms(term string) []string {
	key := textnorm.Normalize(term)
	if key == "" {
		return nil
	}

	var result []string
	for _, group := range t {
		if textnorm.Normalize(group.Root) == key {
			result = append(result, group.Synonyms...)
			continue
		}
		for _, syn := range group.Synonyms {
			if textnorm.Normalize(syn) != key {
				continue
			}
			result = append(result, group.Root)
			for _, s := range group.Synonyms {
				if textnorm.Normalize(s) != key {
					result = append(result, s)
				}
			}
			break
		}
	}
	return result
}
