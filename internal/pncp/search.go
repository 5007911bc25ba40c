package pncp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/licita-radar/internal/procurement"
)

const (
	SearchPath = "/v1/contratacoes/publicacao"
	dateLayout = "20060102"
)

// Modality codes of the PNCP domain tables.
const (
	ModalityLeilaoEletronico   = 1
	ModalityDialogoCompetitivo = 2
	ModalityConcurso           = 3
	ModalityConcorrenciaEletr  = 4
	ModalityConcorrenciaPresen = 5
	ModalityPregaoEletronico   = 6
	ModalityPregaoPresencial   = 7
	ModalityDispensa           = 8
	ModalityInexigibilidade    = 9
	ModalityManifestacao       = 10
	ModalityPreQualificacao    = 11
	ModalityCredenciamento     = 12
	ModalityLeilaoPresencial   = 13
)

// SearchParams is the query of the publication endpoint. One request is made
// per modality since the API requires exactly one. The pncpparam tag is the
// query parameter name; zero values are not sent.
type SearchParams struct {
	From       time.Time     `mapstructure:"-"`
	To         time.Time     `mapstructure:"-"`
	Since      time.Duration `mapstructure:"since"`
	Modalities []int         `mapstructure:"modalities"`
	State      string        `mapstructure:"state" pncpparam:"uf"`
	CityCode   string        `mapstructure:"city-code" pncpparam:"codigoMunicipioIbge"`
	CNPJ       string        `mapstructure:"cnpj" pncpparam:"cnpj"`
	UnitCode   string        `mapstructure:"unit-code" pncpparam:"codigoUnidadeAdministrativa"`
	PerPage    int           `mapstructure:"per-page" pncpparam:"tamanhoPagina"`
}

// DefaultModalities are the competitive modalities a supplier usually bids on.
var DefaultModalities = []int{
	ModalityPregaoEletronico,
	ModalityConcorrenciaEletr,
	ModalityDispensa,
}

// Search returns the records published in the requested window, deduplicated
// by key across modalities.
func (c *Client) Search(ctx context.Context, params *SearchParams) (*procurement.Records, error) {
	if params == nil {
		return nil, errors.New("search params are required")
	}

	p := *params
	if p.To.IsZero() {
		p.To = time.Now()
	}
	if p.From.IsZero() {
		since := p.Since
		if since <= 0 {
			since = 24 * time.Hour
		}
		p.From = p.To.Add(-since)
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("invalid date range: %s is after %s", p.From.Format(time.DateOnly), p.To.Format(time.DateOnly))
	}
	// Set per page max as possible. It should be faster.
	if p.PerPage <= 0 || p.PerPage > perPage {
		p.PerPage = perPage
	}
	modalities := p.Modalities
	if len(modalities) == 0 {
		modalities = DefaultModalities
	}

	endpoint := fmt.Sprintf("%s%s", c.APIURL, SearchPath)
	seen := make(map[string]struct{})
	records := make([]*procurement.Record, 0)

	for _, modality := range modalities {
		q := buildParams(&p)
		q.Set("codigoModalidadeContratacao", strconv.Itoa(modality))

		items, err := c.GetItems(ctx, endpoint, q)
		if err != nil {
			return nil, fmt.Errorf("search modality %d: %w", modality, err)
		}

		publications, err := decodePublications(items)
		if err != nil {
			return nil, err
		}

		for _, pub := range publications {
			record := pub.Record(c.PortalURL)
			if _, ok := seen[record.Key()]; ok {
				continue
			}
			seen[record.Key()] = struct{}{}
			records = append(records, record)
		}

		c.logger.Debug("modality fetched", zap.Int("modality", modality), zap.Int("items", len(items)))
	}

	return procurement.NewRecords(records), nil
}

func decodePublications(items []map[string]any) ([]*Publication, error) {
	var publications []*Publication

	cfg := &mapstructure.DecoderConfig{
		Result:           &publications,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode publications: %w", err)
	}

	return publications, nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	q.Set("dataInicial", params.From.Format(dateLayout))
	q.Set("dataFinal", params.To.Format(dateLayout))

	v := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(v.Type()) {
		key := field.Tag.Get("pncpparam")
		if key == "" {
			continue
		}
		value := strings.TrimSpace(fmt.Sprintf("%v", v.FieldByIndex(field.Index).Interface()))
		if value != "" && value != "0" {
			q.Set(key, value)
		}
	}

	return q
}
