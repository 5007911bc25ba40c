package pncp

import (
	"fmt"
	"strings"
	"time"

	"github.com/spigell/licita-radar/internal/procurement"
)

// Publication is one item of the publication endpoint.
type Publication struct {
	ControlNumber     string   `json:"numeroControlePNCP"`
	Subject           string   `json:"objetoCompra"`
	ComplementaryInfo string   `json:"informacaoComplementar"`
	ModalityID        int      `json:"modalidadeId"`
	ModalityName      string   `json:"modalidadeNome"`
	Status            string   `json:"situacaoCompraNome"`
	EstimatedValue    *float64 `json:"valorTotalEstimado"`
	ProcessNumber     string   `json:"processo"`
	PurchaseNumber    string   `json:"numeroCompra"`
	Year              int      `json:"anoCompra"`
	Sequence          int      `json:"sequencialCompra"`
	PublishedAt       string   `json:"dataPublicacaoPncp"`
	ProposalsOpenAt   string   `json:"dataAberturaProposta"`
	ProposalsCloseAt  string   `json:"dataEncerramentoProposta"`
	SourceSystemURL   string   `json:"linkSistemaOrigem"`
	PriceRegistration bool     `json:"srp"`
	Organization      struct {
		CNPJ        string `json:"cnpj"`
		CompanyName string `json:"razaoSocial"`
	} `json:"orgaoEntidade"`
	Unit struct {
		State        string `json:"ufSigla"`
		Municipality string `json:"municipioNome"`
		Name         string `json:"nomeUnidade"`
		Code         string `json:"codigoUnidade"`
	} `json:"unidadeOrgao"`
}

// timestamp layouts seen in PNCP answers.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	time.RFC3339,
	time.DateOnly,
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Record converts the publication into the engine record.
func (p *Publication) Record(portalURL string) *procurement.Record {
	id := p.ControlNumber
	if p.Organization.CNPJ != "" && p.Year > 0 && p.Sequence > 0 {
		id = fmt.Sprintf("%s-%d-%d", p.Organization.CNPJ, p.Year, p.Sequence)
	}

	link := p.SourceSystemURL
	if portalURL != "" && p.Organization.CNPJ != "" && p.Year > 0 && p.Sequence > 0 {
		link = fmt.Sprintf("%s/%s/%d/%d", strings.TrimRight(portalURL, "/"), p.Organization.CNPJ, p.Year, p.Sequence)
	}

	meta := map[string]any{
		procurement.MetaObject: p.Subject,
	}
	if p.Status != "" {
		meta["situacao"] = p.Status
	}
	if p.ProposalsCloseAt != "" {
		meta["dataEncerramentoProposta"] = p.ProposalsCloseAt
	}
	if p.PriceRegistration {
		meta["srp"] = true
	}

	return &procurement.Record{
		ID:                id,
		ControlNumber:     p.ControlNumber,
		Subject:           strings.TrimSpace(p.Subject),
		OrganizationName:  strings.TrimSpace(p.Organization.CompanyName),
		Modality:          p.ModalityName,
		StateCode:         strings.ToUpper(strings.TrimSpace(p.Unit.State)),
		Municipality:      p.Unit.Municipality,
		UnitName:          p.Unit.Name,
		ProcessNumber:     p.ProcessNumber,
		PurchaseNumber:    p.PurchaseNumber,
		EstimatedValue:    p.EstimatedValue,
		PublicationDate:   parseTimestamp(p.PublishedAt),
		ComplementaryInfo: strings.TrimSpace(p.ComplementaryInfo),
		URL:               link,
		ExtraMetadata:     meta,
	}
}
