// Package procurement holds the procurement records ("licitações") evaluated by
// the relevance engine.
package procurement

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	RecordIDField            = "ID"
	RecordKeyField           = "Key"
	RecordControlNumberField = "ControlNumber"
	RecordOrganizationField  = "Organization"

	// Well-known keys of Record.ExtraMetadata.
	MetaCategoryCodes  = "cnaes"
	MetaObject         = "objeto"
	MetaDetailedObject = "objetoDetalhado"
	MetaDescription    = "descricao"
	MetaJustification  = "justificativa"
)

// Record is one published procurement opportunity. The engine never mutates it.
type Record struct {
	ID                string         `json:"id,omitempty"`
	ControlNumber     string         `json:"controlNumber,omitempty"`
	Subject           string         `json:"subject,omitempty"`
	OrganizationName  string         `json:"organizationName,omitempty"`
	Modality          string         `json:"modality,omitempty"`
	StateCode         string         `json:"stateCode,omitempty"`
	Municipality      string         `json:"municipality,omitempty"`
	UnitName          string         `json:"unitName,omitempty"`
	ProcessNumber     string         `json:"processNumber,omitempty"`
	PurchaseNumber    string         `json:"purchaseNumber,omitempty"`
	EstimatedValue    *float64       `json:"estimatedValue,omitempty"`
	PublicationDate   time.Time      `json:"publicationDate,omitempty"`
	ComplementaryInfo string         `json:"complementaryInfo,omitempty"`
	URL               string         `json:"url,omitempty"`
	LineItems         []LineItem     `json:"lineItems,omitempty"`
	ExtraMetadata     map[string]any `json:"extraMetadata,omitempty"`
}

// LineItem is one item of a procurement.
type LineItem struct {
	Description   string `json:"description,omitempty"`
	Material      string `json:"material,omitempty"`
	Service       string `json:"service,omitempty"`
	Brand         string `json:"brand,omitempty"`
	Specification string `json:"specification,omitempty"`
	CategoryCode  string `json:"categoryCode,omitempty"`
}

// Value returns the estimated value, or 0 when it is unknown.
func (r *Record) Value() float64 {
	if r == nil || r.EstimatedValue == nil {
		return 0
	}
	return *r.EstimatedValue
}

// Key returns the identifier used to deduplicate and dismiss records.
func (r *Record) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.ControlNumber
}

// MetadataText returns the metadata value under key as text. Non-string values
// are rendered as JSON, missing values as an empty string.
func (r *Record) MetadataText(key string) string {
	if r == nil || r.ExtraMetadata == nil {
		return ""
	}
	return stringify(r.ExtraMetadata[key])
}

// SubjectText returns the subject joined with the detailed object and description
// found in the metadata. It is the text the sector matcher reads.
func (r *Record) SubjectText() string {
	if r == nil {
		return ""
	}

	parts := []string{r.Subject}
	for _, key := range []string{MetaDetailedObject, MetaDescription} {
		if text := strings.TrimSpace(r.MetadataText(key)); text != "" && text != r.Subject {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// CategoryCodes returns the CNAE codes stored in the metadata. Both lists and
// comma separated strings are accepted.
func (r *Record) CategoryCodes() []string {
	if r == nil || r.ExtraMetadata == nil {
		return nil
	}

	var codes []string
	switch val := r.ExtraMetadata[MetaCategoryCodes].(type) {
	case []string:
		codes = append(codes, val...)
	case []any:
		for _, item := range val {
			codes = append(codes, stringify(item))
		}
	case string:
		codes = strings.Split(val, ",")
	}

	cleaned := make([]string, 0, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			cleaned = append(cleaned, code)
		}
	}

	return cleaned
}

func (r *Record) GetStringField(name string) string {
	switch name {
	case RecordIDField:
		return r.ID
	case RecordKeyField:
		return r.Key()
	case RecordControlNumberField:
		return r.ControlNumber
	case RecordOrganizationField:
		return r.OrganizationName
	default:
		return ""
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64, int, int64, bool:
		return fmt.Sprintf("%v", val)
	default:
		bytes, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(bytes)
	}
}
