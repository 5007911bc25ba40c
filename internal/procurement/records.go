package procurement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

type Records struct {
	Items []*Record
}

// NewRecords wraps items into a collection.
func NewRecords(items []*Record) *Records {
	return &Records{Items: items}
}

func (r *Records) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

func (r *Records) FindByID(id string) *Record {
	for _, record := range r.Items {
		if record.ID == id || record.ControlNumber == id {
			return record
		}
	}
	return nil
}

// Keys returns the dismissal keys of all records in order.
func (r *Records) Keys() []string {
	keys := make([]string, 0, r.Len())
	for _, record := range r.Items {
		keys = append(keys, record.Key())
	}
	return keys
}

// Exclude removes every record whose field equals one of targets and returns the
// keys of the removed records. Order of the remaining records is preserved.
func (r *Records) Exclude(name string, targets []string) []string {
	if len(targets) == 0 || r.Len() == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		set[target] = struct{}{}
	}

	var excluded []string
	kept := r.Items[:0]
	for _, record := range r.Items {
		if _, ok := set[record.GetStringField(name)]; ok {
			excluded = append(excluded, record.Key())
			continue
		}
		kept = append(kept, record)
	}
	r.Items = kept

	return excluded
}

// ReportByOrganization groups a short summary of each record by organization name.
func (r *Records) ReportByOrganization() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, record := range r.Items {
		key := record.OrganizationName
		if record.StateCode != "" {
			key = fmt.Sprintf("%s (%s)", record.OrganizationName, record.StateCode)
		}

		value := "not informed"
		if record.EstimatedValue != nil {
			value = fmt.Sprintf("%.2f", *record.EstimatedValue)
		}

		entry := map[string]string{
			"control number":  record.ControlNumber,
			"subject":         record.Subject,
			"modality":        record.Modality,
			"municipality":    record.Municipality,
			"estimated value": value,
		}
		if !record.PublicationDate.IsZero() {
			entry["published"] = record.PublicationDate.Format("2006-01-02")
		}
		if record.URL != "" {
			entry["url"] = record.URL
		}

		report[key] = append(report[key], entry)
	}
	return report
}

// Organizations returns the distinct organization names sorted alphabetically.
func (r *Records) Organizations() []string {
	seen := make(map[string]struct{})
	for _, record := range r.Items {
		seen[record.OrganizationName] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (r *Records) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "licitacoes_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// LoadFromFile reads records from a JSON file holding either an array of records
// or an object with the array under "data".
func LoadFromFile(path string) (*Records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &Records{}, nil
	}

	var items []*Record
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode records from %s: %w", path, err)
		}
		return &Records{Items: compact(items)}, nil
	}

	var wrapped struct {
		Data []*Record `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode records from %s: %w", path, err)
	}

	return &Records{Items: compact(wrapped.Data)}, nil
}

func compact(items []*Record) []*Record {
	kept := items[:0]
	for _, item := range items {
		if item != nil {
			kept = append(kept, item)
		}
	}
	return kept
}
