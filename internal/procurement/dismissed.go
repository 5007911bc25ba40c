package procurement

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

const (
	DismissActorUser = "user"
	DismissActorAI   = "ai"
)

// Dismissed is the content of the dismissed records file.
type Dismissed struct {
	Items []*DismissedRecord
}

type DismissedRecord struct {
	Key           string
	ControlNumber string
	Organization  string
	Actor         string `json:",omitempty"`
	Reason        string `json:",omitempty"`
	DismissedAt   time.Time
}

// ToDismissed converts the records to dismissal entries attributed to actor.
func (r *Records) ToDismissed(actor, reason string) *Dismissed {
	dismissed := &Dismissed{}
	for _, record := range r.Items {
		dismissed.Items = append(dismissed.Items, &DismissedRecord{
			Key:           record.Key(),
			ControlNumber: record.ControlNumber,
			Organization:  record.OrganizationName,
			Actor:         actor,
			Reason:        reason,
			DismissedAt:   time.Now().UTC(),
		})
	}
	return dismissed
}

// GetDismissedFromFile reads the dismissed file. A missing or empty file yields an empty list.
func GetDismissedFromFile(path string) (*Dismissed, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Dismissed{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &Dismissed{}, nil
	}

	var dismissed Dismissed
	if err := json.NewDecoder(file).Decode(&dismissed); err != nil {
		return nil, err
	}
	return &dismissed, nil
}

// Append adds entries whose keys are not yet present.
func (d *Dismissed) Append(s *Dismissed) {
	known := make(map[string]struct{}, len(d.Items))
	for _, item := range d.Items {
		known[item.Key] = struct{}{}
	}

	for _, item := range s.Items {
		if _, ok := known[item.Key]; ok {
			continue
		}
		known[item.Key] = struct{}{}
		d.Items = append(d.Items, item)
	}
}

func (d *Dismissed) Keys() []string {
	keys := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		keys = append(keys, item.Key)
	}
	return keys
}

func (d *Dismissed) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
