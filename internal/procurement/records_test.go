package procurement

import (
	"os"
	"path/filepath"
	"testing"
)

func testRecords() *Records {
	value := 1500.5
	return &Records{Items: []*Record{
		{ID: "1", ControlNumber: "000-1", OrganizationName: "Prefeitura de Campinas", StateCode: "SP", Subject: "Pavimentação", EstimatedValue: &value},
		{ID: "2", ControlNumber: "000-2", OrganizationName: "Governo do Estado", StateCode: "RJ", Subject: "Merenda"},
		{ControlNumber: "000-3", OrganizationName: "Prefeitura de Campinas", StateCode: "SP", Subject: "Limpeza"},
	}}
}

func TestRecordsExcludePreservesOrder(t *testing.T) {
	records := testRecords()

	excluded := records.Exclude(RecordKeyField, []string{"2", "missing"})
	if len(excluded) != 1 || excluded[0] != "2" {
		t.Fatalf("unexpected excluded keys: %v", excluded)
	}

	keys := records.Keys()
	if len(keys) != 2 || keys[0] != "1" || keys[1] != "000-3" {
		t.Fatalf("unexpected remaining keys: %v", keys)
	}
}

func TestRecordKeyFallsBackToControlNumber(t *testing.T) {
	records := testRecords()
	if got := records.Items[2].Key(); got != "000-3" {
		t.Fatalf("expected control number as key, got %q", got)
	}
	if found := records.FindByID("000-2"); found == nil || found.ID != "2" {
		t.Fatalf("expected to find record by control number")
	}
}

func TestReportByOrganization(t *testing.T) {
	report := testRecords().ReportByOrganization()

	entries, ok := report["Prefeitura de Campinas (SP)"]
	if !ok {
		t.Fatalf("expected organization key in report, got %v", report)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["estimated value"] != "1500.50" {
		t.Fatalf("unexpected value: %q", entries[0]["estimated value"])
	}
	if entries[1]["estimated value"] != "not informed" {
		t.Fatalf("unexpected missing value: %q", entries[1]["estimated value"])
	}
}

func TestRecordMetadataHelpers(t *testing.T) {
	record := &Record{
		Subject: "Aquisição de equipamentos",
		ExtraMetadata: map[string]any{
			MetaCategoryCodes:  []any{"4751-2/01", " 6201-5/01 ", ""},
			MetaDetailedObject: "notebooks e monitores",
			"lote":             3.0,
		},
	}

	codes := record.CategoryCodes()
	if len(codes) != 2 || codes[0] != "4751-2/01" || codes[1] != "6201-5/01" {
		t.Fatalf("unexpected codes: %v", codes)
	}

	if got := record.SubjectText(); got != "Aquisição de equipamentos notebooks e monitores" {
		t.Fatalf("unexpected subject text: %q", got)
	}

	if got := record.MetadataText("lote"); got != "3" {
		t.Fatalf("unexpected metadata text: %q", got)
	}

	record.ExtraMetadata[MetaCategoryCodes] = "4120-4/00,4399-1/03"
	if codes := record.CategoryCodes(); len(codes) != 2 {
		t.Fatalf("expected comma separated codes to be split, got %v", codes)
	}

	var empty *Record
	if empty.Value() != 0 || empty.MetadataText("x") != "" || empty.SubjectText() != "" {
		t.Fatalf("expected nil record helpers to return zero values")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		expect  int
	}{
		{name: "array", content: `[{"id":"1","subject":"a"},null,{"id":"2"}]`, expect: 2},
		{name: "wrapped", content: `{"data":[{"id":"1","estimatedValue":10.5}]}`, expect: 1},
		{name: "empty", content: "  \n", expect: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			records, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if records.Len() != tt.expect {
				t.Fatalf("expected %d records, got %d", tt.expect, records.Len())
			}
		})
	}

	if _, err := LoadFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDismissedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dismissed.json")

	dismissed, err := GetDismissedFromFile(path)
	if err != nil {
		t.Fatalf("missing file should yield empty list: %v", err)
	}

	dismissed.Append(testRecords().ToDismissed(DismissActorAI, "not related"))
	dismissed.Append(testRecords().ToDismissed(DismissActorUser, ""))
	if len(dismissed.Items) != 3 {
		t.Fatalf("expected duplicates to be skipped, got %d items", len(dismissed.Items))
	}

	if err := dismissed.ToFile(path); err != nil {
		t.Fatalf("write dismissed file: %v", err)
	}

	loaded, err := GetDismissedFromFile(path)
	if err != nil {
		t.Fatalf("read dismissed file: %v", err)
	}

	keys := loaded.Keys()
	if len(keys) != 3 || keys[2] != "000-3" {
		t.Fatalf("unexpected keys: %v", keys)
	}
	if loaded.Items[0].Actor != DismissActorAI || loaded.Items[0].Reason != "not related" {
		t.Fatalf("unexpected first entry: %+v", loaded.Items[0])
	}
}
