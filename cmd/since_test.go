package cmd

import (
	"testing"
	"time"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		raw     string
		expect  time.Time
		wantErr bool
	}{
		{name: "empty", raw: "  ", expect: time.Time{}},
		{name: "duration", raw: "72h", expect: now.Add(-72 * time.Hour)},
		{name: "days", raw: "7d", expect: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)},
		{name: "date", raw: "2025-03-01", expect: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "negative duration", raw: "-2h", wantErr: true},
		{name: "negative days", raw: "-1d", wantErr: true},
		{name: "future date", raw: "2025-04-01", wantErr: true},
		{name: "garbage", raw: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSince(tt.raw, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.expect) {
				t.Fatalf("expected %s, got %s", tt.expect, got)
			}
		})
	}
}
