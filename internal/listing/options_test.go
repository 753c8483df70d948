package listing

import (
	"testing"
	"time"

	"github.com/alanyoungcy/hotpot/internal/domain"
)

func TestExpirationOptions_Table(t *testing.T) {
	opts := ExpirationOptions()
	if len(opts) != 8 {
		t.Fatalf("len = %d, want 8", len(opts))
	}
	seen := map[string]bool{}
	for _, o := range opts {
		if seen[o.Value] {
			t.Errorf("duplicate value %q", o.Value)
		}
		seen[o.Value] = true
	}

	opts[0].Label = "mutated"
	if ExpirationOptions()[0].Label == "mutated" {
		t.Error("ExpirationOptions exposes the backing table")
	}
}

func TestDefaultExpiration(t *testing.T) {
	if got := DefaultExpiration(); got.Label != "6 Months" {
		t.Errorf("default = %q, want 6 Months", got.Label)
	}
}

func TestExpiresAt(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Time
	}{
		{"hour", now.Add(time.Hour)},
		{"12 hours", now.Add(12 * time.Hour)},
		{"1 day", now.AddDate(0, 0, 1)},
		{"3 days", now.AddDate(0, 0, 3)},
		{"week", now.AddDate(0, 0, 7)},
		{"month", now.AddDate(0, 1, 0)},
		{"3 months", now.AddDate(0, 3, 0)},
		{"6 months", now.AddDate(0, 6, 0)},
	}
	for _, tt := range tests {
		opt, ok := LookupExpiration(tt.value)
		if !ok {
			t.Fatalf("LookupExpiration(%q) missing", tt.value)
		}
		if got := opt.ExpiresAt(now); !got.Equal(tt.want) {
			t.Errorf("%s: ExpiresAt = %s, want %s", tt.value, got, tt.want)
		}
	}

	if got := (domain.ExpirationOption{}).ExpiresAt(now); !got.Equal(now) {
		t.Errorf("zero option ExpiresAt = %s, want now", got)
	}
}
