// ABOUTME: Tests for the meaningful-value and trusted-timestamp predicates.
// ABOUTME: Covers numeric, text, list, pointer, and nil values.
package freshness

import (
	"math"
	"testing"
	"time"

	"github.com/harperreed/health/internal/models"
)

func TestIsMeaningful(t *testing.T) {
	zero := 0.0
	five := 5.0
	var nilPtr *float64

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"zero int", 0, false},
		{"zero float", 0.0, false},
		{"positive int", 8000, true},
		{"negative float", -1.5, true},
		{"uint", uint(3), true},
		{"NaN", math.NaN(), false},
		{"infinity", math.Inf(1), false},
		{"empty string", "", false},
		{"blank string", " \t", false},
		{"text", "felt great", true},
		{"empty slice", []string{}, false},
		{"slice", []string{"light", "deep"}, true},
		{"empty any slice", []any{}, false},
		{"map", map[string]any{"deep": 60}, true},
		{"nil pointer", nilPtr, false},
		{"pointer to zero", &zero, false},
		{"pointer to five", &five, true},
		{"bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMeaningful(tt.value); got != tt.want {
				t.Errorf("IsMeaningful(%#v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestTrustedRecordedAt(t *testing.T) {
	at := time.Date(2025, 8, 10, 7, 0, 0, 0, time.UTC)
	meta := models.NewFieldMetadata(at, models.SourceRenpho, "scale-1")

	if got, ok := TrustedRecordedAt(82.0, &meta); !ok || !got.Equal(at) {
		t.Errorf("expected trusted timestamp %v, got %v (%v)", at, got, ok)
	}
	if _, ok := TrustedRecordedAt(0.0, &meta); ok {
		t.Error("timestamp of a meaningless value must not be trusted")
	}
	if _, ok := TrustedRecordedAt(82.0, nil); ok {
		t.Error("missing metadata must not yield a timestamp")
	}
	empty := models.FieldMetadata{Source: models.SourceRenpho}
	if _, ok := TrustedRecordedAt(82.0, &empty); ok {
		t.Error("zero timestamp must not be trusted")
	}
}
