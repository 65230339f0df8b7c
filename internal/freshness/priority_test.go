// ABOUTME: Tests for the priority table.
// ABOUTME: Validates default tiers, field overrides, and configured overrides.
package freshness

import (
	"testing"

	"github.com/harperreed/health/internal/models"
)

func TestTierOf(t *testing.T) {
	tests := []struct {
		source models.Source
		field  models.FieldName
		want   models.Tier
	}{
		{models.SourceManual, "", models.TierManual},
		{models.SourceHealthConnect, "", models.TierPrimary},
		{models.SourceRenpho, models.FieldWeight, models.TierPrimary},
		{models.SourceGoogleFit, "", models.TierSecondary},
		{models.SourceGoogleFit, models.FieldSleepDuration, models.TierSuperPrimary},
		{models.SourceGoogleFit, models.FieldSteps, models.TierSecondary},
		{models.SourceMiFitness, models.FieldSleepDuration, models.TierTertiary},
		{models.Source("withings"), models.FieldWeight, models.TierTertiary},
	}

	for _, tt := range tests {
		t.Run(string(tt.source)+"/"+string(tt.field), func(t *testing.T) {
			if got := TierOf(tt.source, tt.field); got != tt.want {
				t.Errorf("TierOf(%s, %q) = %s, want %s", tt.source, tt.field, got, tt.want)
			}
		})
	}
}

func TestTierOrdering(t *testing.T) {
	for i := 1; i < len(models.AllTiers); i++ {
		if !models.AllTiers[i-1].Outranks(models.AllTiers[i]) {
			t.Errorf("%s should outrank %s", models.AllTiers[i-1], models.AllTiers[i])
		}
	}
}

func TestNewTableExtraOverrides(t *testing.T) {
	table := NewTable(
		Override{Source: models.SourceMiFitness, Field: models.FieldHeartRate, Tier: models.TierPrimary},
		Override{Source: models.SourceGoogleFit, Field: models.FieldSleepDuration, Disabled: true},
	)

	if got := table.Tier(models.SourceMiFitness, models.FieldHeartRate); got != models.TierPrimary {
		t.Errorf("mi_fitness heart_rate = %s, want primary", got)
	}
	if got := table.Tier(models.SourceGoogleFit, models.FieldSleepDuration); got != models.TierSecondary {
		t.Errorf("disabled override still applied: got %s", got)
	}
	// The default table is untouched.
	if got := TierOf(models.SourceGoogleFit, models.FieldSleepDuration); got != models.TierSuperPrimary {
		t.Errorf("default table changed: got %s", got)
	}
}

func TestOverridesListing(t *testing.T) {
	got := DefaultTable().Overrides()
	if len(got) != 1 {
		t.Fatalf("expected 1 active override, got %d", len(got))
	}
	if got[0].Field != models.FieldSleepDuration || got[0].Tier != models.TierSuperPrimary {
		t.Errorf("unexpected override: %+v", got[0])
	}
}

func TestParseTier(t *testing.T) {
	for _, tier := range models.AllTiers {
		got, err := models.ParseTier(tier.String())
		if err != nil || got != tier {
			t.Errorf("ParseTier(%q) = %v, %v", tier.String(), got, err)
		}
	}
	if _, err := models.ParseTier("platinum"); err == nil {
		t.Error("expected error for unknown tier")
	}
}
