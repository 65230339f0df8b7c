// ABOUTME: Priority table mapping (source, field) to a priority tier.
// ABOUTME: Field-specific overrides are checked before the default source mapping.
package freshness

import (
	"sort"

	"github.com/harperreed/health/internal/models"
)

// defaultTiers is the source to tier mapping used when no override applies.
var defaultTiers = map[models.Source]models.Tier{
	models.SourceManual:        models.TierManual,
	models.SourceHealthConnect: models.TierPrimary,
	models.SourceRenpho:        models.TierPrimary,
	models.SourceGoogleFit:     models.TierSecondary,
	models.SourceMiFitness:     models.TierTertiary,
}

// Override pins a tier for one source on one field.
type Override struct {
	Source   models.Source
	Field    models.FieldName
	Tier     models.Tier
	Disabled bool
}

// DefaultOverrides are the built-in field overrides. Google Fit sleep is
// treated as better than any primary source. The steps override is kept
// for reference but no longer applied.
var DefaultOverrides = []Override{
	{Source: models.SourceGoogleFit, Field: models.FieldSleepDuration, Tier: models.TierSuperPrimary},
	{Source: models.SourceGoogleFit, Field: models.FieldSteps, Tier: models.TierSuperPrimary, Disabled: true},
}

type overrideKey struct {
	source models.Source
	field  models.FieldName
}

// Table resolves priority tiers. It is immutable after construction and
// safe for concurrent use.
type Table struct {
	overrides map[overrideKey]models.Tier
}

// NewTable builds a table from DefaultOverrides plus extra overrides.
// Later overrides replace earlier ones for the same (source, field); a
// disabled override removes any earlier entry.
func NewTable(extra ...Override) *Table {
	t := &Table{overrides: make(map[overrideKey]models.Tier)}
	for _, o := range append(append([]Override{}, DefaultOverrides...), extra...) {
		key := overrideKey{o.Source, o.Field}
		if o.Disabled {
			delete(t.overrides, key)
			continue
		}
		t.overrides[key] = o.Tier
	}
	return t
}

var defaultTable = NewTable()

// DefaultTable returns the table with only the built-in overrides.
func DefaultTable() *Table {
	return defaultTable
}

// Tier returns the tier of source for field. field may be empty.
// Unknown sources resolve to TierTertiary.
func (t *Table) Tier(source models.Source, field models.FieldName) models.Tier {
	if field != "" {
		if tier, ok := t.overrides[overrideKey{source, field}]; ok {
			return tier
		}
	}
	if tier, ok := defaultTiers[source]; ok {
		return tier
	}
	return models.TierTertiary
}

// Overrides lists the active overrides sorted by field then source.
func (t *Table) Overrides() []Override {
	out := make([]Override, 0, len(t.overrides))
	for k, tier := range t.overrides {
		out = append(out, Override{Source: k.source, Field: k.field, Tier: tier})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// TierOf resolves a tier against the default table.
func TierOf(source models.Source, field models.FieldName) models.Tier {
	return defaultTable.Tier(source, field)
}

// IsAuthoritative reports whether tier is Primary or better.
func IsAuthoritative(tier models.Tier) bool {
	return tier <= models.TierPrimary
}
