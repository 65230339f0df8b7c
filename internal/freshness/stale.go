// ABOUTME: Finder for fields whose last authoritative update is too old.
// ABOUTME: Feeds an external scheduler that triggers provider re-syncs.
package freshness

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harperreed/health/internal/models"
)

// HistoryReader lists the metadata of every stored field for a user.
type HistoryReader interface {
	ListFieldHistory(ctx context.Context, userID string) ([]models.FieldHistoryEntry, error)
}

// StaleField reports a field whose newest Manual or Primary-tier reading is old.
type StaleField struct {
	Field           models.FieldName `json:"field"`
	LastUpdated     time.Time        `json:"last_updated"`
	Source          models.Source    `json:"source"`
	DaysSinceUpdate int              `json:"days_since_update"`
}

// StaleFinder scans field history for stale authoritative data.
type StaleFinder struct {
	table   *Table
	history HistoryReader
	now     func() time.Time
}

// NewStaleFinder creates a finder. A nil table means the default table.
func NewStaleFinder(history HistoryReader, table *Table) *StaleFinder {
	if table == nil {
		table = DefaultTable()
	}
	return &StaleFinder{table: table, history: history, now: time.Now}
}

// Find returns fields whose latest authoritative measurement is more than
// sinceDays days old, oldest first. Fields that never had an authoritative
// reading are not reported.
func (f *StaleFinder) Find(ctx context.Context, userID string, sinceDays int) ([]StaleField, error) {
	if sinceDays < 0 {
		return nil, fmt.Errorf("%w: negative day threshold %d", ErrInvalidInput, sinceDays)
	}
	entries, err := f.history.ListFieldHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataRead, err)
	}

	latest := make(map[models.FieldName]models.FieldMetadata)
	for _, e := range entries {
		if !ValidTimestamp(e.Metadata.RecordedAt) {
			continue
		}
		if !IsAuthoritative(f.table.Tier(e.Metadata.Source, e.Field)) {
			continue
		}
		if cur, ok := latest[e.Field]; !ok || e.Metadata.RecordedAt.After(cur.RecordedAt) {
			latest[e.Field] = e.Metadata
		}
	}

	now := f.now()
	threshold := time.Duration(sinceDays) * 24 * time.Hour
	var stale []StaleField
	for field, meta := range latest {
		age := now.Sub(meta.RecordedAt)
		if age <= threshold {
			continue
		}
		stale = append(stale, StaleField{
			Field:           field,
			LastUpdated:     meta.RecordedAt,
			Source:          meta.Source,
			DaysSinceUpdate: int(age.Hours() / 24),
		})
	}

	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].LastUpdated.Equal(stale[j].LastUpdated) {
			return stale[i].LastUpdated.Before(stale[j].LastUpdated)
		}
		return stale[i].Field < stale[j].Field
	})
	return stale, nil
}
