// ABOUTME: Tests for the stale authoritative field finder.
// ABOUTME: Only Manual and Primary-tier updates count toward freshness.
package freshness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/health/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	entries []models.FieldHistoryEntry
	err     error
}

func (f fakeHistory) ListFieldHistory(context.Context, string) ([]models.FieldHistoryEntry, error) {
	return f.entries, f.err
}

func entry(field models.FieldName, source models.Source, at time.Time) models.FieldHistoryEntry {
	return models.FieldHistoryEntry{
		Field:    field,
		Date:     models.Day(at),
		Metadata: models.NewFieldMetadata(at, source, ""),
	}
}

func TestStaleFinderFind(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d int) time.Time { return now.AddDate(0, 0, -d) }

	history := fakeHistory{entries: []models.FieldHistoryEntry{
		entry(models.FieldWeight, models.SourceRenpho, daysAgo(20)),
		entry(models.FieldWeight, models.SourceManual, daysAgo(10)),
		// Secondary updates do not refresh steps.
		entry(models.FieldSteps, models.SourceHealthConnect, daysAgo(9)),
		entry(models.FieldSteps, models.SourceGoogleFit, daysAgo(1)),
		// Google Fit sleep is super primary, so it counts.
		entry(models.FieldSleepDuration, models.SourceGoogleFit, daysAgo(2)),
		// Only ever tertiary: never reported.
		entry(models.FieldHRV, models.SourceMiFitness, daysAgo(30)),
	}}

	finder := NewStaleFinder(history, nil)
	finder.now = func() time.Time { return now }

	got, err := finder.Find(context.Background(), "user-1", 7)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.FieldWeight, got[0].Field)
	assert.Equal(t, models.SourceManual, got[0].Source)
	assert.Equal(t, 10, got[0].DaysSinceUpdate)

	assert.Equal(t, models.FieldSteps, got[1].Field)
	assert.Equal(t, models.SourceHealthConnect, got[1].Source)
	assert.Equal(t, 9, got[1].DaysSinceUpdate)
}

func TestStaleFinderErrors(t *testing.T) {
	finder := NewStaleFinder(fakeHistory{err: errors.New("boom")}, nil)

	_, err := finder.Find(context.Background(), "user-1", 7)
	assert.ErrorIs(t, err, ErrMetadataRead)

	_, err = finder.Find(context.Background(), "user-1", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
