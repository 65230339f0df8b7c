// ABOUTME: Tests for loading normalized measurement tuples from files.
// ABOUTME: Covers JSON, YAML, and CSV shapes, defaults, and value normalization.
package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/harperreed/health/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONArray(t *testing.T) {
	input := `[
		{"user_id": "u1", "field": "steps", "value": 8000, "source": "Health Connect", "recorded_at": "2025-08-10T07:00:00Z"},
		{"user_id": "u1", "date": "2025-08-09", "field": "sleep_stages", "value": ["light", "deep"], "source": "google_fit", "recorded_at": "2025-08-10T06:00:00Z", "device_id": "pixel"}
	]`

	got, err := Load(strings.NewReader(input), FormatJSON, Defaults{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.SourceHealthConnect, got[0].Source)
	assert.Equal(t, 8000.0, got[0].Value)
	assert.Equal(t, time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC), got[0].Date)

	assert.Equal(t, time.Date(2025, 8, 9, 0, 0, 0, 0, time.UTC), got[1].Date, "explicit date wins over recorded_at")
	assert.Equal(t, []any{"light", "deep"}, got[1].Value)
	assert.Equal(t, "pixel", got[1].DeviceID)
}

func TestLoadJSONObject(t *testing.T) {
	input := `{"measurements": [{"field": "weight", "value": 82.5, "recorded_at": "2025-08-10T07:00:00Z"}]}`

	got, err := Load(strings.NewReader(input), FormatJSON, Defaults{UserID: "u1", Source: models.SourceRenpho})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, models.SourceRenpho, got[0].Source)
}

func TestLoadYAML(t *testing.T) {
	input := `
- user_id: u1
  field: weight
  value: 82
  source: renpho
  recorded_at: 2025-08-10T07:00:00Z
- user_id: u1
  field: notes
  value: felt great
  source: manual
  recorded_at: 2025-08-10 21:15
`
	got, err := Load(strings.NewReader(input), FormatYAML, Defaults{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 82, got[0].Value)
	assert.Equal(t, time.Date(2025, 8, 10, 7, 0, 0, 0, time.UTC), got[0].RecordedAt)
	assert.Equal(t, "felt great", got[1].Value)
}

func TestLoadYAMLMapping(t *testing.T) {
	input := "measurements:\n  - {user_id: u1, field: hrv, value: 45, source: health_connect, recorded_at: \"2025-08-10T07:00:00Z\"}\n"
	got, err := Load(strings.NewReader(input), FormatYAML, Defaults{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.FieldHRV, got[0].Field)
}

func TestLoadCSV(t *testing.T) {
	input := "field,value,recorded_at,source,device_id\n" +
		"steps,8000,2025-08-10T07:00:00Z,health_connect,watch\n" +
		"sleep_stages,light|deep|rem,2025-08-10T06:00:00Z,google_fit,\n" +
		"weight,,2025-08-10T07:00:00Z,renpho,\n"

	got, err := Load(strings.NewReader(input), FormatCSV, Defaults{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 8000.0, got[0].Value)
	assert.Equal(t, "watch", got[0].DeviceID)
	assert.Equal(t, []any{"light", "deep", "rem"}, got[1].Value)
	assert.Equal(t, "", got[2].Value, "blank values load and are rejected later as meaningless")
}

func TestLoadCSVMissingColumn(t *testing.T) {
	_, err := Load(strings.NewReader("field,value\nsteps,1\n"), FormatCSV, Defaults{UserID: "u1"})
	assert.ErrorContains(t, err, "recorded_at")
}

func TestLoadEmpty(t *testing.T) {
	for _, f := range []Format{FormatYAML, FormatCSV} {
		got, err := Load(strings.NewReader(""), f, Defaults{})
		require.NoError(t, err, f)
		assert.Empty(t, got, f)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unknown field", `[{"user_id":"u1","field":"mood","value":1,"source":"manual","recorded_at":"2025-08-10T07:00:00Z"}]`, "unknown field"},
		{"missing user", `[{"field":"steps","value":1,"source":"manual","recorded_at":"2025-08-10T07:00:00Z"}]`, "missing user_id"},
		{"missing source", `[{"user_id":"u1","field":"steps","value":1,"recorded_at":"2025-08-10T07:00:00Z"}]`, "missing source"},
		{"missing timestamp", `[{"user_id":"u1","field":"steps","value":1,"source":"manual"}]`, "missing recorded_at"},
		{"bad timestamp", `[{"user_id":"u1","field":"steps","value":1,"source":"manual","recorded_at":"yesterday"}]`, "invalid recorded_at"},
		{"bad date", `[{"user_id":"u1","date":"10/08/2025","field":"steps","value":1,"source":"manual","recorded_at":"2025-08-10T07:00:00Z"}]`, "invalid date"},
		{"non numeric", `[{"user_id":"u1","field":"steps","value":"lots","source":"manual","recorded_at":"2025-08-10T07:00:00Z"}]`, "needs a number"},
		{"bad json", `[{`, "parse JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input), FormatJSON, Defaults{})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadRowsKeepsGoodRows(t *testing.T) {
	input := "field,value,recorded_at\n" +
		"steps,8000,2025-08-10T07:00:00Z\n" +
		"steps,lots,2025-08-10T08:00:00Z\n" +
		"mood,5,2025-08-10T08:00:00Z\n" +
		"weight,82.5,2025-08-10T07:00:00Z\n"

	got, rejected, err := LoadRows(strings.NewReader(input), FormatCSV, Defaults{UserID: "u1", Source: models.SourceGoogleFit})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.FieldSteps, got[0].Field)
	assert.Equal(t, models.FieldWeight, got[1].Field)

	require.Len(t, rejected, 2)
	assert.Equal(t, 2, rejected[0].Row)
	assert.Equal(t, "u1", rejected[0].Measurement.UserID)
	assert.Equal(t, models.FieldSteps, rejected[0].Measurement.Field)
	assert.Equal(t, "lots", rejected[0].Measurement.Value)
	assert.ErrorContains(t, rejected[0], "measurement 2: ")
	assert.ErrorContains(t, rejected[0], "needs a number")

	assert.Equal(t, 3, rejected[1].Row)
	assert.ErrorContains(t, rejected[1].Err, "unknown field")

	_, err = Load(strings.NewReader(input), FormatCSV, Defaults{UserID: "u1", Source: models.SourceGoogleFit})
	assert.ErrorContains(t, err, "measurement 2: ")
}

func TestLoadRowsUndecodableFile(t *testing.T) {
	got, rejected, err := LoadRows(strings.NewReader(`[{`), FormatJSON, Defaults{})
	assert.ErrorContains(t, err, "parse JSON")
	assert.Nil(t, got)
	assert.Nil(t, rejected)
}

func TestParseAndDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"export.json", FormatJSON},
		{"export.YAML", FormatYAML},
		{"export.yml", FormatYAML},
		{"export.csv", FormatCSV},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got)
	}

	_, err := DetectFormat("export")
	assert.Error(t, err)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestNormalizeValue(t *testing.T) {
	v, err := NormalizeValue(models.FieldWeight, " 82.5 ")
	require.NoError(t, err)
	assert.Equal(t, 82.5, v)

	v, err = NormalizeValue(models.FieldNotes, "  hello ")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = NormalizeValue(models.FieldSteps, 1200)
	require.NoError(t, err)
	assert.Equal(t, 1200, v, "non-text values pass through")
}
