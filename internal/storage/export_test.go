// ABOUTME: Tests for export and import functionality.
// ABOUTME: Verifies JSON and YAML export and metadata-preserving restore.
package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/health/internal/models"
	"gopkg.in/yaml.v3"
)

func seedExportData(t *testing.T, db *DB) {
	t.Helper()
	writeNew(t, db, models.FieldSteps, 8000, models.SourceHealthConnect, testAt)
	writeNew(t, db, models.FieldWeight, 82.5, models.SourceRenpho, testAt)
	if err := db.SetDataLock(context.Background(), "u1", models.DataLock{Enabled: true, LockDate: testDate.AddDate(0, 0, -10)}); err != nil {
		t.Fatalf("SetDataLock failed: %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	db := setupTestDB(t)
	seedExportData(t, db)

	data, err := db.ExportJSON(context.Background())
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var export ExportData
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("Failed to parse JSON: %v", err)
	}
	if export.Version != ExportVersion {
		t.Errorf("Expected version %s, got %s", ExportVersion, export.Version)
	}
	if export.Tool != "health" {
		t.Errorf("Expected tool health, got %s", export.Tool)
	}
	if len(export.Records) != 1 || export.FieldCount() != 2 {
		t.Errorf("Expected 1 record with 2 fields, got %d/%d", len(export.Records), export.FieldCount())
	}
	if !export.Locks["u1"].Enabled {
		t.Error("Expected u1 lock in export")
	}
}

func TestExportYAML(t *testing.T) {
	db := setupTestDB(t)
	seedExportData(t, db)

	data, err := db.ExportYAML(context.Background())
	if err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}
	if !strings.Contains(string(data), "health_connect") {
		t.Errorf("Expected source in YAML output:\n%s", data)
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to parse YAML: %v", err)
	}
	if parsed["tool"] != "health" {
		t.Errorf("Expected tool health, got %v", parsed["tool"])
	}
}

func TestExportRestoreRoundTrip(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			src := setupTestDB(t)
			seedExportData(t, src)
			ctx := context.Background()

			var raw []byte
			var err error
			if format == "json" {
				raw, err = src.ExportJSON(ctx)
			} else {
				raw, err = src.ExportYAML(ctx)
			}
			if err != nil {
				t.Fatalf("export failed: %v", err)
			}

			data, err := ParseExport(raw)
			if err != nil {
				t.Fatalf("ParseExport failed: %v", err)
			}

			dst := setupTestDB(t)
			if err := dst.ImportData(ctx, data); err != nil {
				t.Fatalf("ImportData failed: %v", err)
			}

			snap, err := dst.GetField(ctx, "u1", testDate, models.FieldSteps)
			if err != nil {
				t.Fatalf("GetField failed: %v", err)
			}
			if snap.Metadata == nil || snap.Metadata.Source != models.SourceHealthConnect {
				t.Fatalf("Expected metadata to survive restore, got %+v", snap.Metadata)
			}
			if !snap.Metadata.RecordedAt.Equal(testAt) {
				t.Errorf("Expected recorded_at %v, got %v", testAt, snap.Metadata.RecordedAt)
			}

			lock, _ := dst.GetDataLock(ctx, "u1")
			if !lock.Enabled {
				t.Error("Expected lock to survive restore")
			}
		})
	}
}

func TestImportDataRejectsMissingUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.ImportData(ctx, &ExportData{Records: []*models.HealthRecord{
		{UserID: "u1", Date: testDate, Fields: map[models.FieldName]models.FieldValue{models.FieldSteps: {Value: 1}}},
		{Date: testDate, Fields: map[models.FieldName]models.FieldValue{models.FieldSteps: {Value: 2}}},
	}})
	if err == nil {
		t.Fatal("Expected error for record without user")
	}

	// The transaction rolls back the fields written before the failure.
	snap, _ := db.GetField(ctx, "u1", testDate, models.FieldSteps)
	if snap.Exists {
		t.Error("Expected import to be rolled back")
	}
}

func TestParseExportInvalid(t *testing.T) {
	if _, err := ParseExport([]byte("{not: [valid")); err == nil {
		t.Error("Expected error for invalid export")
	}
}

func TestExportEmpty(t *testing.T) {
	db := setupTestDB(t)

	data, err := db.GetAllData(context.Background())
	if err != nil {
		t.Fatalf("GetAllData failed: %v", err)
	}
	if len(data.Records) != 0 || len(data.Locks) != 0 {
		t.Errorf("Expected empty export, got %+v", data)
	}
	if data.ExportedAt.After(time.Now().Add(time.Minute)) {
		t.Error("Unexpected export time")
	}
}
