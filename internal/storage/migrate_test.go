// ABOUTME: Tests for data migration between health databases.
// ABOUTME: Covers copying records, metadata, locks, sessions, and the decision log.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/models"
)

func TestMigrateData(t *testing.T) {
	src := setupTestDB(t)
	seedExportData(t, src)
	dst := setupTestDB(t)
	ctx := context.Background()

	summary, err := MigrateData(ctx, src, dst)
	if err != nil {
		t.Fatalf("MigrateData failed: %v", err)
	}
	if summary.Records != 1 || summary.Fields != 2 || summary.Locks != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	snap, _ := dst.GetField(ctx, "u1", testDate, models.FieldWeight)
	if !snap.Exists || snap.Metadata == nil || snap.Metadata.Source != models.SourceRenpho {
		t.Errorf("Expected weight with renpho metadata, got %+v", snap)
	}
}

func TestMigrateDataCarriesAuditHistory(t *testing.T) {
	src := setupTestDB(t)
	dst := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2025, 8, 11, 9, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	session := &ImportSession{ID: "01SESSION", UserID: "u1", Source: "renpho", StartedAt: started}
	if err := src.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	session.FinishedAt = &finished
	session.Tally = audit.Tally{Imported: 1, Skipped: 1}
	if err := src.FinishSession(ctx, session); err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}
	for _, status := range []audit.Status{audit.StatusImported, audit.StatusSkipped} {
		if err := src.RecordDecision(ctx, testEvent(session.ID, models.FieldWeight, status, started)); err != nil {
			t.Fatalf("RecordDecision failed: %v", err)
		}
	}

	// Migrating twice must not duplicate history.
	for i := 0; i < 2; i++ {
		summary, err := MigrateData(ctx, src, dst)
		if err != nil {
			t.Fatalf("MigrateData failed: %v", err)
		}
		if summary.Sessions != 1 || summary.Decisions != 2 {
			t.Errorf("Unexpected summary: %+v", summary)
		}
	}

	sessions, err := dst.ListSessions(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.ID != session.ID || got.Tally.Imported != 1 || got.Tally.Skipped != 1 || got.FinishedAt == nil {
		t.Errorf("Session did not survive migration: %+v", got)
	}

	events, err := dst.ListDecisions(ctx, DecisionFilter{SessionID: session.ID})
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(events))
	}
}

func TestMigrateDataEmptySource(t *testing.T) {
	summary, err := MigrateData(context.Background(), setupTestDB(t), setupTestDB(t))
	if err != nil {
		t.Fatalf("MigrateData failed: %v", err)
	}
	if summary.Records != 0 || summary.Fields != 0 || summary.Locks != 0 || summary.Sessions != 0 || summary.Decisions != 0 {
		t.Errorf("Expected empty summary, got %+v", summary)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()

	exists, err := FileExists(filepath.Join(dir, "missing.db"))
	if err != nil || exists {
		t.Errorf("Expected missing file, got %v %v", exists, err)
	}

	empty := filepath.Join(dir, "empty.db")
	if err := os.WriteFile(empty, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if exists, _ := FileExists(empty); exists {
		t.Error("Expected empty file to count as missing")
	}

	full := filepath.Join(dir, "full.db")
	if err := os.WriteFile(full, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if exists, _ := FileExists(full); !exists {
		t.Error("Expected non-empty file to exist")
	}
}
