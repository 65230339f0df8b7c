// ABOUTME: Tests for per-user data lock settings.
// ABOUTME: Covers defaults, upserts, validation, and listing.
package storage

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/health/internal/models"
)

func TestGetDataLockDefaultsToUnlocked(t *testing.T) {
	db := setupTestDB(t)

	lock, err := db.GetDataLock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetDataLock failed: %v", err)
	}
	if lock.Enabled {
		t.Error("Expected users without settings to be unlocked")
	}
}

func TestSetAndGetDataLock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lockDate := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	if err := db.SetDataLock(ctx, "u1", models.DataLock{Enabled: true, LockDate: lockDate}); err != nil {
		t.Fatalf("SetDataLock failed: %v", err)
	}

	lock, err := db.GetDataLock(ctx, "u1")
	if err != nil {
		t.Fatalf("GetDataLock failed: %v", err)
	}
	if !lock.Enabled || !lock.LockDate.Equal(lockDate) {
		t.Errorf("Unexpected lock: %+v", lock)
	}
	if !lock.Covers(lockDate) || lock.Covers(lockDate.AddDate(0, 0, 1)) {
		t.Error("Lock should cover its own date and nothing after")
	}

	// Disabling keeps the date but releases the lock.
	if err := db.SetDataLock(ctx, "u1", models.DataLock{Enabled: false, LockDate: lockDate}); err != nil {
		t.Fatalf("SetDataLock disable failed: %v", err)
	}
	lock, _ = db.GetDataLock(ctx, "u1")
	if lock.Enabled {
		t.Error("Expected lock to be disabled")
	}
}

func TestSetDataLockRequiresDate(t *testing.T) {
	db := setupTestDB(t)

	if err := db.SetDataLock(context.Background(), "u1", models.DataLock{Enabled: true}); err == nil {
		t.Error("Expected error enabling a lock without a date")
	}
}

func TestListDataLocks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lockDate := time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	_ = db.SetDataLock(ctx, "u1", models.DataLock{Enabled: true, LockDate: lockDate})
	_ = db.SetDataLock(ctx, "u2", models.DataLock{})

	locks, err := db.ListDataLocks(ctx)
	if err != nil {
		t.Fatalf("ListDataLocks failed: %v", err)
	}
	if len(locks) != 2 {
		t.Fatalf("Expected 2 locks, got %d", len(locks))
	}
	if !locks["u1"].Enabled || locks["u2"].Enabled {
		t.Errorf("Unexpected locks: %+v", locks)
	}
}
