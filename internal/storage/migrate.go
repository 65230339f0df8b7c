// ABOUTME: Data migration between health databases.
// ABOUTME: Copies records, lock settings, import sessions, and the decision log.

package storage

import (
	"context"
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Records   int
	Fields    int
	Locks     int
	Sessions  int
	Decisions int
}

// MigrateData copies all records, lock settings, import sessions, and
// logged decisions from src to dst.
// Field metadata travels with each value, so the destination makes the
// same decisions the source would. Existing destination fields are replaced.
func MigrateData(ctx context.Context, src, dst Repository) (*MigrateSummary, error) {
	data, err := src.GetAllData(ctx)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	if err := dst.ImportData(ctx, data); err != nil {
		return nil, fmt.Errorf("write destination: %w", err)
	}

	return &MigrateSummary{
		Records:   len(data.Records),
		Fields:    data.FieldCount(),
		Locks:     len(data.Locks),
		Sessions:  len(data.Sessions),
		Decisions: len(data.Decisions),
	}, nil
}

// FileExists reports whether path exists and is a non-empty file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
	return info.Size() > 0, nil
}
