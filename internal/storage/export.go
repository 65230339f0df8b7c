// ABOUTME: Export and import functionality for health data.
// ABOUTME: Supports JSON and YAML export; import restores records, sessions, and decisions verbatim.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportVersion is the current export format version.
const ExportVersion = "2.0"

// ExportData represents the full export format for health data.
type ExportData struct {
	Version    string                     `json:"version" yaml:"version"`
	ExportedAt time.Time                  `json:"exported_at" yaml:"exported_at"`
	Tool       string                     `json:"tool" yaml:"tool"`
	Records    []*models.HealthRecord     `json:"records" yaml:"records"`
	Locks      map[string]models.DataLock `json:"locks,omitempty" yaml:"locks,omitempty"`
	Sessions   []*ImportSession           `json:"sessions,omitempty" yaml:"sessions,omitempty"`
	Decisions  []audit.Event              `json:"decisions,omitempty" yaml:"decisions,omitempty"`
}

// FieldCount returns the number of field values across all records.
func (e *ExportData) FieldCount() int {
	n := 0
	for _, r := range e.Records {
		n += len(r.Fields)
	}
	return n
}

// GetAllData retrieves all data for export.
func (d *DB) GetAllData(ctx context.Context) (*ExportData, error) {
	records, err := d.ListRecords(ctx, "", time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	locks, err := d.ListDataLocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}

	sessions, err := d.ListSessions(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	decisions, err := d.ListDecisions(ctx, DecisionFilter{})
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	return &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Tool:       "health",
		Records:    records,
		Locks:      locks,
		Sessions:   sessions,
		Decisions:  decisions,
	}, nil
}

// ImportData restores data from an export. Stored fields are replaced
// unconditionally with the exported value and metadata. Sessions and
// decisions already present are kept. Everything but lock settings is one
// transaction.
func (d *DB) ImportData(ctx context.Context, data *ExportData) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range data.Records {
		if r.UserID == "" {
			return fmt.Errorf("import record %s: missing user id", formatDate(r.Date))
		}
		for name, fv := range r.Fields {
			if err := d.restoreField(ctx, tx, r.UserID, r.Date, name, fv); err != nil {
				return fmt.Errorf("import field %s on %s: %w", name, formatDate(r.Date), err)
			}
		}
	}

	for _, sess := range data.Sessions {
		if err := insertSession(ctx, tx, sess, true); err != nil {
			return fmt.Errorf("import session %s: %w", sess.ID, err)
		}
	}
	for _, e := range data.Decisions {
		if err := insertDecision(ctx, tx, e, true); err != nil {
			return fmt.Errorf("import decision %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	for userID, lock := range data.Locks {
		if err := d.SetDataLock(ctx, userID, lock); err != nil {
			return fmt.Errorf("import lock for %s: %w", userID, err)
		}
	}
	return nil
}

// ExportJSON exports all data as JSON.
func (d *DB) ExportJSON(ctx context.Context) ([]byte, error) {
	data, err := d.GetAllData(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ExportYAML exports all data as YAML.
func (d *DB) ExportYAML(ctx context.Context) ([]byte, error) {
	data, err := d.GetAllData(ctx)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(data)
}

// ParseExport decodes an export document. YAML is a superset of JSON, so
// both formats are accepted.
func ParseExport(raw []byte) (*ExportData, error) {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err == nil {
		return &data, nil
	}
	data = ExportData{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse export: %w", err)
	}
	return &data, nil
}
