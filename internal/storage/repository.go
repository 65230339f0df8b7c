// ABOUTME: Repository interface for health data storage.
// ABOUTME: Defines the field metadata store, lock settings, audit log, and export contract.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/models"
)

var (
	// ErrConflict is returned by WriteField when the stored field no longer
	// matches the version the caller decided against.
	ErrConflict = errors.New("field changed since it was read")
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Repository defines the storage interface for health data.
// This interface allows swapping implementations (e.g., for testing).
type Repository interface {
	// Field metadata store
	GetField(ctx context.Context, userID string, date time.Time, field models.FieldName) (models.FieldSnapshot, error)
	GetFieldMetadata(ctx context.Context, userID string, date time.Time) (map[models.FieldName]models.FieldMetadata, error)
	GetRecord(ctx context.Context, userID string, date time.Time) (*models.HealthRecord, error)
	ListRecords(ctx context.Context, userID string, from, to time.Time) ([]*models.HealthRecord, error)
	WriteField(ctx context.Context, userID string, date time.Time, field models.FieldName, value any, meta models.FieldMetadata, expected models.FieldVersion) error
	ListFieldHistory(ctx context.Context, userID string) ([]models.FieldHistoryEntry, error)

	// Lock settings
	GetDataLock(ctx context.Context, userID string) (models.DataLock, error)
	SetDataLock(ctx context.Context, userID string, lock models.DataLock) error

	// Decision audit log and import sessions
	RecordDecision(ctx context.Context, e audit.Event) error
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]audit.Event, error)
	CreateSession(ctx context.Context, s *ImportSession) error
	FinishSession(ctx context.Context, s *ImportSession) error
	ListSessions(ctx context.Context, userID string, limit int) ([]*ImportSession, error)

	// Export/Import
	GetAllData(ctx context.Context) (*ExportData, error)
	ImportData(ctx context.Context, data *ExportData) error

	// Lifecycle
	Close() error
}

// DecisionFilter narrows ListDecisions. Zero fields match everything.
type DecisionFilter struct {
	UserID    string
	SessionID string
	Field     models.FieldName
	Limit     int
}

// ImportSession is one batch run of the ingest pipeline.
type ImportSession struct {
	ID         string      `json:"id" yaml:"id"`
	UserID     string      `json:"user_id" yaml:"user_id"`
	Source     string      `json:"source" yaml:"source"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Tally      audit.Tally `json:"tally" yaml:"tally"`
	Cancelled  bool        `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}
