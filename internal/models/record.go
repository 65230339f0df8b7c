// ABOUTME: Per-user per-date health record, field metadata, and data lock models.
// ABOUTME: Measurement is the normalized tuple every source adapter produces.
package models

import (
	"time"
)

// DateLayout is the calendar-date format used for records and lock dates.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its own calendar date.
// The wall-clock date of t is kept; only the time of day is dropped.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FieldMetadata is the sidecar stored next to each populated field.
// RecordedAt is when the health event happened, never the import time.
type FieldMetadata struct {
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
	Source     Source    `json:"source" yaml:"source"`
	DeviceID   string    `json:"device_id,omitempty" yaml:"device_id,omitempty"`
}

// NewFieldMetadata assembles the metadata written alongside a field value.
func NewFieldMetadata(recordedAt time.Time, source Source, deviceID string) FieldMetadata {
	return FieldMetadata{
		RecordedAt: recordedAt.UTC(),
		Source:     source,
		DeviceID:   deviceID,
	}
}

// FieldValue is one field of a record. Metadata is nil for legacy values
// written before metadata was tracked.
type FieldValue struct {
	Value    any            `json:"value" yaml:"value"`
	Metadata *FieldMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// HealthRecord holds every populated field for one user on one date.
type HealthRecord struct {
	UserID string                   `json:"user_id" yaml:"user_id"`
	Date   time.Time                `json:"date" yaml:"date"`
	Fields map[FieldName]FieldValue `json:"fields" yaml:"fields"`
}

// NewHealthRecord creates an empty record for userID on date.
func NewHealthRecord(userID string, date time.Time) *HealthRecord {
	return &HealthRecord{
		UserID: userID,
		Date:   Day(date),
		Fields: make(map[FieldName]FieldValue),
	}
}

// DataLock freezes every date on or before LockDate while Enabled.
type DataLock struct {
	Enabled  bool      `json:"enabled" yaml:"enabled"`
	LockDate time.Time `json:"lock_date" yaml:"lock_date"`
}

// Covers reports whether date falls inside the lock, at day granularity.
func (l DataLock) Covers(date time.Time) bool {
	if !l.Enabled {
		return false
	}
	return !Day(date).After(Day(l.LockDate))
}

// Measurement is one normalized field reading handed to the engine.
type Measurement struct {
	UserID     string    `json:"user_id" yaml:"user_id"`
	Date       time.Time `json:"date" yaml:"date"`
	Field      FieldName `json:"field" yaml:"field"`
	Value      any       `json:"value" yaml:"value"`
	Source     Source    `json:"source" yaml:"source"`
	RecordedAt time.Time `json:"recorded_at" yaml:"recorded_at"`
	DeviceID   string    `json:"device_id,omitempty" yaml:"device_id,omitempty"`
}

// Metadata returns the metadata that accompanies the value if it is written.
func (m Measurement) Metadata() FieldMetadata {
	return NewFieldMetadata(m.RecordedAt, m.Source, m.DeviceID)
}

// FieldSnapshot is the stored state of one field as read before a decision.
type FieldSnapshot struct {
	Exists   bool
	Value    any
	Metadata *FieldMetadata
}

// Version returns the compare-and-swap token for the snapshot.
func (s FieldSnapshot) Version() FieldVersion {
	if !s.Exists {
		return FieldVersion{}
	}
	v := FieldVersion{Exists: true}
	if s.Metadata != nil {
		v.Source = s.Metadata.Source
		v.RecordedAt = s.Metadata.RecordedAt
	}
	return v
}

// FieldVersion identifies the stored metadata a write expects to replace.
// A zero FieldVersion means the field must not exist yet; an existing legacy
// value without metadata has Exists set and an empty Source.
type FieldVersion struct {
	Exists     bool
	Source     Source
	RecordedAt time.Time
}

// FieldHistoryEntry is one stored field's metadata, used for stale scans.
type FieldHistoryEntry struct {
	Field    FieldName
	Date     time.Time
	Metadata FieldMetadata
}

// Snapshot returns the stored state of field in the record. A nil record
// yields an empty snapshot.
func (r *HealthRecord) Snapshot(field FieldName) FieldSnapshot {
	if r == nil {
		return FieldSnapshot{}
	}
	fv, ok := r.Fields[field]
	if !ok {
		return FieldSnapshot{}
	}
	return FieldSnapshot{Exists: true, Value: fv.Value, Metadata: fv.Metadata}
}
