// ABOUTME: Per-field record storage with metadata for SQLite.
// ABOUTME: Writes are compare-and-swap on the stored (source, recorded_at) version.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/models"
)

// Compile-time check that DB implements Repository.
var _ Repository = (*DB)(nil)

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// GetField returns the stored state of one field.
func (d *DB) GetField(ctx context.Context, userID string, date time.Time, field models.FieldName) (models.FieldSnapshot, error) {
	query := `
		SELECT field_name, value, source, recorded_at, device_id
		FROM health_fields
		WHERE user_id = ? AND date = ? AND field_name = ?
	`
	row := d.db.QueryRowContext(ctx, query, userID, formatDate(date), string(field))

	_, fv, err := scanField(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FieldSnapshot{}, nil
		}
		return models.FieldSnapshot{}, fmt.Errorf("get field: %w", err)
	}
	return models.FieldSnapshot{Exists: true, Value: fv.Value, Metadata: fv.Metadata}, nil
}

// GetFieldMetadata returns the metadata of every field on date that has any.
func (d *DB) GetFieldMetadata(ctx context.Context, userID string, date time.Time) (map[models.FieldName]models.FieldMetadata, error) {
	rec, err := d.GetRecord(ctx, userID, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return map[models.FieldName]models.FieldMetadata{}, nil
		}
		return nil, err
	}
	out := make(map[models.FieldName]models.FieldMetadata, len(rec.Fields))
	for name, fv := range rec.Fields {
		if fv.Metadata != nil {
			out[name] = *fv.Metadata
		}
	}
	return out, nil
}

// GetRecord returns every stored field for userID on date.
func (d *DB) GetRecord(ctx context.Context, userID string, date time.Time) (*models.HealthRecord, error) {
	query := `
		SELECT field_name, value, source, recorded_at, device_id
		FROM health_fields
		WHERE user_id = ? AND date = ?
		ORDER BY field_name
	`
	rows, err := d.db.QueryContext(ctx, query, userID, formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	defer rows.Close()

	rec := models.NewHealthRecord(userID, date)
	for rows.Next() {
		name, fv, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("get record: %w", err)
		}
		rec.Fields[name] = fv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if len(rec.Fields) == 0 {
		return nil, fmt.Errorf("record %s: %w", formatDate(date), ErrNotFound)
	}
	return rec, nil
}

// ListRecords returns records for userID between from and to inclusive,
// newest date first. A zero from or to leaves that side open.
func (d *DB) ListRecords(ctx context.Context, userID string, from, to time.Time) ([]*models.HealthRecord, error) {
	query := `
		SELECT user_id, date, field_name, value, source, recorded_at, device_id
		FROM health_fields
		WHERE (? = '' OR user_id = ?)
	`
	args := []interface{}{userID, userID}
	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		query += " AND date <= ?"
		args = append(args, formatDate(to))
	}
	query += " ORDER BY date DESC, user_id, field_name"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*models.HealthRecord
	var cur *models.HealthRecord
	for rows.Next() {
		var uid, dateStr string
		var f fieldRow
		if err := rows.Scan(&uid, &dateStr, &f.name, &f.value, &f.source, &f.recordedAt, &f.deviceID); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		date, err := models.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date in database: %w", err)
		}
		name, fv, err := f.decode()
		if err != nil {
			return nil, err
		}
		if cur == nil || cur.UserID != uid || !cur.Date.Equal(date) {
			cur = models.NewHealthRecord(uid, date)
			records = append(records, cur)
		}
		cur.Fields[name] = fv
	}
	return records, rows.Err()
}

// WriteField stores value and meta for a field if the stored version still
// matches expected. It returns ErrConflict when another writer got there
// first. Value and metadata change in a single statement.
func (d *DB) WriteField(ctx context.Context, userID string, date time.Time, field models.FieldName, value any, meta models.FieldMetadata, expected models.FieldVersion) error {
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("write field: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	var result sql.Result
	if !expected.Exists {
		result, err = d.db.ExecContext(ctx, `
			INSERT INTO health_fields (user_id, date, field_name, value, source, recorded_at, device_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, date, field_name) DO NOTHING`,
			userID, formatDate(date), string(field), raw,
			string(meta.Source), formatTimestamp(meta.RecordedAt), nullString(meta.DeviceID), now)
	} else if expected.Source == "" {
		// A row without a source reads back as a legacy value whatever its
		// recorded_at holds, so only the missing source is compared.
		result, err = d.db.ExecContext(ctx, `
			UPDATE health_fields
			SET value = ?, source = ?, recorded_at = ?, device_id = ?, updated_at = ?
			WHERE user_id = ? AND date = ? AND field_name = ?
			  AND source IS NULL`,
			raw, string(meta.Source), formatTimestamp(meta.RecordedAt), nullString(meta.DeviceID), now,
			userID, formatDate(date), string(field))
	} else {
		result, err = d.db.ExecContext(ctx, `
			UPDATE health_fields
			SET value = ?, source = ?, recorded_at = ?, device_id = ?, updated_at = ?
			WHERE user_id = ? AND date = ? AND field_name = ?
			  AND source = ? AND recorded_at IS ?`,
			raw, string(meta.Source), formatTimestamp(meta.RecordedAt), nullString(meta.DeviceID), now,
			userID, formatDate(date), string(field),
			string(expected.Source), formatTimestamp(expected.RecordedAt))
	}
	if err != nil {
		return fmt.Errorf("write field: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write field: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("write %s on %s: %w", field, formatDate(date), ErrConflict)
	}
	return nil
}

// restoreField writes a field unconditionally. Metadata without a source
// is dropped, so the value is stored as one of unknown origin. Used only by
// ImportData.
func (d *DB) restoreField(ctx context.Context, tx *sql.Tx, userID string, date time.Time, field models.FieldName, fv models.FieldValue) error {
	raw, err := encodeValue(fv.Value)
	if err != nil {
		return err
	}
	var source, deviceID, recordedAt interface{}
	if fv.Metadata != nil && fv.Metadata.Source != "" {
		source = string(fv.Metadata.Source)
		deviceID = nullString(fv.Metadata.DeviceID)
		recordedAt = formatTimestamp(fv.Metadata.RecordedAt)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO health_fields (user_id, date, field_name, value, source, recorded_at, device_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date, field_name) DO UPDATE SET
			value = excluded.value,
			source = excluded.source,
			recorded_at = excluded.recorded_at,
			device_id = excluded.device_id,
			updated_at = excluded.updated_at`,
		userID, formatDate(date), string(field), raw, source, recordedAt, deviceID,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// ListFieldHistory returns the metadata of every field that has any.
func (d *DB) ListFieldHistory(ctx context.Context, userID string) ([]models.FieldHistoryEntry, error) {
	query := `
		SELECT field_name, date, source, recorded_at, device_id
		FROM health_fields
		WHERE user_id = ? AND source IS NOT NULL AND recorded_at IS NOT NULL
		ORDER BY field_name, recorded_at DESC
	`
	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list field history: %w", err)
	}
	defer rows.Close()

	var entries []models.FieldHistoryEntry
	for rows.Next() {
		var name, dateStr, source, recordedAt string
		var deviceID sql.NullString
		if err := rows.Scan(&name, &dateStr, &source, &recordedAt, &deviceID); err != nil {
			return nil, fmt.Errorf("scan field history: %w", err)
		}
		date, err := models.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date in database: %w", err)
		}
		at, err := parseTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.FieldHistoryEntry{
			Field:    models.FieldName(name),
			Date:     date,
			Metadata: models.NewFieldMetadata(at, models.Source(source), deviceID.String),
		})
	}
	return entries, rows.Err()
}

// fieldRow holds the raw columns of one health_fields row.
type fieldRow struct {
	name       string
	value      string
	source     sql.NullString
	recordedAt sql.NullString
	deviceID   sql.NullString
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanField(row rowScanner) (models.FieldName, models.FieldValue, error) {
	var f fieldRow
	if err := row.Scan(&f.name, &f.value, &f.source, &f.recordedAt, &f.deviceID); err != nil {
		return "", models.FieldValue{}, err
	}
	return f.decode()
}

func (f fieldRow) decode() (models.FieldName, models.FieldValue, error) {
	value, err := decodeValue(f.value)
	if err != nil {
		return "", models.FieldValue{}, fmt.Errorf("decode %s value: %w", f.name, err)
	}
	fv := models.FieldValue{Value: value}
	if f.source.Valid && f.source.String != "" {
		meta := models.FieldMetadata{Source: models.Source(f.source.String), DeviceID: f.deviceID.String}
		if f.recordedAt.Valid {
			meta.RecordedAt, err = parseTimestamp(f.recordedAt.String)
			if err != nil {
				return "", models.FieldValue{}, err
			}
		}
		fv.Metadata = &meta
	}
	return models.FieldName(f.name), fv, nil
}

func encodeValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(data), nil
}

func decodeValue(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func formatDate(t time.Time) string {
	return models.Day(t).Format(models.DateLayout)
}

// formatTimestamp renders t for storage, or nil for the zero time so that
// it compares as NULL.
func formatTimestamp(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp in database: %w", err)
	}
	return t, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
