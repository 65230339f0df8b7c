// ABOUTME: Decision audit log and import session persistence for SQLite.
// ABOUTME: Implements audit.Recorder so the ingest pipeline can log straight to the database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/models"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// RecordDecision appends one decision event to the log.
func (d *DB) RecordDecision(ctx context.Context, e audit.Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if err := insertDecision(ctx, d.db, e, false); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// insertDecision writes e. With keepExisting an event whose ID is already
// logged is left alone, so restores can be repeated.
func insertDecision(ctx context.Context, ex execer, e audit.Event, keepExisting bool) error {
	oldValue, err := encodeOptional(e.OldValue)
	if err != nil {
		return err
	}
	newValue, err := encodeOptional(e.NewValue)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO decision_log (id, session_id, user_id, date, field_name, status, reason,
			old_value, new_value, source, recorded_at, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if keepExisting {
		query += " ON CONFLICT (id) DO NOTHING"
	}
	_, err = ex.ExecContext(ctx, query,
		e.ID.String(), nullString(e.SessionID), e.UserID, formatDate(e.Date), string(e.Field),
		string(e.Status), e.Reason, oldValue, newValue, string(e.Source),
		formatTimestamp(e.RecordedAt), nullString(e.Detail), e.CreatedAt.UTC().Format(timestampLayout))
	return err
}

// ListDecisions returns logged decisions, most recent first.
func (d *DB) ListDecisions(ctx context.Context, filter DecisionFilter) ([]audit.Event, error) {
	query := `
		SELECT id, session_id, user_id, date, field_name, status, reason,
			old_value, new_value, source, recorded_at, detail, created_at
		FROM decision_log
		WHERE 1 = 1
	`
	var args []interface{}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.Field != "" {
		query += " AND field_name = ?"
		args = append(args, string(filter.Field))
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var id, dateStr, field, status, source, createdAt string
		var sessionID, oldValue, newValue, recordedAt, detail sql.NullString

		if err := rows.Scan(&id, &sessionID, &e.UserID, &dateStr, &field, &status, &e.Reason,
			&oldValue, &newValue, &source, &recordedAt, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}

		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid decision id %q: %w", id, err)
		}
		if e.Date, err = models.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("invalid date in database: %w", err)
		}
		e.SessionID = sessionID.String
		e.Field = models.FieldName(field)
		e.Status = audit.Status(status)
		e.Source = models.Source(source)
		e.Detail = detail.String
		if recordedAt.Valid {
			if e.RecordedAt, err = parseTimestamp(recordedAt.String); err != nil {
				return nil, err
			}
		}
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		if oldValue.Valid {
			if e.OldValue, err = decodeValue(oldValue.String); err != nil {
				return nil, fmt.Errorf("decode old value of %s: %w", id, err)
			}
		}
		if newValue.Valid {
			if e.NewValue, err = decodeValue(newValue.String); err != nil {
				return nil, fmt.Errorf("decode new value of %s: %w", id, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateSession stores a newly started import session.
func (d *DB) CreateSession(ctx context.Context, s *ImportSession) error {
	if err := insertSession(ctx, d.db, s, false); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// insertSession writes s with its counts. With keepExisting a session whose
// ID already exists is left alone.
func insertSession(ctx context.Context, ex execer, s *ImportSession, keepExisting bool) error {
	var finishedAt interface{}
	if s.FinishedAt != nil {
		finishedAt = s.FinishedAt.UTC().Format(timestampLayout)
	}
	query := `
		INSERT INTO import_sessions (id, user_id, source, started_at, finished_at, imported, skipped, errors, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if keepExisting {
		query += " ON CONFLICT (id) DO NOTHING"
	}
	_, err := ex.ExecContext(ctx, query,
		s.ID, s.UserID, s.Source, s.StartedAt.UTC().Format(timestampLayout), finishedAt,
		s.Tally.Imported, s.Tally.Skipped, s.Tally.Errors, s.Cancelled)
	return err
}

// FinishSession stores the final counts of a session.
func (d *DB) FinishSession(ctx context.Context, s *ImportSession) error {
	if s.FinishedAt == nil {
		now := time.Now().UTC()
		s.FinishedAt = &now
	}
	result, err := d.db.ExecContext(ctx, `
		UPDATE import_sessions
		SET finished_at = ?, imported = ?, skipped = ?, errors = ?, cancelled = ?
		WHERE id = ?`,
		s.FinishedAt.UTC().Format(timestampLayout), s.Tally.Imported, s.Tally.Skipped,
		s.Tally.Errors, s.Cancelled, s.ID)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

// ListSessions returns import sessions, most recent first.
func (d *DB) ListSessions(ctx context.Context, userID string, limit int) ([]*ImportSession, error) {
	query := `
		SELECT id, user_id, source, started_at, finished_at, imported, skipped, errors, cancelled
		FROM import_sessions
		WHERE (? = '' OR user_id = ?)
		ORDER BY started_at DESC
	`
	args := []interface{}{userID, userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*ImportSession
	for rows.Next() {
		var s ImportSession
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.Source, &startedAt, &finishedAt,
			&s.Tally.Imported, &s.Tally.Skipped, &s.Tally.Errors, &s.Cancelled); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var err error
		if s.StartedAt, err = parseTimestamp(startedAt); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			t, err := parseTimestamp(finishedAt.String)
			if err != nil {
				return nil, err
			}
			s.FinishedAt = &t
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}

// encodeOptional encodes a logged value. Values JSON cannot represent,
// such as NaN, are logged as their text form.
func encodeOptional(v any) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := encodeValue(v)
	if err != nil {
		return encodeValue(fmt.Sprint(v))
	}
	return raw, nil
}
