// ABOUTME: Per-user data lock settings stored in SQLite.
// ABOUTME: A user without a settings row has no lock.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/models"
)

// GetDataLock returns the user's lock settings. Users without settings are unlocked.
func (d *DB) GetDataLock(ctx context.Context, userID string) (models.DataLock, error) {
	var enabled bool
	var lockDate sql.NullString
	err := d.db.QueryRowContext(ctx,
		`SELECT data_lock_enabled, data_lock_date FROM user_settings WHERE user_id = ?`,
		userID).Scan(&enabled, &lockDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DataLock{}, nil
		}
		return models.DataLock{}, fmt.Errorf("get data lock: %w", err)
	}

	lock := models.DataLock{Enabled: enabled}
	if lockDate.Valid && lockDate.String != "" {
		lock.LockDate, err = models.ParseDate(lockDate.String)
		if err != nil {
			return models.DataLock{}, fmt.Errorf("invalid lock date in database: %w", err)
		}
	}
	return lock, nil
}

// SetDataLock stores the user's lock settings.
func (d *DB) SetDataLock(ctx context.Context, userID string, lock models.DataLock) error {
	if lock.Enabled && lock.LockDate.IsZero() {
		return fmt.Errorf("set data lock: enabled lock needs a date")
	}
	var lockDate interface{}
	if !lock.LockDate.IsZero() {
		lockDate = formatDate(lock.LockDate)
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, data_lock_enabled, data_lock_date, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			data_lock_enabled = excluded.data_lock_enabled,
			data_lock_date = excluded.data_lock_date,
			updated_at = excluded.updated_at`,
		userID, lock.Enabled, lockDate, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set data lock: %w", err)
	}
	return nil
}

// ListDataLocks returns the lock settings of every user that has any.
func (d *DB) ListDataLocks(ctx context.Context) (map[string]models.DataLock, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT user_id, data_lock_enabled, data_lock_date FROM user_settings ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list data locks: %w", err)
	}
	defer rows.Close()

	locks := make(map[string]models.DataLock)
	for rows.Next() {
		var userID string
		var lock models.DataLock
		var lockDate sql.NullString
		if err := rows.Scan(&userID, &lock.Enabled, &lockDate); err != nil {
			return nil, fmt.Errorf("scan data lock: %w", err)
		}
		if lockDate.Valid && lockDate.String != "" {
			lock.LockDate, err = models.ParseDate(lockDate.String)
			if err != nil {
				return nil, fmt.Errorf("invalid lock date in database: %w", err)
			}
		}
		locks[userID] = lock
	}
	return locks, rows.Err()
}
