// ABOUTME: Per-user profile settings stored in Charm KV and synced across devices.
// ABOUTME: Holds the data lock so every device applies the same freeze.
package charm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/health/internal/models"
)

// profile is the stored form of a user's settings.
type profile struct {
	UserID          string    `json:"user_id"`
	DataLockEnabled bool      `json:"data_lock_enabled"`
	DataLockDate    string    `json:"data_lock_date,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func profileKey(userID string) string {
	return ProfilePrefix + userID
}

func encodeProfile(userID string, lock models.DataLock, now time.Time) ([]byte, error) {
	p := profile{
		UserID:          userID,
		DataLockEnabled: lock.Enabled,
		UpdatedAt:       now.UTC(),
	}
	if !lock.LockDate.IsZero() {
		p.DataLockDate = models.Day(lock.LockDate).Format(models.DateLayout)
	}
	return json.Marshal(p)
}

func decodeProfile(data []byte) (models.DataLock, error) {
	var p profile
	if err := json.Unmarshal(data, &p); err != nil {
		return models.DataLock{}, err
	}
	lock := models.DataLock{Enabled: p.DataLockEnabled}
	if p.DataLockDate != "" {
		date, err := models.ParseDate(p.DataLockDate)
		if err != nil {
			return models.DataLock{}, fmt.Errorf("invalid lock date %q: %w", p.DataLockDate, err)
		}
		lock.LockDate = date
	}
	return lock, nil
}

// GetDataLock returns the user's lock settings. Users without a profile are unlocked.
func (c *Client) GetDataLock(_ context.Context, userID string) (models.DataLock, error) {
	data, err := c.get(profileKey(userID))
	if err != nil {
		return models.DataLock{}, fmt.Errorf("get profile: %w", err)
	}
	if data == nil {
		return models.DataLock{}, nil
	}
	lock, err := decodeProfile(data)
	if err != nil {
		return models.DataLock{}, fmt.Errorf("decode profile: %w", err)
	}
	return lock, nil
}

// SetDataLock stores the user's lock settings and syncs them.
func (c *Client) SetDataLock(_ context.Context, userID string, lock models.DataLock) error {
	if lock.Enabled && lock.LockDate.IsZero() {
		return fmt.Errorf("set data lock: enabled lock needs a date")
	}
	data, err := encodeProfile(userID, lock, time.Now())
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := c.set(profileKey(userID), data); err != nil {
		return fmt.Errorf("set data lock: %w", err)
	}
	return nil
}

// ClearProfile removes the user's profile, which unlocks every date.
func (c *Client) ClearProfile(_ context.Context, userID string) error {
	if err := c.delete(profileKey(userID)); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	return nil
}

// ListDataLocks returns the lock settings of every stored profile.
func (c *Client) ListDataLocks(ctx context.Context) (map[string]models.DataLock, error) {
	keys, err := c.keysByPrefix(ProfilePrefix)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	locks := make(map[string]models.DataLock, len(keys))
	for _, key := range keys {
		userID := strings.TrimPrefix(key, ProfilePrefix)
		lock, err := c.GetDataLock(ctx, userID)
		if err != nil {
			return nil, err
		}
		locks[userID] = lock
	}
	return locks, nil
}
