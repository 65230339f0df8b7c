// ABOUTME: Data lock guard deciding whether a calendar date is frozen.
// ABOUTME: Fails closed by default; fail-open on settings read errors is opt-in.
package freshness

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/logging"
	"github.com/harperreed/health/internal/models"
	"github.com/rs/zerolog"
)

// LockSettingsReader loads a user's data lock settings.
type LockSettingsReader interface {
	GetDataLock(ctx context.Context, userID string) (models.DataLock, error)
}

// LockChecker answers whether a date is locked for a user.
type LockChecker interface {
	IsLocked(ctx context.Context, userID string, date time.Time) (bool, error)
}

// Guard implements LockChecker over a LockSettingsReader.
type Guard struct {
	settings LockSettingsReader
	failOpen bool
	logger   zerolog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithFailOpen makes the guard report "not locked" when settings cannot be
// read. Without it a read error is returned and the engine skips the write.
func WithFailOpen(failOpen bool) GuardOption {
	return func(g *Guard) { g.failOpen = failOpen }
}

// WithGuardLogger sets the logger used for fail-open warnings.
func WithGuardLogger(l zerolog.Logger) GuardOption {
	return func(g *Guard) { g.logger = logging.Component(l, "lock") }
}

// NewGuard creates a Guard reading settings from settings.
func NewGuard(settings LockSettingsReader, opts ...GuardOption) *Guard {
	g := &Guard{settings: settings, logger: logging.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsLocked reports whether date is on or before the user's lock date.
func (g *Guard) IsLocked(ctx context.Context, userID string, date time.Time) (bool, error) {
	lock, err := g.settings.GetDataLock(ctx, userID)
	if err != nil {
		if g.failOpen {
			g.logger.Warn().Err(err).Str("user", userID).Msg("lock settings unreadable, treating date as unlocked")
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrLockCheck, err)
	}
	return lock.Covers(date), nil
}

// lockCache memoizes lock answers per (user, day) for the life of a batch.
type lockCache struct {
	checker LockChecker
	answers map[string]bool
}

// CachedLocks wraps checker so each (user, day) is looked up once.
// The result is not safe for concurrent use; create one per batch.
func CachedLocks(checker LockChecker) LockChecker {
	return &lockCache{checker: checker, answers: make(map[string]bool)}
}

func (c *lockCache) IsLocked(ctx context.Context, userID string, date time.Time) (bool, error) {
	key := userID + "|" + models.Day(date).Format(models.DateLayout)
	if locked, ok := c.answers[key]; ok {
		return locked, nil
	}
	locked, err := c.checker.IsLocked(ctx, userID, date)
	if err != nil {
		return false, err
	}
	c.answers[key] = locked
	return locked, nil
}
