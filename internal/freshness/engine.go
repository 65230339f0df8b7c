// ABOUTME: Freshness decision engine deciding whether a measurement overwrites a field.
// ABOUTME: Evaluate is pure; Decide adds the lock check and snapshot read around it.
package freshness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/logging"
	"github.com/harperreed/health/internal/models"
	"github.com/rs/zerolog"
)

// DefaultPrimaryTieGap is how much newer a different primary source must be
// before it replaces another primary source's value.
const DefaultPrimaryTieGap = 2 * time.Hour

// SnapshotReader loads the stored state of one field.
type SnapshotReader interface {
	GetField(ctx context.Context, userID string, date time.Time, field models.FieldName) (models.FieldSnapshot, error)
}

// Engine reconciles incoming measurements against stored values.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	table         *Table
	primaryTieGap time.Duration
	locks         LockChecker
	snapshots     SnapshotReader
	logger        zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTable replaces the default priority table.
func WithTable(t *Table) Option {
	return func(e *Engine) { e.table = t }
}

// WithPrimaryTieGap sets the minimum gap for a primary-vs-primary replacement.
func WithPrimaryTieGap(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.primaryTieGap = d
		}
	}
}

// WithLockChecker sets the lock checker used by Decide.
func WithLockChecker(c LockChecker) Option {
	return func(e *Engine) { e.locks = c }
}

// WithSnapshotReader sets the field reader used by Decide.
func WithSnapshotReader(r SnapshotReader) Option {
	return func(e *Engine) { e.snapshots = r }
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logging.Component(l, "freshness") }
}

// NewEngine creates an engine with the default table and tie gap.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		table:         DefaultTable(),
		primaryTieGap: DefaultPrimaryTieGap,
		logger:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the priority table the engine ranks sources with.
func (e *Engine) Table() *Table {
	return e.table
}

// Tier resolves a tier with the engine's table.
func (e *Engine) Tier(source models.Source, field models.FieldName) models.Tier {
	if !source.IsKnown() {
		e.logger.Debug().Str("source", string(source)).Msg("unknown source ranked tertiary")
	}
	return e.table.Tier(source, field)
}

// Decide checks the lock, reads the stored field, and evaluates m.
// Any failure yields a skip with ReasonInternalError, never an overwrite.
func (e *Engine) Decide(ctx context.Context, m models.Measurement) Decision {
	d, _ := e.DecideWithSnapshot(ctx, nil, nil, m)
	return d
}

// DecideWithSnapshot is Decide with an explicit lock checker and snapshot
// reader, also returning the snapshot the decision was made against so the
// caller can use its version for a compare-and-swap write. Nil arguments
// fall back to the engine's own.
func (e *Engine) DecideWithSnapshot(ctx context.Context, locks LockChecker, snapshots SnapshotReader, m models.Measurement) (Decision, models.FieldSnapshot) {
	if err := validate(m); err != nil {
		return failed(err), models.FieldSnapshot{}
	}
	if locks == nil {
		locks = e.locks
	}
	if snapshots == nil {
		snapshots = e.snapshots
	}
	if locks == nil || snapshots == nil {
		return failed(errors.New("engine not configured for lookups")), models.FieldSnapshot{}
	}

	locked, err := locks.IsLocked(ctx, m.UserID, m.Date)
	if err != nil {
		if !errors.Is(err, ErrLockCheck) {
			err = fmt.Errorf("%w: %v", ErrLockCheck, err)
		}
		e.logger.Warn().Err(err).Str("field", string(m.Field)).Msg("skipping write")
		return failed(err), models.FieldSnapshot{}
	}
	if locked {
		return Decision{Reason: ReasonDataLocked}, models.FieldSnapshot{}
	}

	snap, err := snapshots.GetField(ctx, m.UserID, m.Date, m.Field)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrMetadataRead, err)
		e.logger.Warn().Err(err).Str("field", string(m.Field)).Msg("skipping write")
		return failed(err), models.FieldSnapshot{}
	}
	return e.Evaluate(m, false, snap), snap
}

// Evaluate runs the decision procedure on m against the stored snapshot.
// It is pure: the same inputs always produce the same decision.
func (e *Engine) Evaluate(m models.Measurement, locked bool, snap models.FieldSnapshot) Decision {
	if err := validate(m); err != nil {
		return failed(err)
	}

	if locked {
		return Decision{Reason: ReasonDataLocked}
	}

	if !IsMeaningful(m.Value) {
		return reject(ReasonMeaninglessValue, snap.Metadata)
	}

	if !snap.Exists || !IsMeaningful(snap.Value) {
		return accept(ReasonNoExistingData)
	}

	newTier := e.Tier(m.Source, m.Field)

	// Legacy values without metadata are assumed primary.
	if snap.Metadata == nil {
		if newTier <= models.TierPrimary {
			return accept(ReasonUnknownOriginReplaced)
		}
		return reject(ReasonUnknownOriginProtected, nil)
	}

	existing := snap.Metadata
	existingTier := e.Tier(existing.Source, m.Field)

	if newTier == models.TierManual && existingTier != models.TierManual {
		return accept(ReasonManualOverrides)
	}
	if existingTier == models.TierManual && newTier != models.TierManual {
		return reject(ReasonManualProtected, existing)
	}
	// Timestamps are ignored here, including super-primary
	// overrides on their designated field.
	if newTier.Outranks(existingTier) {
		return accept(ReasonHigherPriorityOverrides)
	}
	if newTier == models.TierSecondary && existingTier <= models.TierPrimary {
		return reject(ReasonSecondaryCannotOverride, existing)
	}
	if existingTier.Outranks(newTier) {
		return reject(ReasonLowerPriorityBlocked, existing)
	}

	if newTier == existingTier {
		if m.Source == existing.Source {
			return accept(ReasonSameSourceUpsert)
		}
		// Without a trusted stored timestamp recency cannot be shown, so
		// the stored value is kept.
		existingAt, trusted := TrustedRecordedAt(snap.Value, existing)
		if newTier == models.TierPrimary {
			if trusted && m.RecordedAt.Sub(existingAt) > e.primaryTieGap {
				return accept(ReasonPrimaryTieNewerWins)
			}
			return reject(ReasonPrimaryTieInsufficient, existing)
		}
		if trusted && m.RecordedAt.After(existingAt) {
			return accept(ReasonNewerSameTierWins)
		}
		return reject(ReasonExistingIsNewer, existing)
	}

	return reject(ReasonUnresolvedConflict, existing)
}

func validate(m models.Measurement) error {
	switch {
	case m.UserID == "":
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	case m.Field == "":
		return fmt.Errorf("%w: empty field name", ErrInvalidInput)
	case m.Source == "":
		return fmt.Errorf("%w: empty source", ErrInvalidInput)
	case m.Date.IsZero():
		return fmt.Errorf("%w: missing date", ErrInvalidInput)
	case !ValidTimestamp(m.RecordedAt):
		return fmt.Errorf("%w: invalid recorded_at %v", ErrInvalidInput, m.RecordedAt)
	}
	return nil
}
