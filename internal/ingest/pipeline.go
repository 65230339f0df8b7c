// ABOUTME: Ingest pipeline running read, decide, compare-and-swap write per field.
// ABOUTME: Retries on write conflicts, caches lookups per batch, and records every decision.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/logging"
	"github.com/harperreed/health/internal/models"
	"github.com/harperreed/health/internal/storage"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// DefaultMaxRetries bounds how often a conflicting write is retried.
const DefaultMaxRetries = 5

// Store is the field storage the pipeline reads and writes.
type Store interface {
	freshness.SnapshotReader
	GetRecord(ctx context.Context, userID string, date time.Time) (*models.HealthRecord, error)
	WriteField(ctx context.Context, userID string, date time.Time, field models.FieldName, value any, meta models.FieldMetadata, expected models.FieldVersion) error
}

// SessionStore persists import sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *storage.ImportSession) error
	FinishSession(ctx context.Context, s *storage.ImportSession) error
}

// Outcome is what happened to one measurement.
type Outcome struct {
	Measurement models.Measurement
	Decision    freshness.Decision
	Event       audit.Event
	Attempts    int
	Written     bool
}

// Result summarizes a batch run.
type Result struct {
	Session  storage.ImportSession
	Outcomes []Outcome
}

// Pipeline feeds measurements through the engine into the store.
type Pipeline struct {
	engine     *freshness.Engine
	store      Store
	locks      freshness.LockChecker
	recorder   audit.Recorder
	sessions   SessionStore
	maxRetries int
	dryRun     bool
	logger     zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRecorder sets where decision events go.
func WithRecorder(r audit.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithSessions persists a session row per batch.
func WithSessions(s SessionStore) Option {
	return func(p *Pipeline) { p.sessions = s }
}

// WithMaxRetries sets the conflict retry bound.
func WithMaxRetries(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithDryRun decides without writing, recording, or creating sessions.
func WithDryRun(dryRun bool) Option {
	return func(p *Pipeline) { p.dryRun = dryRun }
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.Component(l, "ingest") }
}

// New creates a pipeline deciding with engine, reading and writing store,
// and checking locks with locks.
func New(engine *freshness.Engine, store Store, locks freshness.LockChecker, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:     engine,
		store:      store,
		locks:      locks,
		maxRetries: DefaultMaxRetries,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest reconciles a single measurement with fresh lookups.
func (p *Pipeline) Ingest(ctx context.Context, m models.Measurement) Outcome {
	return p.process(ctx, "", m, p.locks, nil)
}

// Run reconciles a batch. Each (date, field) is decided independently.
// Cancelling ctx stops the batch between measurements; the session is
// still finished and ctx's error is returned with the partial result.
func (p *Pipeline) Run(ctx context.Context, source string, batch []models.Measurement) (*Result, error) {
	return p.RunWithRejects(ctx, source, batch, nil)
}

// RunWithRejects is Run for a batch whose unreadable rows were set aside by
// LoadRows. Each rejected row is counted and logged as an error decision.
func (p *Pipeline) RunWithRejects(ctx context.Context, source string, batch []models.Measurement, rejected []RowError) (*Result, error) {
	session := &storage.ImportSession{
		ID:        ulid.Make().String(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
	switch {
	case len(batch) > 0:
		session.UserID = batch[0].UserID
	case len(rejected) > 0:
		session.UserID = rejected[0].Measurement.UserID
	}

	if p.sessions != nil && !p.dryRun {
		if err := p.sessions.CreateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("start session: %w", err)
		}
	}

	locks := freshness.CachedLocks(p.locks)
	records := newRecordCache(p.store)
	res := &Result{}

	for _, row := range rejected {
		out := p.reject(ctx, session, row)
		res.Outcomes = append(res.Outcomes, out)
		session.Tally.Add(out.Event)
	}

	for _, m := range batch {
		if ctx.Err() != nil {
			session.Cancelled = true
			break
		}
		out := p.process(ctx, session.ID, m, locks, records)
		res.Outcomes = append(res.Outcomes, out)
		session.Tally.Add(out.Event)
	}

	now := time.Now().UTC()
	session.FinishedAt = &now
	if p.sessions != nil && !p.dryRun {
		if err := p.sessions.FinishSession(context.WithoutCancel(ctx), session); err != nil {
			p.logger.Warn().Err(err).Str("session", session.ID).Msg("failed to finish session")
		}
	}

	p.logger.Info().
		Str("session", session.ID).
		Str("source", source).
		Int("imported", session.Tally.Imported).
		Int("skipped", session.Tally.Skipped).
		Int("errors", session.Tally.Errors).
		Bool("cancelled", session.Cancelled).
		Msg("batch finished")

	res.Session = *session
	if session.Cancelled {
		return res, ctx.Err()
	}
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, sessionID string, m models.Measurement, locks freshness.LockChecker, records *recordCache) Outcome {
	out := Outcome{Measurement: m}
	var snap models.FieldSnapshot

	for {
		out.Attempts++

		// The batch cache only serves the first attempt; retries read the store.
		var reader freshness.SnapshotReader = p.store
		if out.Attempts == 1 && records != nil {
			reader = records
		}

		out.Decision, snap = p.engine.DecideWithSnapshot(ctx, locks, reader, m)
		if !out.Decision.Overwrite || p.dryRun {
			break
		}

		meta := m.Metadata()
		err := p.store.WriteField(ctx, m.UserID, m.Date, m.Field, m.Value, meta, snap.Version())
		if err == nil {
			out.Written = true
			records.remember(m.UserID, m.Date, m.Field, models.FieldValue{Value: m.Value, Metadata: &meta})
			break
		}

		if errors.Is(err, storage.ErrConflict) && out.Attempts <= p.maxRetries {
			p.logger.Debug().
				Str("field", string(m.Field)).
				Str("date", m.Date.Format(models.DateLayout)).
				Int("attempt", out.Attempts).
				Msg("write conflict, retrying")
			records.invalidate(m.UserID, m.Date)
			continue
		}

		out.Decision = freshness.Decision{
			Reason: freshness.ReasonInternalError,
			Err:    fmt.Errorf("write field after %d attempts: %w", out.Attempts, err),
		}
		break
	}

	if !snap.Exists && blockedByLock(out.Decision) {
		snap = p.storedValue(ctx, m, records)
	}
	out.Event = audit.NewEvent(sessionID, m, snap.Value, out.Decision)
	if p.recorder != nil && !p.dryRun {
		if err := p.recorder.RecordDecision(ctx, out.Event); err != nil {
			p.logger.Warn().Err(err).Str("field", string(m.Field)).Msg("failed to record decision")
		}
	}
	return out
}

// reject records an unreadable row as an error decision.
func (p *Pipeline) reject(ctx context.Context, session *storage.ImportSession, row RowError) Outcome {
	m := row.Measurement
	if m.UserID == "" {
		m.UserID = session.UserID
	}
	out := Outcome{
		Measurement: m,
		Decision: freshness.Decision{
			Reason: freshness.ReasonInternalError,
			Err:    fmt.Errorf("%w: %v", freshness.ErrInvalidInput, row),
		},
	}
	out.Event = audit.NewEvent(session.ID, m, nil, out.Decision)
	if p.recorder != nil && !p.dryRun {
		if err := p.recorder.RecordDecision(ctx, out.Event); err != nil {
			p.logger.Warn().Err(err).Int("row", row.Row).Msg("failed to record decision")
		}
	}
	return out
}

// blockedByLock reports whether d was made before the stored field was read.
func blockedByLock(d freshness.Decision) bool {
	return d.Reason == freshness.ReasonDataLocked || errors.Is(d.Err, freshness.ErrLockCheck)
}

// storedValue reads the field for the audit log only. A failed read leaves
// the old value empty.
func (p *Pipeline) storedValue(ctx context.Context, m models.Measurement, records *recordCache) models.FieldSnapshot {
	var reader freshness.SnapshotReader = p.store
	if records != nil {
		reader = records
	}
	snap, err := reader.GetField(ctx, m.UserID, m.Date, m.Field)
	if err != nil {
		p.logger.Debug().Err(err).Str("field", string(m.Field)).Msg("could not read stored value for audit")
		return models.FieldSnapshot{}
	}
	return snap
}

// recordCache memoizes per-date records for one batch. A nil cache reads
// nothing and stores nothing.
type recordCache struct {
	store   Store
	records map[string]*models.HealthRecord
}

func newRecordCache(store Store) *recordCache {
	return &recordCache{store: store, records: make(map[string]*models.HealthRecord)}
}

func cacheKey(userID string, date time.Time) string {
	return userID + "|" + models.Day(date).Format(models.DateLayout)
}

// GetField implements freshness.SnapshotReader.
func (c *recordCache) GetField(ctx context.Context, userID string, date time.Time, field models.FieldName) (models.FieldSnapshot, error) {
	key := cacheKey(userID, date)
	rec, ok := c.records[key]
	if !ok {
		var err error
		rec, err = c.store.GetRecord(ctx, userID, date)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return models.FieldSnapshot{}, err
			}
			rec = models.NewHealthRecord(userID, date)
		}
		c.records[key] = rec
	}
	return rec.Snapshot(field), nil
}

func (c *recordCache) remember(userID string, date time.Time, field models.FieldName, fv models.FieldValue) {
	if c == nil {
		return
	}
	if rec, ok := c.records[cacheKey(userID, date)]; ok {
		rec.Fields[field] = fv
	}
}

func (c *recordCache) invalidate(userID string, date time.Time) {
	if c == nil {
		return
	}
	delete(c.records, cacheKey(userID, date))
}
