// ABOUTME: Decision audit events and recorders for import sessions.
// ABOUTME: One event per decision; tallies aggregate imported/skipped/error counts.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/models"
	"github.com/rs/zerolog"
)

// Status is the outcome class of a decision.
type Status string

const (
	StatusImported Status = "imported"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
)

// Event records one decision about one field on one date.
type Event struct {
	ID         uuid.UUID        `json:"id" yaml:"id"`
	SessionID  string           `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	UserID     string           `json:"user_id" yaml:"user_id"`
	Field      models.FieldName `json:"field" yaml:"field"`
	Date       time.Time        `json:"date" yaml:"date"`
	Status     Status           `json:"status" yaml:"status"`
	Reason     string           `json:"reason" yaml:"reason"`
	OldValue   any              `json:"old_value,omitempty" yaml:"old_value,omitempty"`
	NewValue   any              `json:"new_value,omitempty" yaml:"new_value,omitempty"`
	Source     models.Source    `json:"source" yaml:"source"`
	RecordedAt time.Time        `json:"recorded_at" yaml:"recorded_at"`
	Detail     string           `json:"detail,omitempty" yaml:"detail,omitempty"`
	CreatedAt  time.Time        `json:"created_at" yaml:"created_at"`
}

// NewEvent builds the event for decision d about measurement m, given the
// value that was stored before the decision.
func NewEvent(sessionID string, m models.Measurement, oldValue any, d freshness.Decision) Event {
	e := Event{
		ID:         uuid.New(),
		SessionID:  sessionID,
		UserID:     m.UserID,
		Field:      m.Field,
		Date:       models.Day(m.Date),
		Reason:     string(d.Reason),
		OldValue:   oldValue,
		NewValue:   m.Value,
		Source:     m.Source,
		RecordedAt: m.RecordedAt,
		CreatedAt:  time.Now().UTC(),
	}
	switch {
	case d.Reason == freshness.ReasonInternalError:
		e.Status = StatusError
	case d.Overwrite:
		e.Status = StatusImported
	default:
		e.Status = StatusSkipped
	}
	if d.Err != nil {
		e.Detail = d.Err.Error()
	} else if d.BlockingSource != "" {
		e.Detail = fmt.Sprintf("kept %s value", d.BlockingSource)
		if d.BlockingRecordedAt != nil {
			e.Detail += " recorded " + d.BlockingRecordedAt.Format(time.RFC3339)
		}
	}
	return e
}

// Recorder stores or forwards decision events.
type Recorder interface {
	RecordDecision(ctx context.Context, e Event) error
}

// Multi fans events out to several recorders. All recorders are called;
// their errors are joined.
type Multi []Recorder

// RecordDecision implements Recorder.
func (m Multi) RecordDecision(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordDecision(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogRecorder writes events to a zerolog logger. Imported fields log at
// debug, skips at info, errors at warn.
type LogRecorder struct {
	Logger zerolog.Logger
}

// RecordDecision implements Recorder.
func (r LogRecorder) RecordDecision(_ context.Context, e Event) error {
	var ev *zerolog.Event
	switch e.Status {
	case StatusImported:
		ev = r.Logger.Debug()
	case StatusError:
		ev = r.Logger.Warn()
	default:
		ev = r.Logger.Info()
	}
	ev.Str("session", e.SessionID).
		Str("user", e.UserID).
		Str("field", string(e.Field)).
		Str("date", e.Date.Format(models.DateLayout)).
		Str("source", string(e.Source)).
		Str("status", string(e.Status)).
		Str("reason", e.Reason).
		Interface("old", e.OldValue).
		Interface("new", e.NewValue).
		Str("detail", e.Detail).
		Msg("decision")
	return nil
}

// Tally counts decision outcomes for an import session.
type Tally struct {
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Reasons  map[string]int `json:"reasons,omitempty"`
}

// Add counts one event.
func (t *Tally) Add(e Event) {
	switch e.Status {
	case StatusImported:
		t.Imported++
	case StatusError:
		t.Errors++
	default:
		t.Skipped++
	}
	if t.Reasons == nil {
		t.Reasons = make(map[string]int)
	}
	t.Reasons[e.Reason]++
}

// Total is the number of decisions counted.
func (t Tally) Total() int {
	return t.Imported + t.Skipped + t.Errors
}

// String renders a one-line summary.
func (t Tally) String() string {
	return fmt.Sprintf("%d imported, %d skipped, %d errors", t.Imported, t.Skipped, t.Errors)
}
