// ABOUTME: Decision result, reason codes, and error sentinels for the engine.
// ABOUTME: Every rejection carries the blocking source and timestamp for audit.
package freshness

import (
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/models"
)

var (
	// ErrInvalidInput marks a measurement with a bad date, timestamp, or key.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMetadataRead marks a failure to read the existing field snapshot.
	ErrMetadataRead = errors.New("metadata read failed")
	// ErrLockCheck marks a failure to read data lock settings.
	ErrLockCheck = errors.New("lock check failed")
)

// Reason names the rule that produced a decision.
type Reason string

const (
	ReasonDataLocked              Reason = "data_locked"
	ReasonMeaninglessValue        Reason = "meaningless_value"
	ReasonNoExistingData          Reason = "no_existing_data"
	ReasonUnknownOriginReplaced   Reason = "unknown_origin_replaced"
	ReasonUnknownOriginProtected  Reason = "unknown_origin_protected"
	ReasonManualOverrides         Reason = "manual_overrides"
	ReasonManualProtected         Reason = "manual_protected"
	ReasonHigherPriorityOverrides Reason = "higher_priority_overrides"
	ReasonSecondaryCannotOverride Reason = "secondary_cannot_override_primary"
	ReasonLowerPriorityBlocked    Reason = "lower_priority_blocked"
	ReasonSameSourceUpsert        Reason = "same_source_upsert"
	ReasonPrimaryTieNewerWins     Reason = "primary_tie_newer_wins"
	ReasonPrimaryTieInsufficient  Reason = "primary_tie_insufficient_gap"
	ReasonNewerSameTierWins       Reason = "newer_same_tier_wins"
	ReasonExistingIsNewer         Reason = "existing_is_newer"
	ReasonUnresolvedConflict      Reason = "unresolved_conflict"
	ReasonInternalError           Reason = "internal_error"
)

// Decision is the outcome of reconciling one measurement.
type Decision struct {
	Overwrite bool
	Reason    Reason

	// Set on rejection when the existing value has known metadata.
	BlockingSource     models.Source
	BlockingRecordedAt *time.Time

	// Err holds the cause when Reason is ReasonInternalError.
	Err error
}

// String renders the decision for logs.
func (d Decision) String() string {
	verdict := "skip"
	if d.Overwrite {
		verdict = "overwrite"
	}
	s := fmt.Sprintf("%s (%s)", verdict, d.Reason)
	if d.BlockingSource != "" {
		s += fmt.Sprintf(" blocked by %s", d.BlockingSource)
		if d.BlockingRecordedAt != nil {
			s += " at " + d.BlockingRecordedAt.Format(time.RFC3339)
		}
	}
	if d.Err != nil {
		s += ": " + d.Err.Error()
	}
	return s
}

func accept(r Reason) Decision {
	return Decision{Overwrite: true, Reason: r}
}

func reject(r Reason, existing *models.FieldMetadata) Decision {
	d := Decision{Reason: r}
	if existing != nil {
		d.BlockingSource = existing.Source
		at := existing.RecordedAt
		d.BlockingRecordedAt = &at
	}
	return d
}

func failed(err error) Decision {
	return Decision{Reason: ReasonInternalError, Err: err}
}
