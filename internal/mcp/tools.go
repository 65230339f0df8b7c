// ABOUTME: MCP tool implementations for health reconciliation.
// ABOUTME: Ingests and previews measurements, reads records, tiers, locks, stale fields, and decisions.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/ingest"
	"github.com/harperreed/health/internal/models"
	"github.com/harperreed/health/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "ingest_measurement",
		Description: "Reconcile one measurement into the daily record; it is written only if it wins against the stored value",
	}, s.handleIngestMeasurement)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "preview_decision",
		Description: "Show whether a measurement would overwrite the stored value, without writing",
	}, s.handlePreviewDecision)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_record",
		Description: "Get every field of a daily record with its source and measurement time",
	}, s.handleGetRecord)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_tier",
		Description: "Get the priority tier of a source, optionally for one field",
	}, s.handleGetTier)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_data_lock",
		Description: "Get the data lock; dates on or before the lock date are frozen",
	}, s.handleGetDataLock)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_data_lock",
		Description: "Enable or disable the data lock",
	}, s.handleSetDataLock)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_stale_fields",
		Description: "List fields whose latest manual or primary-source update is older than a number of days",
	}, s.handleFindStaleFields)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_decisions",
		Description: "List recent reconciliation decisions from the audit log",
	}, s.handleListDecisions)
}

// Tool input/output types

type measurementInput struct {
	Field      string `json:"field" jsonschema:"Field name (steps, sleep_duration, weight, resting_heart_rate, hrv, ...)"`
	Value      any    `json:"value" jsonschema:"The value; a number for numeric fields, text or a list otherwise"`
	Source     string `json:"source,omitempty" jsonschema:"Source of the reading (manual, health_connect, google_fit, mi_fitness, renpho); defaults to manual"`
	RecordedAt string `json:"recorded_at,omitempty" jsonschema:"When the reading was taken (ISO 8601); defaults to now"`
	Date       string `json:"date,omitempty" jsonschema:"Calendar date YYYY-MM-DD the reading belongs to; defaults to the date of recorded_at"`
	DeviceID   string `json:"device_id,omitempty" jsonschema:"Optional device identifier"`
	UserID     string `json:"user_id,omitempty" jsonschema:"User; defaults to the configured user"`
}

type decisionOutput struct {
	Overwrite          bool   `json:"overwrite"`
	Written            bool   `json:"written"`
	Reason             string `json:"reason"`
	BlockingSource     string `json:"blocking_source,omitempty"`
	BlockingRecordedAt string `json:"blocking_recorded_at,omitempty"`
	Attempts           int    `json:"attempts,omitempty"`
	Message            string `json:"message"`
}

type recordInput struct {
	Date   string `json:"date,omitempty" jsonschema:"Date YYYY-MM-DD; defaults to today"`
	UserID string `json:"user_id,omitempty" jsonschema:"User; defaults to the configured user"`
}

type fieldOutput struct {
	Value      any    `json:"value"`
	Unit       string `json:"unit,omitempty"`
	Source     string `json:"source,omitempty"`
	RecordedAt string `json:"recorded_at,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
}

type recordOutput struct {
	UserID string                 `json:"user_id"`
	Date   string                 `json:"date"`
	Fields map[string]fieldOutput `json:"fields"`
	Locked bool                   `json:"locked"`
}

type tierInput struct {
	Source string `json:"source" jsonschema:"Source name"`
	Field  string `json:"field,omitempty" jsonschema:"Optional field name for field-specific overrides"`
}

type tierOutput struct {
	Source        string `json:"source"`
	Field         string `json:"field,omitempty"`
	Tier          string `json:"tier"`
	Authoritative bool   `json:"authoritative"`
	Known         bool   `json:"known"`
}

type userInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User; defaults to the configured user"`
}

type lockOutput struct {
	Enabled  bool   `json:"enabled"`
	LockDate string `json:"lock_date,omitempty"`
	Message  string `json:"message"`
}

type setLockInput struct {
	Enabled  bool   `json:"enabled" jsonschema:"Whether the lock is on"`
	LockDate string `json:"lock_date,omitempty" jsonschema:"Last frozen date YYYY-MM-DD; required when enabling"`
	UserID   string `json:"user_id,omitempty" jsonschema:"User; defaults to the configured user"`
}

type staleInput struct {
	Days   int    `json:"days,omitempty" jsonschema:"Threshold in days; defaults to the configured stale_days"`
	UserID string `json:"user_id,omitempty" jsonschema:"User; defaults to the configured user"`
}

type staleOutput struct {
	Days   int                    `json:"days"`
	Fields []freshness.StaleField `json:"fields"`
}

type listDecisionsInput struct {
	Limit     int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Only decisions from this import session"`
	Field     string `json:"field,omitempty" jsonschema:"Only decisions about this field"`
	UserID    string `json:"user_id,omitempty" jsonschema:"User; defaults to the configured user"`
}

type decisionsOutput struct {
	Decisions []audit.Event `json:"decisions"`
}

// Tool handlers

func (s *Server) handleIngestMeasurement(ctx context.Context, req *mcp.CallToolRequest, input measurementInput) (*mcp.CallToolResult, decisionOutput, error) {
	m, err := s.measurement(input)
	if err != nil {
		return nil, decisionOutput{}, err
	}

	out := s.pipeline.Ingest(ctx, m)
	result := newDecisionOutput(out.Decision)
	result.Written = out.Written
	result.Attempts = out.Attempts
	if out.Written {
		result.Message = fmt.Sprintf("Stored %s = %v for %s (%s)", m.Field, m.Value, m.Date.Format(models.DateLayout), out.Decision.Reason)
	} else {
		result.Message = fmt.Sprintf("Kept existing %s for %s: %s", m.Field, m.Date.Format(models.DateLayout), out.Decision)
	}
	return nil, result, nil
}

func (s *Server) handlePreviewDecision(ctx context.Context, req *mcp.CallToolRequest, input measurementInput) (*mcp.CallToolResult, decisionOutput, error) {
	m, err := s.measurement(input)
	if err != nil {
		return nil, decisionOutput{}, err
	}

	d := s.engine.Decide(ctx, m)
	result := newDecisionOutput(d)
	result.Message = fmt.Sprintf("Would %s", d)
	return nil, result, nil
}

func (s *Server) handleGetRecord(ctx context.Context, req *mcp.CallToolRequest, input recordInput) (*mcp.CallToolResult, recordOutput, error) {
	date := models.Day(time.Now())
	if input.Date != "" {
		var err error
		date, err = models.ParseDate(input.Date)
		if err != nil {
			return nil, recordOutput{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", input.Date)
		}
	}
	out, err := s.record(ctx, s.user(input.UserID), date)
	if err != nil {
		return nil, recordOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) handleGetTier(ctx context.Context, req *mcp.CallToolRequest, input tierInput) (*mcp.CallToolResult, tierOutput, error) {
	source, err := models.ParseSource(input.Source)
	if err != nil {
		return nil, tierOutput{}, err
	}
	if input.Field != "" && !models.IsValidField(input.Field) {
		return nil, tierOutput{}, fmt.Errorf("unknown field: %s", input.Field)
	}

	tier := s.engine.Tier(source, models.FieldName(input.Field))
	return nil, tierOutput{
		Source:        string(source),
		Field:         input.Field,
		Tier:          tier.String(),
		Authoritative: freshness.IsAuthoritative(tier),
		Known:         source.IsKnown(),
	}, nil
}

func (s *Server) handleGetDataLock(ctx context.Context, req *mcp.CallToolRequest, input userInput) (*mcp.CallToolResult, lockOutput, error) {
	lock, err := s.locks.GetDataLock(ctx, s.user(input.UserID))
	if err != nil {
		return nil, lockOutput{}, fmt.Errorf("failed to read data lock: %w", err)
	}
	return nil, newLockOutput(lock), nil
}

func (s *Server) handleSetDataLock(ctx context.Context, req *mcp.CallToolRequest, input setLockInput) (*mcp.CallToolResult, lockOutput, error) {
	lock := models.DataLock{Enabled: input.Enabled}
	if input.LockDate != "" {
		date, err := models.ParseDate(input.LockDate)
		if err != nil {
			return nil, lockOutput{}, fmt.Errorf("invalid lock_date %q: use YYYY-MM-DD", input.LockDate)
		}
		lock.LockDate = date
	}
	if lock.Enabled && lock.LockDate.IsZero() {
		return nil, lockOutput{}, errors.New("lock_date is required when enabling the lock")
	}

	if err := s.locks.SetDataLock(ctx, s.user(input.UserID), lock); err != nil {
		return nil, lockOutput{}, fmt.Errorf("failed to set data lock: %w", err)
	}
	return nil, newLockOutput(lock), nil
}

func (s *Server) handleFindStaleFields(ctx context.Context, req *mcp.CallToolRequest, input staleInput) (*mcp.CallToolResult, staleOutput, error) {
	days := input.Days
	if days <= 0 {
		days = s.staleDays
	}

	finder := freshness.NewStaleFinder(s.repo, s.engine.Table())
	fields, err := finder.Find(ctx, s.user(input.UserID), days)
	if err != nil {
		return nil, staleOutput{}, fmt.Errorf("failed to find stale fields: %w", err)
	}
	if fields == nil {
		fields = []freshness.StaleField{}
	}
	return nil, staleOutput{Days: days, Fields: fields}, nil
}

func (s *Server) handleListDecisions(ctx context.Context, req *mcp.CallToolRequest, input listDecisionsInput) (*mcp.CallToolResult, decisionsOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	events, err := s.repo.ListDecisions(ctx, storage.DecisionFilter{
		UserID:    s.user(input.UserID),
		SessionID: input.SessionID,
		Field:     models.FieldName(input.Field),
		Limit:     input.Limit,
	})
	if err != nil {
		return nil, decisionsOutput{}, fmt.Errorf("failed to list decisions: %w", err)
	}
	if events == nil {
		events = []audit.Event{}
	}
	return nil, decisionsOutput{Decisions: events}, nil
}

// measurement turns tool input into a measurement for the configured user.
func (s *Server) measurement(input measurementInput) (models.Measurement, error) {
	if !models.IsValidField(input.Field) {
		return models.Measurement{}, fmt.Errorf("unknown field: %s", input.Field)
	}
	field := models.FieldName(input.Field)

	source := models.SourceManual
	if input.Source != "" {
		var err error
		source, err = models.ParseSource(input.Source)
		if err != nil {
			return models.Measurement{}, err
		}
	}

	recordedAt := time.Now()
	if input.RecordedAt != "" {
		var err error
		recordedAt, err = ingest.ParseTimestamp(input.RecordedAt)
		if err != nil {
			return models.Measurement{}, err
		}
	}

	date := models.Day(recordedAt)
	if input.Date != "" {
		var err error
		date, err = models.ParseDate(input.Date)
		if err != nil {
			return models.Measurement{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", input.Date)
		}
	}

	value, err := ingest.NormalizeValue(field, input.Value)
	if err != nil {
		return models.Measurement{}, err
	}

	return models.Measurement{
		UserID:     s.user(input.UserID),
		Date:       date,
		Field:      field,
		Value:      value,
		Source:     source,
		RecordedAt: recordedAt.UTC(),
		DeviceID:   input.DeviceID,
	}, nil
}

// record builds the output for one daily record. A date with no data is
// an empty record, not an error.
func (s *Server) record(ctx context.Context, userID string, date time.Time) (recordOutput, error) {
	out := recordOutput{
		UserID: userID,
		Date:   date.Format(models.DateLayout),
		Fields: make(map[string]fieldOutput),
	}

	rec, err := s.repo.GetRecord(ctx, userID, date)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return recordOutput{}, fmt.Errorf("failed to get record: %w", err)
	}
	if rec != nil {
		for name, fv := range rec.Fields {
			f := fieldOutput{Value: fv.Value, Unit: name.Unit()}
			if fv.Metadata != nil {
				f.Source = string(fv.Metadata.Source)
				f.RecordedAt = fv.Metadata.RecordedAt.Format(time.RFC3339)
				f.DeviceID = fv.Metadata.DeviceID
			}
			out.Fields[string(name)] = f
		}
	}

	lock, err := s.locks.GetDataLock(ctx, userID)
	if err == nil {
		out.Locked = lock.Covers(date)
	}
	return out, nil
}

func newDecisionOutput(d freshness.Decision) decisionOutput {
	out := decisionOutput{
		Overwrite:      d.Overwrite,
		Reason:         string(d.Reason),
		BlockingSource: string(d.BlockingSource),
	}
	if d.BlockingRecordedAt != nil {
		out.BlockingRecordedAt = d.BlockingRecordedAt.Format(time.RFC3339)
	}
	return out
}

func newLockOutput(lock models.DataLock) lockOutput {
	out := lockOutput{Enabled: lock.Enabled}
	if !lock.LockDate.IsZero() {
		out.LockDate = lock.LockDate.Format(models.DateLayout)
	}
	if lock.Enabled {
		out.Message = fmt.Sprintf("Data on or before %s is locked", out.LockDate)
	} else {
		out.Message = "Data lock is off"
	}
	return out
}
