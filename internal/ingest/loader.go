// ABOUTME: Loader for files of normalized measurement tuples in JSON, YAML, or CSV.
// ABOUTME: Vendor formats are parsed elsewhere; this reads what those parsers hand over.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/health/internal/models"
	"gopkg.in/yaml.v3"
)

// Format is a tuple file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown format: %q (use json, yaml, or csv)", s)
	}
}

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot detect format of %q: no extension", path)
	}
	return ParseFormat(ext)
}

// Defaults fill in tuple columns a file leaves out.
type Defaults struct {
	UserID string
	Source models.Source
}

// tuple is the on-disk shape of one measurement.
type tuple struct {
	UserID     string `json:"user_id" yaml:"user_id"`
	Date       string `json:"date" yaml:"date"`
	Field      string `json:"field" yaml:"field"`
	Value      any    `json:"value" yaml:"value"`
	Source     string `json:"source" yaml:"source"`
	RecordedAt string `json:"recorded_at" yaml:"recorded_at"`
	DeviceID   string `json:"device_id,omitempty" yaml:"device_id,omitempty"`
}

type tupleFile struct {
	Measurements []tuple `json:"measurements" yaml:"measurements"`
}

// RowError is a tuple that could not be turned into a measurement.
// Measurement holds whatever was read before the failure.
type RowError struct {
	Row         int
	Measurement models.Measurement
	Err         error
}

func (e RowError) Error() string {
	return fmt.Sprintf("measurement %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Load reads every measurement from r and fails on the first bad tuple.
func Load(r io.Reader, format Format, defaults Defaults) ([]models.Measurement, error) {
	batch, rejected, err := LoadRows(r, format, defaults)
	if err != nil {
		return nil, err
	}
	if len(rejected) > 0 {
		return nil, rejected[0]
	}
	return batch, nil
}

// LoadRows reads every measurement from r. Tuples that cannot become a
// measurement are returned separately and do not stop the rest of the file.
// Only an undecodable file is an error.
func LoadRows(r io.Reader, format Format, defaults Defaults) ([]models.Measurement, []RowError, error) {
	var tuples []tuple
	var err error
	switch format {
	case FormatJSON:
		tuples, err = decodeJSON(r)
	case FormatYAML:
		tuples, err = decodeYAML(r)
	case FormatCSV:
		tuples, err = decodeCSV(r)
	default:
		err = fmt.Errorf("unknown format: %q", format)
	}
	if err != nil {
		return nil, nil, err
	}

	out := make([]models.Measurement, 0, len(tuples))
	var rejected []RowError
	for i, t := range tuples {
		m, err := t.measurement(defaults)
		if err != nil {
			m.Value = t.Value
			rejected = append(rejected, RowError{Row: i + 1, Measurement: m, Err: err})
			continue
		}
		out = append(out, m)
	}
	return out, rejected, nil
}

// decodeJSON accepts a bare array or an object with a measurements key.
func decodeJSON(r io.Reader) ([]tuple, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var tuples []tuple
		if err := json.Unmarshal(data, &tuples); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		return tuples, nil
	}
	var file tupleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return file.Measurements, nil
}

// decodeYAML accepts a bare sequence or a mapping with a measurements key.
func decodeYAML(r io.Reader) ([]tuple, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind == yaml.SequenceNode {
		var tuples []tuple
		if err := root.Decode(&tuples); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
		return tuples, nil
	}
	var file tupleFile
	if err := root.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return file.Measurements, nil
}

// decodeCSV reads a headed CSV. field, value and recorded_at columns are
// required; the rest are optional.
func decodeCSV(r io.Reader) ([]tuple, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"field", "value", "recorded_at"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header missing %q column", required)
		}
	}

	get := func(row []string, name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var tuples []tuple
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		tuples = append(tuples, tuple{
			UserID:     get(row, "user_id"),
			Date:       get(row, "date"),
			Field:      get(row, "field"),
			Value:      get(row, "value"),
			Source:     get(row, "source"),
			RecordedAt: get(row, "recorded_at"),
			DeviceID:   get(row, "device_id"),
		})
	}
	return tuples, nil
}

func (t tuple) measurement(defaults Defaults) (models.Measurement, error) {
	m := models.Measurement{
		UserID:   t.UserID,
		Field:    models.FieldName(strings.TrimSpace(t.Field)),
		DeviceID: t.DeviceID,
	}
	if m.UserID == "" {
		m.UserID = defaults.UserID
	}
	if m.UserID == "" {
		return m, fmt.Errorf("missing user_id")
	}
	if !models.IsValidField(string(m.Field)) {
		return m, fmt.Errorf("unknown field %q", t.Field)
	}

	switch {
	case t.Source != "":
		source, err := models.ParseSource(t.Source)
		if err != nil {
			return m, err
		}
		m.Source = source
	case defaults.Source != "":
		m.Source = defaults.Source
	default:
		return m, fmt.Errorf("missing source")
	}

	if t.RecordedAt == "" {
		return m, fmt.Errorf("missing recorded_at")
	}
	recordedAt, err := ParseTimestamp(t.RecordedAt)
	if err != nil {
		return m, err
	}
	m.RecordedAt = recordedAt.UTC()

	if t.Date == "" {
		m.Date = models.Day(recordedAt)
	} else {
		m.Date, err = models.ParseDate(t.Date)
		if err != nil {
			return m, fmt.Errorf("invalid date %q: %w", t.Date, err)
		}
	}

	m.Value, err = NormalizeValue(m.Field, t.Value)
	if err != nil {
		return m, err
	}
	return m, nil
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds, or a
// local "2006-01-02 15:04" / "2006-01-02T15:04:05" time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid recorded_at %q", s)
}

// NormalizeValue coerces text input to the field's kind. Numeric fields
// parse numbers, list fields split on "|". Blank text stays blank so the
// engine can reject it as meaningless.
func NormalizeValue(field models.FieldName, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return s, nil
	}
	switch field.Kind() {
	case models.KindNumeric:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s needs a number, got %q", field, s)
		}
		return f, nil
	case models.KindList:
		parts := strings.Split(s, "|")
		list := make([]any, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
		return list, nil
	default:
		return s, nil
	}
}
