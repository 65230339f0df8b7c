// ABOUTME: CLI command for adding a single measurement.
// ABOUTME: Runs the entry through the reconciliation pipeline and reports the decision.
package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/ingest"
	"github.com/harperreed/health/internal/models"
	"github.com/spf13/cobra"
)

var (
	addAt     string
	addDate   string
	addSource string
	addDevice string
	addDryRun bool
)

var addCmd = &cobra.Command{
	Use:     "add <field> <value>",
	Aliases: []string{"a"},
	Short:   "Add a measurement",
	Long: `Add one measurement. It is written only if it wins against the value
already stored for that date and field; the decision is printed either way.

FIELDS:

  Activity   steps, distance, active_calories, active_minutes
  Sleep      sleep_duration, deep_sleep, sleep_stages
  Heart      resting_heart_rate, heart_rate, hrv
  Body       weight, body_fat, bmi, muscle_mass, body_water
  Free-form  notes, workouts

List fields (sleep_stages, workouts) take items separated by "|".

Examples:
  health add weight 82.5
  health add hrv 48 --at "2024-12-14 07:00"
  health add steps 9500 --source health_connect --device pixel-8
  health add notes "slept badly" --date 2024-12-13
  health add workouts "run|yoga"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := buildMeasurement(args[0], args[1])
		if err != nil {
			return err
		}

		pipeline, err := newPipeline(addDryRun)
		if err != nil {
			return err
		}

		out := pipeline.Ingest(cmd.Context(), m)
		return printOutcome(m, out, addDryRun)
	},
}

// buildMeasurement turns the add command's arguments and flags into a
// measurement for the configured user.
func buildMeasurement(fieldArg, valueArg string) (models.Measurement, error) {
	if !models.IsValidField(fieldArg) {
		return models.Measurement{}, fmt.Errorf("unknown field: %s\nValid fields: %s", fieldArg, strings.Join(fieldNames(), ", "))
	}
	field := models.FieldName(fieldArg)

	source, err := models.ParseSource(addSource)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("invalid source: %w", err)
	}

	recordedAt := time.Now()
	if addAt != "" {
		recordedAt, err = parseTime(addAt)
		if err != nil {
			return models.Measurement{}, fmt.Errorf("invalid timestamp: %s", addAt)
		}
	}

	date := models.Day(recordedAt)
	if addDate != "" {
		date, err = models.ParseDate(addDate)
		if err != nil {
			return models.Measurement{}, fmt.Errorf("invalid date: %s (use YYYY-MM-DD)", addDate)
		}
	}

	value, err := ingest.NormalizeValue(field, valueArg)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("invalid value: %w", err)
	}

	return models.Measurement{
		UserID:     cfg.GetUserID(),
		Date:       date,
		Field:      field,
		Value:      value,
		Source:     source,
		RecordedAt: recordedAt.UTC(),
		DeviceID:   addDevice,
	}, nil
}

func printOutcome(m models.Measurement, out ingest.Outcome, dryRun bool) error {
	d := out.Decision
	day := m.Date.Format(models.DateLayout)
	faint := color.New(color.Faint)

	switch {
	case d.Reason == freshness.ReasonInternalError:
		return fmt.Errorf("failed to store %s: %w", m.Field, d.Err)
	case d.Overwrite && dryRun:
		color.Cyan("Would store %s", m.Field)
	case d.Overwrite:
		color.Green("✓ Stored %s", m.Field)
	default:
		color.Yellow("• Kept existing %s", m.Field)
	}

	fmt.Printf("  %s %s %s %s\n",
		faint.Sprint(day),
		formatValue(m.Value),
		m.Field.Unit(),
		faint.Sprintf("(%s, %s)", m.Source, d.Reason))
	if d.BlockingSource != "" {
		at := ""
		if d.BlockingRecordedAt != nil {
			at = " at " + d.BlockingRecordedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("  %s\n", faint.Sprintf("stored value from %s%s", d.BlockingSource, at))
	}
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%g", val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, " | ")
	default:
		return fmt.Sprint(val)
	}
}

func fieldNames() []string {
	names := make([]string, 0, len(models.KnownFields))
	for name := range models.KnownFields {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	formats := []string{
		"2006-01-02 15:04",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

func init() {
	addCmd.Flags().StringVar(&addAt, "at", "", "when the reading was taken (YYYY-MM-DD HH:MM)")
	addCmd.Flags().StringVar(&addDate, "date", "", "date the reading belongs to (default: date of --at)")
	addCmd.Flags().StringVarP(&addSource, "source", "s", string(models.SourceManual), "source of the reading")
	addCmd.Flags().StringVar(&addDevice, "device", "", "device identifier")
	addCmd.Flags().BoolVar(&addDryRun, "dry-run", false, "show the decision without writing")
	rootCmd.AddCommand(addCmd)
}
