// ABOUTME: CLI command for listing recent record values.
// ABOUTME: Supports filtering by field and limiting the number of days.
package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/models"
	"github.com/spf13/cobra"
)

var (
	listField string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List recent record values",
	Long: `List stored values from your most recent daily records.

OUTPUT FORMAT:

  Each line shows: DATE  FIELD  VALUE  UNIT  (SOURCE)

FILTERING:

  Use --field to show a single field:
    steps, distance, active_calories, active_minutes, sleep_duration,
    deep_sleep, sleep_stages, resting_heart_rate, heart_rate, hrv,
    weight, body_fat, bmi, muscle_mass, body_water, notes, workouts

EXAMPLES:

  health list                       # Values from the last 20 days with data
  health list --field weight        # Only weight
  health list -f steps -n 50        # Steps from the last 50 days with data`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listField != "" && !models.IsValidField(listField) {
			return fmt.Errorf("unknown field: %s", listField)
		}

		records, err := db.ListRecords(cmd.Context(), cfg.GetUserID(), time.Time{}, time.Time{})
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}

		faint := color.New(color.Faint)
		days, lines := 0, 0
		for _, rec := range records {
			if listLimit > 0 && days >= listLimit {
				break
			}

			names := make([]string, 0, len(rec.Fields))
			for name := range rec.Fields {
				if listField == "" || string(name) == listField {
					names = append(names, string(name))
				}
			}
			if len(names) == 0 {
				continue
			}
			sort.Strings(names)
			days++

			for _, name := range names {
				fv := rec.Fields[models.FieldName(name)]
				source := "?"
				if fv.Metadata != nil {
					source = string(fv.Metadata.Source)
				}
				fmt.Printf("%s %s %s %s %s\n",
					faint.Sprint(rec.Date.Format(models.DateLayout)),
					padRight(name, 20),
					truncate(formatValue(fv.Value), 30),
					models.FieldName(name).Unit(),
					faint.Sprintf("(%s)", source))
				lines++
			}
		}

		if lines == 0 {
			fmt.Println("No values found.")
		}
		return nil
	},
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func init() {
	listCmd.Flags().StringVarP(&listField, "field", "f", "", "filter by field")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "max number of days")
	rootCmd.AddCommand(listCmd)
}
