// ABOUTME: CLI command for showing one daily record.
// ABOUTME: Prints every field with its source, measurement time, and the lock state.
package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/models"
	"github.com/harperreed/health/internal/storage"
	"github.com/spf13/cobra"
)

var showDate string

var showCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Show a daily record",
	Long: `Show every field stored for one date, with the source that supplied it
and when it was measured. Defaults to today.

EXAMPLES:

  health show
  health show 2025-01-31
  health show --date 2025-01-31 --user alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dateArg := showDate
		if len(args) == 1 {
			dateArg = args[0]
		}

		date := models.Day(time.Now())
		if dateArg != "" {
			var err error
			date, err = models.ParseDate(dateArg)
			if err != nil {
				return fmt.Errorf("invalid date: %s (use YYYY-MM-DD)", dateArg)
			}
		}

		ctx := cmd.Context()
		userID := cfg.GetUserID()
		day := date.Format(models.DateLayout)

		lock, err := locks.GetDataLock(ctx, userID)
		if err != nil {
			color.Yellow("⚠ Could not read data lock: %v", err)
		}
		header := fmt.Sprintf("%s  %s", day, userID)
		if lock.Covers(date) {
			header += "  " + color.New(color.FgRed).Sprint("locked")
		}
		color.New(color.Bold).Println(header)

		rec, err := db.GetRecord(ctx, userID, date)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Println("No data for this date.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}

		printRecord(rec)
		return nil
	},
}

func printRecord(rec *models.HealthRecord) {
	faint := color.New(color.Faint)

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, string(name))
	}
	sort.Strings(names)

	for _, name := range names {
		field := models.FieldName(name)
		fv := rec.Fields[field]

		origin := "unknown origin"
		if fv.Metadata != nil {
			origin = fmt.Sprintf("%s @ %s", fv.Metadata.Source, fv.Metadata.RecordedAt.Local().Format("2006-01-02 15:04"))
			if fv.Metadata.DeviceID != "" {
				origin += " " + fv.Metadata.DeviceID
			}
		}
		fmt.Printf("  %s %s %s %s\n",
			padRight(name, 20),
			formatValue(fv.Value),
			field.Unit(),
			faint.Sprintf("(%s)", origin))
	}
}

func init() {
	showCmd.Flags().StringVarP(&showDate, "date", "d", "", "date to show (YYYY-MM-DD)")
	rootCmd.AddCommand(showCmd)
}
