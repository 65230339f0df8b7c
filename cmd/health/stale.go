// ABOUTME: CLI command for the stale field report.
// ABOUTME: Lists fields whose last manual or primary-source update is too old.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/freshness"
	"github.com/spf13/cobra"
)

var (
	staleDays int
	staleJSON bool
)

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List fields that need a re-sync",
	Long: `List fields whose newest manual or primary-source reading is older than
--days (default from stale_days in config). Fields that never had such a
reading are not listed. Use --json to feed a sync scheduler.

EXAMPLES:

  health stale
  health stale --days 3 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		days := staleDays
		if days <= 0 {
			days = cfg.GetStaleDays()
		}

		table, err := cfg.PriorityTable()
		if err != nil {
			return fmt.Errorf("invalid tier overrides: %w", err)
		}

		fields, err := freshness.NewStaleFinder(db, table).Find(cmd.Context(), cfg.GetUserID(), days)
		if err != nil {
			return fmt.Errorf("failed to find stale fields: %w", err)
		}

		if staleJSON {
			if fields == nil {
				fields = []freshness.StaleField{}
			}
			data, err := json.MarshalIndent(fields, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		if len(fields) == 0 {
			color.Green("✓ Nothing older than %d days", days)
			return nil
		}

		faint := color.New(color.Faint)
		for _, f := range fields {
			fmt.Printf("%s %s %s\n",
				padRight(string(f.Field), 20),
				color.YellowString("%d days", f.DaysSinceUpdate),
				faint.Sprintf("(%s, %s)", f.Source, f.LastUpdated.Local().Format("2006-01-02 15:04")))
		}
		return nil
	},
}

func init() {
	staleCmd.Flags().IntVar(&staleDays, "days", 0, "age threshold in days (default from config)")
	staleCmd.Flags().BoolVar(&staleJSON, "json", false, "print JSON")
	rootCmd.AddCommand(staleCmd)
}
