// ABOUTME: CLI command for inspecting source priority tiers.
// ABOUTME: Prints the tier of one source, or the whole table with field overrides.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/models"
	"github.com/spf13/cobra"
)

var tierCmd = &cobra.Command{
	Use:   "tier [source] [field]",
	Short: "Show source priority tiers",
	Long: `Show the priority tier a source has, optionally for one field.
Without arguments, print every known source and the active field overrides.

Tiers, best first: manual, super_primary, primary, secondary, tertiary.
Unknown sources rank as tertiary.

EXAMPLES:

  health tier
  health tier google_fit
  health tier google_fit sleep_duration`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := cfg.PriorityTable()
		if err != nil {
			return fmt.Errorf("invalid tier overrides: %w", err)
		}

		if len(args) == 0 {
			printTierTable(table)
			return nil
		}

		source, err := models.ParseSource(args[0])
		if err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
		var field models.FieldName
		if len(args) == 2 {
			if !models.IsValidField(args[1]) {
				return fmt.Errorf("unknown field: %s", args[1])
			}
			field = models.FieldName(args[1])
		}

		tier := table.Tier(source, field)
		fmt.Printf("%s %s\n", padRight(string(source), 16), tierLabel(tier))
		if !source.IsKnown() {
			fmt.Println(color.New(color.Faint).Sprint("  unknown source, ranked lowest"))
		}
		return nil
	},
}

func printTierTable(table *freshness.Table) {
	faint := color.New(color.Faint)

	for _, source := range models.AllSources {
		fmt.Printf("%s %s\n", padRight(string(source), 16), tierLabel(table.Tier(source, "")))
	}

	overrides := table.Overrides()
	if len(overrides) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(faint.Sprint("Field overrides:"))
	for _, o := range overrides {
		fmt.Printf("  %s %s %s\n", padRight(string(o.Source), 14), padRight(string(o.Field), 20), tierLabel(o.Tier))
	}
}

func tierLabel(tier models.Tier) string {
	if freshness.IsAuthoritative(tier) {
		return color.New(color.FgGreen).Sprint(tier)
	}
	return tier.String()
}

func init() {
	rootCmd.AddCommand(tierCmd)
}
