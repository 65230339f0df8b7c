// ABOUTME: CLI commands for the decision log and import sessions.
// ABOUTME: Explains why each value was written or kept.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/audit"
	"github.com/harperreed/health/internal/models"
	"github.com/harperreed/health/internal/storage"
	"github.com/spf13/cobra"
)

var (
	logLimit   int
	logSession string
	logField   string

	sessionsLimit int
)

var logCmd = &cobra.Command{
	Use:     "log",
	Aliases: []string{"decisions"},
	Short:   "Show recent reconciliation decisions",
	Long: `Show the most recent decisions, newest first. Each line shows whether the
value was imported, skipped, or failed, and why.

EXAMPLES:

  health log
  health log --field weight -n 50
  health log --session 01J8Z3...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if logField != "" && !models.IsValidField(logField) {
			return fmt.Errorf("unknown field: %s", logField)
		}

		events, err := db.ListDecisions(cmd.Context(), storage.DecisionFilter{
			UserID:    cfg.GetUserID(),
			SessionID: logSession,
			Field:     models.FieldName(logField),
			Limit:     logLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list decisions: %w", err)
		}

		if len(events) == 0 {
			fmt.Println("No decisions found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, e := range events {
			fmt.Printf("%s %s %s %s %s %s\n",
				faint.Sprint(e.CreatedAt.Local().Format("2006-01-02 15:04")),
				statusLabel(e.Status),
				e.Date.Format(models.DateLayout),
				padRight(string(e.Field), 20),
				padRight(truncate(formatValue(e.NewValue), 16), 16),
				faint.Sprintf("(%s: %s)", e.Source, e.Reason))
			if e.Detail != "" {
				fmt.Printf("  %s\n", faint.Sprint(e.Detail))
			}
		}
		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show recent import sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := db.ListSessions(cmd.Context(), cfg.GetUserID(), sessionsLimit)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No import sessions found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, s := range sessions {
			state := ""
			switch {
			case s.Cancelled:
				state = color.YellowString(" cancelled")
			case s.FinishedAt == nil:
				state = color.YellowString(" unfinished")
			}
			fmt.Printf("%s %s %s %s%s\n",
				faint.Sprint(s.ID),
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				padRight(s.Source, 24),
				s.Tally,
				state)
		}
		return nil
	},
}

func statusLabel(s audit.Status) string {
	label := padRight(string(s), 8)
	switch s {
	case audit.StatusImported:
		return color.GreenString(label)
	case audit.StatusError:
		return color.RedString(label)
	default:
		return color.YellowString(label)
	}
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "max number of results")
	logCmd.Flags().StringVar(&logSession, "session", "", "only decisions from this import session")
	logCmd.Flags().StringVarP(&logField, "field", "f", "", "only decisions about this field")
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 10, "max number of results")
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(sessionsCmd)
}
