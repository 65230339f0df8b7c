// ABOUTME: CLI commands for the data lock.
// ABOUTME: Shows, sets, and clears the date on or before which records are frozen.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/models"
	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manage the data lock",
	Long: `The data lock freezes every date on or before the lock date. While it is
on, no source can change those records, not even manual entries.

COMMANDS:

  status        Show the current lock
  set <date>    Lock every date on or before <date>
  off           Turn the lock off

Lock settings live in SQLite, or in Charm KV when lock_backend is "charm".`,
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the data lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		lock, err := locks.GetDataLock(cmd.Context(), cfg.GetUserID())
		if err != nil {
			return fmt.Errorf("failed to read data lock: %w", err)
		}
		printLock(lock)
		return nil
	},
}

var lockSetCmd = &cobra.Command{
	Use:   "set <date>",
	Short: "Lock every date on or before <date>",
	Long: `Lock every date on or before <date> (YYYY-MM-DD).

Example:
  health lock set 2025-01-31`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := models.ParseDate(args[0])
		if err != nil {
			return fmt.Errorf("invalid date: %s (use YYYY-MM-DD)", args[0])
		}

		lock := models.DataLock{Enabled: true, LockDate: date}
		if err := locks.SetDataLock(cmd.Context(), cfg.GetUserID(), lock); err != nil {
			return fmt.Errorf("failed to set data lock: %w", err)
		}
		color.Green("✓ Data lock set")
		printLock(lock)
		return nil
	},
}

var lockOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Turn the data lock off",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID := cfg.GetUserID()

		lock, err := locks.GetDataLock(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to read data lock: %w", err)
		}
		lock.Enabled = false
		if err := locks.SetDataLock(ctx, userID, lock); err != nil {
			return fmt.Errorf("failed to clear data lock: %w", err)
		}
		color.Green("✓ Data lock off")
		return nil
	},
}

func printLock(lock models.DataLock) {
	if !lock.Enabled {
		fmt.Println("Data lock: off")
		return
	}
	fmt.Printf("Data lock: %s on or before %s\n",
		color.New(color.FgRed).Sprint("on"),
		lock.LockDate.Format(models.DateLayout))
}

func init() {
	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockSetCmd)
	lockCmd.AddCommand(lockOffCmd)
	rootCmd.AddCommand(lockCmd)
}
