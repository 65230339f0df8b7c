// ABOUTME: CLI command for migrating data between health databases.
// ABOUTME: Copies records, field metadata, and lock settings from another SQLite file.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/config"
	"github.com/harperreed/health/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateFrom   string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy data from another health database",
	Long: `Copy every record, with its field metadata, and every lock setting from
another health database into the configured one.

Use this when moving data_dir or merging a database from another machine.
Copied fields replace what is stored, without reconciliation.

IMPORTANT:

  - The source database must exist and must not be the configured one
  - Run with --dry-run first to see what would be migrated

USAGE:

  health migrate --from ~/old/health.db --dry-run   # Preview
  health migrate --from ~/old/health.db             # Perform the migration`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateFrom == "" {
			return fmt.Errorf("--from is required")
		}
		srcPath := config.ExpandPath(migrateFrom)
		if srcPath == cfg.DBPath() {
			return fmt.Errorf("source and destination are the same database: %s", srcPath)
		}

		exists, err := storage.FileExists(srcPath)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("no health database at %s", srcPath)
		}

		src, err := storage.Open(srcPath)
		if err != nil {
			return fmt.Errorf("failed to open source database: %w", err)
		}
		defer src.Close()

		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			fmt.Println()

			data, err := src.GetAllData(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read source database: %w", err)
			}
			fmt.Printf("Would migrate %d records, %d fields, %d lock settings, %d sessions, %d decisions\n",
				len(data.Records), data.FieldCount(), len(data.Locks), len(data.Sessions), len(data.Decisions))
			fmt.Printf("  from %s\n  to   %s\n", srcPath, cfg.DBPath())
			return nil
		}

		summary, err := storage.MigrateData(cmd.Context(), src, db)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		color.Green("✓ Migrated %d records, %d fields, %d lock settings", summary.Records, summary.Fields, summary.Locks)
		fmt.Printf("  %d import sessions, %d logged decisions\n", summary.Sessions, summary.Decisions)
		fmt.Printf("  into %s\n", cfg.DBPath())
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "path of the database to copy from")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	rootCmd.AddCommand(migrateCmd)
}
