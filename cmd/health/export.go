// ABOUTME: CLI commands for exporting and restoring health data.
// ABOUTME: Supports JSON and YAML backups that keep every field's metadata.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export [format]",
	Short: "Export health data",
	Long: `Export every record, with the source and measurement time of each field,
plus all data lock settings. The export can be restored with 'health restore'.

FORMATS:

  json   Full JSON export (default)
  yaml   YAML export (human-readable)

OPTIONS:

  --output, -o   Write to file instead of stdout
  --format       Same as the positional format

EXAMPLES:

  health export                      # Export all data as JSON
  health export json -o backup.json  # Save to file
  health export --format yaml        # Export as YAML`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"json", "yaml"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := exportFormat
		if len(args) == 1 {
			format = args[0]
		}

		var data []byte
		var err error

		switch format {
		case "", "json":
			data, err = db.ExportJSON(cmd.Context())
		case "yaml", "yml":
			data, err = db.ExportYAML(cmd.Context())
		default:
			return fmt.Errorf("unknown format: %s (use json or yaml)", format)
		}

		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
		} else {
			fmt.Println(string(data))
		}

		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore health data from a backup",
	Long: `Restore a JSON or YAML file written by 'health export'.

Restored fields replace what is stored, metadata included, without going
through reconciliation. Fields not in the backup are left alone.

EXAMPLES:

  health restore backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		raw, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		data, err := storage.ParseExport(raw)
		if err != nil {
			return fmt.Errorf("failed to parse backup: %w", err)
		}

		if err := db.ImportData(cmd.Context(), data); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		color.Green("✓ Restored from %s", filename)
		fmt.Printf("  %d records, %d fields, %d lock settings\n", len(data.Records), data.FieldCount(), len(data.Locks))
		fmt.Printf("  %d import sessions, %d logged decisions\n", len(data.Sessions), len(data.Decisions))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "export format: json or yaml")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(restoreCmd)
}
