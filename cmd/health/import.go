// ABOUTME: CLI command for importing a batch of measurements.
// ABOUTME: Loads JSON, YAML, or CSV tuples and reconciles them as one import session.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/ingest"
	"github.com/harperreed/health/internal/models"
	"github.com/spf13/cobra"
)

var (
	importFormat  string
	importSource  string
	importDryRun  bool
	importVerbose bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import measurements from a file",
	Long: `Import a batch of measurements. Every (date, field) is reconciled on
its own, exactly like 'health add', and the run is recorded as an import
session with a count of imported, skipped, and failed fields.

FORMATS:

  json   an array of tuples, or {"measurements": [...]}
  yaml   a sequence of tuples, or a mapping with a measurements key
  csv    a header row naming the columns

  Each tuple has field, value, and recorded_at, plus optional date, source,
  device_id, and user_id. The format is taken from the file extension
  unless --format is given. Use "-" to read stdin. Rows that cannot be
  read are reported as errors and the rest of the file is imported.

EXAMPLES:

  health import export.json
  health import steps.csv --source google_fit
  health import - --format yaml < readings.yaml
  health import export.json --dry-run        # Show what would change`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		format, err := resolveFormat(path)
		if err != nil {
			return err
		}

		var r io.Reader = os.Stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()
			r = f
		}

		defaults := ingest.Defaults{UserID: cfg.GetUserID()}
		if importSource != "" {
			defaults.Source, err = models.ParseSource(importSource)
			if err != nil {
				return fmt.Errorf("invalid source: %w", err)
			}
		}

		batch, rejected, err := ingest.LoadRows(r, format, defaults)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		if len(batch) == 0 {
			if len(rejected) > 0 {
				return fmt.Errorf("no valid measurements in %s: %w", path, rejected[0])
			}
			fmt.Println("No measurements found.")
			return nil
		}

		pipeline, err := newPipeline(importDryRun)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		label := string(defaults.Source)
		if label == "" {
			label = "import:" + filepath.Base(path)
		}
		result, runErr := pipeline.RunWithRejects(ctx, label, batch, rejected)
		if result == nil {
			return runErr
		}

		printImportResult(result, importDryRun, importVerbose)
		if errors.Is(runErr, context.Canceled) {
			color.Yellow("Import interrupted after %d of %d measurements", len(result.Outcomes), len(batch))
			return nil
		}
		return runErr
	},
}

func resolveFormat(path string) (ingest.Format, error) {
	if importFormat != "" {
		return ingest.ParseFormat(importFormat)
	}
	if path == "-" {
		return ingest.FormatJSON, nil
	}
	return ingest.DetectFormat(path)
}

func printImportResult(result *ingest.Result, dryRun, verbose bool) {
	faint := color.New(color.Faint)
	tally := result.Session.Tally

	if dryRun {
		color.Cyan("Dry run: %d would be imported, %d skipped, %d errors", tally.Imported, tally.Skipped, tally.Errors)
	} else {
		color.Green("✓ Imported session %s", result.Session.ID)
		fmt.Printf("  %s\n", tally)
	}

	reasons := make([]string, 0, len(tally.Reasons))
	for reason := range tally.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Printf("  %s %d\n", faint.Sprint(padRight(reason, 36)), tally.Reasons[reason])
	}

	for _, out := range result.Outcomes {
		d := out.Decision
		m := out.Measurement
		switch {
		case d.Reason == freshness.ReasonInternalError:
			color.Red("  ✗ %s %s: %v", m.Date.Format(models.DateLayout), m.Field, d.Err)
		case verbose && !d.Overwrite:
			fmt.Printf("  %s %s %s %s\n",
				faint.Sprint(m.Date.Format(models.DateLayout)),
				padRight(string(m.Field), 20),
				formatValue(m.Value),
				faint.Sprintf("(%s)", d))
		}
	}
}

func init() {
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "input format: json, yaml, csv (default: from extension)")
	importCmd.Flags().StringVarP(&importSource, "source", "s", "", "source for tuples that do not name one")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "show decisions without writing")
	importCmd.Flags().BoolVarP(&importVerbose, "verbose", "v", false, "list every skipped measurement")
	rootCmd.AddCommand(importCmd)
}
