// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs stdio-based MCP server for Claude integration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/health/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

MCP allows AI assistants like Claude to interact with your health data through
a standardized protocol. The server communicates via stdin/stdout and logs to
stderr.

CLAUDE DESKTOP CONFIGURATION:

  Add this to your Claude Desktop config (claude_desktop_config.json):

  {
    "mcpServers": {
      "health": {
        "command": "health",
        "args": ["mcp"]
      }
    }
  }

  On macOS, the config is at:
    ~/Library/Application Support/Claude/claude_desktop_config.json

AVAILABLE TOOLS:

  ingest_measurement  Reconcile a measurement into the daily record
  preview_decision    Show what a measurement would do, without writing
  get_record          Get a daily record with per-field sources
  get_tier            Get the priority tier of a source
  get_data_lock       Get the data lock
  set_data_lock       Enable or disable the data lock
  find_stale_fields   List fields that need a re-sync
  list_decisions      List recent reconciliation decisions

AVAILABLE RESOURCES:

  health://today              Today's record
  health://decisions/recent   Recent decisions
  health://stale              Stale fields`,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, guard, err := newEngine()
		if err != nil {
			return err
		}

		server, err := mcp.NewServer(db, mcp.Config{
			UserID:    cfg.GetUserID(),
			Locks:     locks,
			Guard:     guard,
			Engine:    engine,
			Pipeline:  pipelineOptions(),
			StaleDays: cfg.GetStaleDays(),
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Handle shutdown signals
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
