// ABOUTME: Root Cobra command for health CLI.
// ABOUTME: Loads config, builds the logger, and opens the stores via PersistentPre/PostRunE.
package main

import (
	"fmt"

	"github.com/harperreed/health/internal/charm"
	"github.com/harperreed/health/internal/config"
	"github.com/harperreed/health/internal/logging"
	"github.com/harperreed/health/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	userFlag   string
	logLevel   string

	cfg         *config.Config
	db          *storage.DB
	locks       config.LockStore
	charmClient *charm.Client
	logger      zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "health",
	Short: "Reconcile health metrics from many sources into one daily record",
	Long: `Health keeps one record per day of your health metrics and decides, field
by field, which source wins when several report the same thing.

HOW VALUES ARE CHOSEN:

  Every source has a priority tier. Higher tiers replace lower ones, lower
  tiers only fill gaps, and your own manual entries are never overwritten.

  manual           Manual          always wins
  health_connect   Primary         replaces secondary/tertiary data
  renpho           Primary         (a newer primary reading must be 2h newer)
  google_fit       Secondary       fills gaps; Super-Primary for sleep_duration
  mi_fitness       Tertiary        fills gaps only

QUICK START:

  $ health add weight 82.5                        # Manual entry, always kept
  $ health add steps 9500 --source health_connect # Entry from a device
  $ health import export.csv --source google_fit  # Bulk import
  $ health show                                   # Today's record with sources
  $ health log                                    # Why each value won or lost

DATA LOCK:

  $ health lock set 2025-01-31   # Freeze every date on or before Jan 31
  $ health lock off

MCP INTEGRATION:

  Run 'health mcp' to start the Model Context Protocol server for use with
  Claude Desktop or other MCP-compatible AI assistants:

  {
    "mcpServers": {
      "health": { "command": "health", "args": ["mcp"] }
    }
  }

DATA STORAGE:

  Records live in SQLite at ~/.local/share/health/health.db. Configuration
  is read from ~/.config/health/config.json and HEALTH_* environment
  variables. Set lock_backend to "charm" to share lock settings across
  devices through Charm Cloud.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip store setup for commands that don't need it
		switch cmd.Name() {
		case "help", "version", "install-skill", "completion":
			return nil
		}

		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if userFlag != "" {
			cfg.UserID = userFlag
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

		db, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		locks, err = cfg.OpenLockStore(db)
		if err != nil {
			return fmt.Errorf("failed to open lock store: %w", err)
		}
		if client, ok := locks.(*charm.Client); ok {
			charmClient = client
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if charmClient != nil {
			if err := charmClient.Close(); err != nil {
				logger.Warn().Err(err).Msg("close charm client")
			}
			charmClient = nil
		}
		locks = nil
		if db != nil {
			err := db.Close()
			db = nil
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/health/config.json)")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user to act for (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// openCharm returns the shared Charm client. It is closed after the command runs.
func openCharm() (*charm.Client, error) {
	if charmClient != nil {
		return charmClient, nil
	}
	client, err := charm.InitClient()
	if err != nil {
		return nil, err
	}
	charmClient = client
	return client, nil
}
