// ABOUTME: CLI commands for Charm-based sync of data lock settings.
// ABOUTME: Supports link, unlink, status, push, pull, repair, reset, and wipe operations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/charm/kv"
	"github.com/fatih/color"
	"github.com/harperreed/health/internal/config"
	"github.com/harperreed/health/internal/models"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync data lock settings across devices",
	Long: `Sync data lock settings across devices using Charm Cloud.

Lock settings are read from Charm when lock_backend is "charm" in config.
They are E2E encrypted with your SSH key before upload.
The server never sees your unencrypted settings.

GETTING STARTED:

  1. Link your device (creates/uses SSH key automatically):
     health sync link

  2. On other devices, link with the same Charm account:
     health sync link

  3. Check sync status:
     health sync status

COMMANDS:

  link        Link this device to your Charm account
  unlink      Disconnect this device from Charm
  status      Show sync status and account info
  push        Copy lock settings from SQLite to Charm
  pull        Copy lock settings from Charm to SQLite
  repair      Repair database corruption (checkpoints WAL, removes SHM, vacuums)
  reset       Reset local data and restore from cloud (destructive)
  wipe        Delete cloud and local data (destructive)

Settings sync automatically after each 'health lock' change.`,
}

var syncLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link this device to Charm",
	Long: `Link this device to your Charm account.

If you don't have a Charm account, one will be created using your SSH key.
If you already have an account, you'll be prompted to link via charm.sh.

Example:
  health sync link`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Use charm CLI to link
		charmCmd := exec.Command("charm", "link")
		charmCmd.Stdin = os.Stdin
		charmCmd.Stdout = os.Stdout
		charmCmd.Stderr = os.Stderr

		if err := charmCmd.Run(); err != nil {
			return fmt.Errorf("failed to link: %w\n\nMake sure 'charm' CLI is installed: go install github.com/charmbracelet/charm@latest", err)
		}

		color.Green("\n✓ Device linked to Charm")
		if err := setLockBackend(config.LockBackendCharm); err != nil {
			color.Yellow("⚠ Could not switch lock backend: %v", err)
		} else {
			fmt.Println("Your lock settings will now sync automatically across devices.")
		}

		// Sync immediately after linking
		if client, err := openCharm(); err == nil {
			if err := client.Sync(); err != nil {
				color.Yellow("⚠ Initial sync failed: %v", err)
			} else {
				color.Green("✓ Initial sync complete")
			}
		}

		return nil
	},
}

var syncUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Disconnect from Charm",
	Long: `Disconnect this device from Charm.

This does not delete your local health data.
You can link again later with 'health sync link'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Use charm CLI to unlink
		charmCmd := exec.Command("charm", "unlink")
		charmCmd.Stdin = os.Stdin
		charmCmd.Stdout = os.Stdout
		charmCmd.Stderr = os.Stderr

		if err := charmCmd.Run(); err != nil {
			return fmt.Errorf("failed to unlink: %w", err)
		}

		color.Green("✓ Device unlinked from Charm")
		if err := setLockBackend(config.LockBackendSQLite); err != nil {
			color.Yellow("⚠ Could not switch lock backend: %v", err)
		}
		fmt.Println("Your local lock settings are preserved.")

		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	Long: `Show current sync status including:
- Charm account info
- Connection status
- Local data info`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openCharm()
		if err != nil {
			color.Yellow("Charm client not initialized: %v", err)
			fmt.Println("\nRun 'health sync link' to connect to Charm.")
			return nil
		}

		id, err := client.ID()
		if err != nil {
			color.Yellow("Not linked to Charm")
			fmt.Println("\nRun 'health sync link' to connect to Charm.")
			return nil
		}

		fmt.Println("Charm ID:", id)
		fmt.Println("Server: charm.2389.dev")
		fmt.Println()

		remote, err := client.ListDataLocks(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list lock settings: %w", err)
		}

		color.Green("✓ Connected to Charm")
		fmt.Printf("  Lock backend: %s\n", cfg.GetLockBackend())
		fmt.Printf("  Users with lock settings: %d\n", len(remote))
		if client.IsReadOnly() {
			color.Yellow("  Read-only: another process holds the database")
		}

		return nil
	},
}

var syncWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete all cloud and local data",
	Long: `Delete all cloud backups and local data.

This is a DESTRUCTIVE operation. ALL data will be permanently deleted.
Use this to:
- Completely remove all health data
- Start completely fresh`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Confirm
		fmt.Println("This will PERMANENTLY DELETE all cloud backups and local lock settings.")
		fmt.Println("Records in SQLite are not touched.")
		fmt.Print("Type 'wipe' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "wipe" {
			fmt.Println("Canceled.")
			return nil
		}

		result, err := kv.Wipe("health")
		if err != nil {
			return fmt.Errorf("wipe failed: %w", err)
		}

		color.Green("✓ Data wiped successfully")
		fmt.Printf("  Cloud backups deleted: %d\n", result.CloudBackupsDeleted)
		fmt.Printf("  Local files deleted: %d\n", result.LocalFilesDeleted)

		return nil
	},
}

var syncRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair Charm database corruption",
	Long: `Repair Charm KV database corruption by checkpointing WAL, removing SHM files, checking integrity, and vacuuming.

Use this when you encounter database lock errors or corruption.
Run with --force to attempt recovery even if integrity checks fail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		fmt.Println("Repairing health database...")
		result, err := kv.Repair("health", force)

		// Show what happened
		if result.WalCheckpointed {
			color.Green("  ✓ WAL checkpointed")
		}
		if result.ShmRemoved {
			color.Green("  ✓ SHM file removed")
		}
		if result.IntegrityOK {
			color.Green("  ✓ Integrity check passed")
		} else {
			color.Red("  ✗ Integrity check failed")
		}
		if result.Vacuumed {
			color.Green("  ✓ Database vacuumed")
		}

		if err != nil {
			if !force {
				color.Yellow("\nRun with --force to attempt recovery.")
			}
			return fmt.Errorf("repair failed: %w", err)
		}

		color.Green("\n✓ Repair complete")
		return nil
	},
}

var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset local data and restore from cloud",
	Long: `Delete all local data and restore from Charm Cloud.

This is a destructive operation. All local data will be lost and restored from cloud.
Use this to:
- Fix sync conflicts
- Reset a device to cloud state
- Start fresh on a device`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Confirm
		fmt.Println("This will DELETE all local Charm data and restore from cloud.")
		fmt.Print("Continue? [y/N]: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "y" && confirm != "Y" {
			fmt.Println("Canceled.")
			return nil
		}

		err := kv.Reset("health")
		if err != nil {
			return fmt.Errorf("reset failed: %w", err)
		}

		color.Green("✓ Local data reset and restored from cloud")

		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Copy lock settings from SQLite to Charm",
	Long: `Copy every user's lock settings from the SQLite database to Charm KV.
Run this once before switching lock_backend to "charm".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openCharm()
		if err != nil {
			return fmt.Errorf("failed to initialize charm client: %w", err)
		}

		settings, err := db.ListDataLocks(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list lock settings: %w", err)
		}
		n, err := copyLocks(cmd, settings, client)
		if err != nil {
			return err
		}
		color.Green("✓ Pushed lock settings for %d users", n)
		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Copy lock settings from Charm to SQLite",
	Long: `Copy every user's lock settings from Charm KV into the SQLite database.
Run this before switching lock_backend back to "sqlite".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openCharm()
		if err != nil {
			return fmt.Errorf("failed to initialize charm client: %w", err)
		}
		if err := client.Sync(); err != nil {
			color.Yellow("⚠ Sync failed, using local copy: %v", err)
		}

		settings, err := client.ListDataLocks(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list lock settings: %w", err)
		}
		n, err := copyLocks(cmd, settings, db)
		if err != nil {
			return err
		}
		color.Green("✓ Pulled lock settings for %d users", n)
		return nil
	},
}

type lockWriter interface {
	SetDataLock(ctx context.Context, userID string, lock models.DataLock) error
}

func copyLocks(cmd *cobra.Command, settings map[string]models.DataLock, dst lockWriter) (int, error) {
	n := 0
	for userID, lock := range settings {
		if err := dst.SetDataLock(cmd.Context(), userID, lock); err != nil {
			return n, fmt.Errorf("failed to copy lock for %s: %w", userID, err)
		}
		n++
	}
	return n, nil
}

func init() {
	syncCmd.AddCommand(syncLinkCmd)
	syncCmd.AddCommand(syncUnlinkCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncRepairCmd)
	syncCmd.AddCommand(syncResetCmd)
	syncCmd.AddCommand(syncWipeCmd)

	// Add --force flag to repair command
	syncRepairCmd.Flags().Bool("force", false, "Attempt recovery even if integrity checks fail")

	rootCmd.AddCommand(syncCmd)
}

// setLockBackend persists the lock backend choice. An explicit --config file
// is left untouched.
func setLockBackend(backend string) error {
	if configPath != "" {
		return nil
	}
	onDisk, err := config.Load()
	if err != nil {
		return err
	}
	if onDisk.GetLockBackend() == backend {
		return nil
	}
	onDisk.LockBackend = backend
	return onDisk.Save()
}
