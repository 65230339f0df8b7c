// ABOUTME: install-skill command that teaches Claude Code how to drive the reconciler.
// ABOUTME: Writes the embedded SKILL.md under ~/.claude/skills/health after confirmation.

package main

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

//go:embed skill/SKILL.md
var skillFS embed.FS

var skillSkipConfirm bool

// skillHighlight pairs a CLI command with what the skill lets Claude do through it.
type skillHighlight struct {
	command string
	does    string
}

var skillHighlights = []skillHighlight{
	{"add", "record a manual reading that later imports will not overwrite"},
	{"import", "reconcile exports from Health Connect, Google Fit, Mi Fitness and Renpho"},
	{"log", "say which source won a field and which rule decided it"},
	{"tier", "look up how much each source is trusted for a field"},
	{"lock", "freeze dates up to a cutoff against further imports"},
	{"stale", "find fields no source has refreshed lately"},
}

var installSkillCmd = &cobra.Command{
	Use:   "install-skill",
	Short: "Install Claude Code skill",
	Long: `Install the health skill for Claude Code.

The skill describes the reconciliation tools exposed by "health mcp":
ingesting measurements, previewing a decision before it is written,
reading the decision log, and checking source tiers and the data lock.
It is written to ~/.claude/skills/health/SKILL.md.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return installSkill()
	},
}

func init() {
	installSkillCmd.Flags().BoolVarP(&skillSkipConfirm, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(installSkillCmd)
}

func skillPathIn(home string) string {
	return filepath.Join(home, ".claude", "skills", "health", "SKILL.md")
}

func printSkillSummary(w io.Writer, skillPath string) {
	fmt.Fprintln(w, "Health reconciliation skill for Claude Code")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Claude will be able to:")
	for _, h := range skillHighlights {
		fmt.Fprintf(w, "  %-7s %s\n", h.command, h.does)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Destination: %s\n", skillPath)
}

// writeSkill installs the embedded skill at skillPath, replacing any older copy.
func writeSkill(skillPath string) error {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		return fmt.Errorf("failed to read embedded skill: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(skillPath), 0750); err != nil {
		return fmt.Errorf("failed to create skill directory: %w", err)
	}
	if err := os.WriteFile(skillPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write skill file: %w", err)
	}
	return nil
}

func installSkill() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	skillPath := skillPathIn(home)

	printSkillSummary(os.Stdout, skillPath)
	if _, err := os.Stat(skillPath); err == nil {
		fmt.Println("An installed copy exists and will be replaced.")
	}
	fmt.Println()

	if !skillSkipConfirm {
		fmt.Print("Install? [y/N] ")
		response, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println("Installation canceled.")
			return nil
		}
	}

	if err := writeSkill(skillPath); err != nil {
		return err
	}

	fmt.Println("✓ Installed health skill")
	fmt.Println("Try: \"log my weight as 82 kg\" or \"why was my watch's sleep ignored on the 10th?\"")
	return nil
}
