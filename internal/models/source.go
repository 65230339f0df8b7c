// ABOUTME: Source tags and priority tiers for health measurements.
// ABOUTME: Tiers are an explicit ordered enum; lower rank means higher priority.
package models

import (
	"fmt"
	"strings"
)

// Source identifies the system or person that produced a measurement.
type Source string

const (
	SourceManual        Source = "manual"
	SourceHealthConnect Source = "health_connect"
	SourceGoogleFit     Source = "google_fit"
	SourceMiFitness     Source = "mi_fitness"
	SourceRenpho        Source = "renpho"
)

// AllSources lists the sources the system knows about.
var AllSources = []Source{
	SourceManual, SourceHealthConnect, SourceGoogleFit, SourceMiFitness, SourceRenpho,
}

// IsKnown reports whether s is one of AllSources.
func (s Source) IsKnown() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSource normalizes user input ("Google Fit", "google-fit", "GOOGLE_FIT")
// into a Source. Unknown names are returned as-is so they can still be
// ranked (they resolve to the lowest tier).
func ParseSource(s string) (Source, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return "", fmt.Errorf("empty source")
	}
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "healthconnect":
		norm = string(SourceHealthConnect)
	case "googlefit":
		norm = string(SourceGoogleFit)
	case "mifitness", "mi_fit", "zepp":
		norm = string(SourceMiFitness)
	}
	return Source(norm), nil
}

// Tier is a priority level. Tiers are totally ordered: a smaller value wins.
type Tier int

const (
	TierManual Tier = iota + 1
	TierSuperPrimary
	TierPrimary
	TierSecondary
	TierTertiary
)

// AllTiers lists tiers from highest to lowest priority.
var AllTiers = []Tier{TierManual, TierSuperPrimary, TierPrimary, TierSecondary, TierTertiary}

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierManual:
		return "manual"
	case TierSuperPrimary:
		return "super_primary"
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Outranks reports whether t has strictly higher priority than other.
func (t Tier) Outranks(other Tier) bool {
	return t < other
}

// ParseTier parses a tier name as produced by Tier.String.
func ParseTier(s string) (Tier, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	for _, t := range AllTiers {
		if t.String() == norm {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier: %q", s)
}
