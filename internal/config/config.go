// ABOUTME: Health configuration management with lock backend selection.
// ABOUTME: Loads JSON config through viper with HEALTH_* env overrides and opens stores.

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harperreed/health/internal/charm"
	"github.com/harperreed/health/internal/freshness"
	"github.com/harperreed/health/internal/models"
	"github.com/harperreed/health/internal/storage"
	"github.com/spf13/viper"
)

const (
	DefaultUserID     = "default"
	DefaultMaxRetries = 5
	DefaultStaleDays  = 7

	LockBackendSQLite = "sqlite"
	LockBackendCharm  = "charm"
)

// Config stores health tool configuration.
type Config struct {
	// DataDir is the root directory for data storage. health.db lives here.
	// Supports ~ expansion for home directory. Defaults to ~/.local/share/health.
	DataDir string `json:"data_dir,omitempty" mapstructure:"data_dir"`

	// UserID is the user every command acts for unless --user is given.
	UserID string `json:"user_id,omitempty" mapstructure:"user_id"`

	// LockBackend selects where data lock settings live: "sqlite" (default)
	// or "charm" to share them across devices.
	LockBackend string `json:"lock_backend,omitempty" mapstructure:"lock_backend"`

	// LockFailOpen treats a date as unlocked when lock settings cannot be read.
	LockFailOpen bool `json:"lock_fail_open" mapstructure:"lock_fail_open"`

	// PrimaryTieGap is how much newer a primary source must be to replace
	// another primary source, as a Go duration ("2h").
	PrimaryTieGap string `json:"primary_tie_gap,omitempty" mapstructure:"primary_tie_gap"`

	// MaxRetries bounds read-decide-write retries after a write conflict.
	MaxRetries int `json:"max_retries,omitempty" mapstructure:"max_retries"`

	// StaleDays is the default threshold for the stale field report.
	StaleDays int `json:"stale_days,omitempty" mapstructure:"stale_days"`

	LogLevel  string `json:"log_level,omitempty" mapstructure:"log_level"`
	LogFormat string `json:"log_format,omitempty" mapstructure:"log_format"`

	// TierOverrides add to or disable the built-in field overrides.
	TierOverrides []TierOverride `json:"tier_overrides,omitempty" mapstructure:"tier_overrides"`
}

// TierOverride pins a tier for one source on one field.
type TierOverride struct {
	Source   string `json:"source" mapstructure:"source"`
	Field    string `json:"field" mapstructure:"field"`
	Tier     string `json:"tier,omitempty" mapstructure:"tier"`
	Disabled bool   `json:"disabled,omitempty" mapstructure:"disabled"`
}

// LockStore reads and writes per-user data lock settings.
type LockStore interface {
	freshness.LockSettingsReader
	SetDataLock(ctx context.Context, userID string, lock models.DataLock) error
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "health.db")
}

// GetUserID returns the configured user, defaulting to "default".
func (c *Config) GetUserID() string {
	if c.UserID == "" {
		return DefaultUserID
	}
	return c.UserID
}

// GetLockBackend returns the configured lock backend, defaulting to "sqlite".
func (c *Config) GetLockBackend() string {
	if c.LockBackend == "" {
		return LockBackendSQLite
	}
	return c.LockBackend
}

// GetMaxRetries returns the conflict retry bound.
func (c *Config) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

// GetStaleDays returns the default stale threshold in days.
func (c *Config) GetStaleDays() int {
	if c.StaleDays <= 0 {
		return DefaultStaleDays
	}
	return c.StaleDays
}

// TieGap parses PrimaryTieGap, defaulting to the engine default.
func (c *Config) TieGap() (time.Duration, error) {
	if c.PrimaryTieGap == "" {
		return freshness.DefaultPrimaryTieGap, nil
	}
	d, err := time.ParseDuration(c.PrimaryTieGap)
	if err != nil {
		return 0, fmt.Errorf("invalid primary_tie_gap %q: %w", c.PrimaryTieGap, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid primary_tie_gap %q: must be positive", c.PrimaryTieGap)
	}
	return d, nil
}

// PriorityTable builds the priority table with the configured overrides.
func (c *Config) PriorityTable() (*freshness.Table, error) {
	if len(c.TierOverrides) == 0 {
		return freshness.DefaultTable(), nil
	}
	overrides := make([]freshness.Override, 0, len(c.TierOverrides))
	for _, o := range c.TierOverrides {
		source, err := models.ParseSource(o.Source)
		if err != nil {
			return nil, fmt.Errorf("tier override: %w", err)
		}
		if !models.IsValidField(o.Field) {
			return nil, fmt.Errorf("tier override: unknown field %q", o.Field)
		}
		override := freshness.Override{Source: source, Field: models.FieldName(o.Field), Disabled: o.Disabled}
		if !o.Disabled {
			override.Tier, err = models.ParseTier(o.Tier)
			if err != nil {
				return nil, fmt.Errorf("tier override for %s/%s: %w", o.Source, o.Field, err)
			}
		}
		overrides = append(overrides, override)
	}
	return freshness.NewTable(overrides...), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage opens the SQLite store in the configured data directory.
func (c *Config) OpenStorage() (*storage.DB, error) {
	return storage.Open(c.DBPath())
}

// OpenLockStore returns the lock settings store for the configured backend.
// The sqlite backend shares db.
func (c *Config) OpenLockStore(db *storage.DB) (LockStore, error) {
	switch c.GetLockBackend() {
	case LockBackendSQLite:
		return db, nil
	case LockBackendCharm:
		client, err := charm.InitClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown lock backend: %q", c.LockBackend)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "health", "config.json")
}

// Load reads config from disk, applying defaults and HEALTH_* env overrides.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom reads config from path. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HEALTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")
	v.SetDefault("user_id", DefaultUserID)
	v.SetDefault("lock_backend", LockBackendSQLite)
	v.SetDefault("lock_fail_open", true)
	v.SetDefault("primary_tie_gap", freshness.DefaultPrimaryTieGap.String())
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("stale_days", DefaultStaleDays)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "console")
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
