// ABOUTME: Tests for health configuration management.
// ABOUTME: Covers load, save, defaults, env overrides, tier overrides, and store selection.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/health/internal/models"
	"github.com/harperreed/health/internal/storage"
)

func TestGettersDefault(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetLockBackend(); got != "sqlite" {
		t.Errorf("GetLockBackend() = %q, want %q", got, "sqlite")
	}
	if got := cfg.GetUserID(); got != "default" {
		t.Errorf("GetUserID() = %q, want %q", got, "default")
	}
	if got := cfg.GetMaxRetries(); got != 5 {
		t.Errorf("GetMaxRetries() = %d, want 5", got)
	}
	if got := cfg.GetStaleDays(); got != 7 {
		t.Errorf("GetStaleDays() = %d, want 7", got)
	}
	gap, err := cfg.TieGap()
	if err != nil || gap != 2*time.Hour {
		t.Errorf("TieGap() = %v, %v; want 2h", gap, err)
	}
}

func TestGetDataDirDefault(t *testing.T) {
	cfg := &Config{}

	// GetDataDir with empty DataDir should return storage.DataDir()
	if got := cfg.GetDataDir(); got != storage.DataDir() {
		t.Errorf("GetDataDir() = %q, want %q", got, storage.DataDir())
	}
}

func TestGetDataDirExplicit(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/health-test"}
	if got := cfg.GetDataDir(); got != "/tmp/health-test" {
		t.Errorf("GetDataDir() = %q, want %q", got, "/tmp/health-test")
	}
	if got := cfg.DBPath(); got != "/tmp/health-test/health.db" {
		t.Errorf("DBPath() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/tmp/foo", "/tmp/foo"},
		{"~", home},
		{"~/data/health", filepath.Join(home, "data/health")},
		{"data/health", "data/health"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTieGapInvalid(t *testing.T) {
	for _, gap := range []string{"soon", "-1h", "0s"} {
		cfg := &Config{PrimaryTieGap: gap}
		if _, err := cfg.TieGap(); err == nil {
			t.Errorf("TieGap(%q) should error", gap)
		}
	}
}

func TestLoadNonExistentConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with no config file should not error: %v", err)
	}
	if cfg.DataDir != "" {
		t.Errorf("Expected empty DataDir, got %q", cfg.DataDir)
	}
	if cfg.UserID != DefaultUserID {
		t.Errorf("Expected default user, got %q", cfg.UserID)
	}
	if !cfg.LockFailOpen {
		t.Error("Expected lock_fail_open to default to true")
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected max_retries %d, got %d", DefaultMaxRetries, cfg.MaxRetries)
	}
	if cfg.PrimaryTieGap != "2h0m0s" {
		t.Errorf("Expected primary_tie_gap 2h0m0s, got %q", cfg.PrimaryTieGap)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := &Config{
		DataDir:       "/custom/data",
		UserID:        "harper",
		LockBackend:   "charm",
		LockFailOpen:  false,
		PrimaryTieGap: "90m",
		MaxRetries:    3,
		TierOverrides: []TierOverride{{Source: "renpho", Field: "weight", Tier: "super_primary"}},
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.DataDir != "/custom/data" || loaded.UserID != "harper" || loaded.LockBackend != "charm" {
		t.Errorf("Loaded config mismatch: %+v", loaded)
	}
	if loaded.LockFailOpen {
		t.Error("Expected saved lock_fail_open=false to survive a reload")
	}
	if gap, _ := loaded.TieGap(); gap != 90*time.Minute {
		t.Errorf("Expected 90m tie gap, got %v", gap)
	}
	if len(loaded.TierOverrides) != 1 || loaded.TierOverrides[0].Tier != "super_primary" {
		t.Errorf("Expected tier override to round trip, got %+v", loaded.TierOverrides)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HEALTH_USER_ID", "from-env")
	t.Setenv("HEALTH_MAX_RETRIES", "9")
	t.Setenv("HEALTH_LOCK_FAIL_OPEN", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.UserID != "from-env" {
		t.Errorf("Expected user from env, got %q", cfg.UserID)
	}
	if cfg.MaxRetries != 9 {
		t.Errorf("Expected max_retries 9, got %d", cfg.MaxRetries)
	}
	if cfg.LockFailOpen {
		t.Error("Expected env to turn lock_fail_open off")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "nested"))

	if err := (&Config{DataDir: "/test"}).Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "nested", "health", "config.json")); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "health")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte("not json{"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() should fail on invalid JSON")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	if got := GetConfigPath(); got != "/tmp/xdg-config/health/config.json" {
		t.Errorf("GetConfigPath() = %q", got)
	}
}

func TestPriorityTable(t *testing.T) {
	cfg := &Config{TierOverrides: []TierOverride{
		{Source: "Renpho", Field: "weight", Tier: "super-primary"},
		{Source: "google_fit", Field: "sleep_duration", Disabled: true},
	}}

	table, err := cfg.PriorityTable()
	if err != nil {
		t.Fatalf("PriorityTable() failed: %v", err)
	}
	if got := table.Tier(models.SourceRenpho, models.FieldWeight); got != models.TierSuperPrimary {
		t.Errorf("renpho weight tier = %s, want super_primary", got)
	}
	if got := table.Tier(models.SourceGoogleFit, models.FieldSleepDuration); got != models.TierSecondary {
		t.Errorf("disabled override should fall back to secondary, got %s", got)
	}
}

func TestPriorityTableDefault(t *testing.T) {
	table, err := (&Config{}).PriorityTable()
	if err != nil {
		t.Fatalf("PriorityTable() failed: %v", err)
	}
	if got := table.Tier(models.SourceGoogleFit, models.FieldSleepDuration); got != models.TierSuperPrimary {
		t.Errorf("expected built-in sleep override, got %s", got)
	}
}

func TestPriorityTableInvalid(t *testing.T) {
	tests := []TierOverride{
		{Source: "renpho", Field: "nonsense", Tier: "primary"},
		{Source: "renpho", Field: "weight", Tier: "best"},
		{Source: " ", Field: "weight", Tier: "primary"},
	}
	for _, o := range tests {
		cfg := &Config{TierOverrides: []TierOverride{o}}
		if _, err := cfg.PriorityTable(); err == nil {
			t.Errorf("PriorityTable() with %+v should error", o)
		}
	}
}

func TestOpenStorage(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir()}

	db, err := cfg.OpenStorage()
	if err != nil {
		t.Fatalf("OpenStorage() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(cfg.DBPath()); err != nil {
		t.Errorf("Expected database file: %v", err)
	}
}

func TestOpenLockStoreSQLite(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir()}
	db, err := cfg.OpenStorage()
	if err != nil {
		t.Fatalf("OpenStorage() failed: %v", err)
	}
	defer db.Close()

	store, err := cfg.OpenLockStore(db)
	if err != nil {
		t.Fatalf("OpenLockStore() failed: %v", err)
	}
	if store != LockStore(db) {
		t.Error("sqlite lock backend should reuse the database")
	}
}

func TestOpenLockStoreInvalidBackend(t *testing.T) {
	cfg := &Config{LockBackend: "postgres"}
	if _, err := cfg.OpenLockStore(nil); err == nil {
		t.Error("Expected error for unknown lock backend")
	}
}

func TestConfigJSONSerialization(t *testing.T) {
	cfg := &Config{DataDir: "/data", LockFailOpen: true}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"data_dir":"/data","lock_fail_open":true}` {
		t.Errorf("Unexpected JSON: %s", data)
	}
}
