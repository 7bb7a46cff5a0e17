package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testDigest = "3c362b7e66b02e3756dd55eee3dcb663e32e0a06"

func validConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		LogFormat:        "json",
		CredentialDigest: testDigest,
		Storage: StorageConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "wxobs.db"},
		},
		Station: StationConfig{
			Latitude:  "39.68",
			Longitude: "-75.75",
			Timezone:  "America/New_York",
		},
		Display: DisplayConfig{
			CurrentWindowHours: 4,
			HistoryDays:        14,
		},
		Resolver: ResolverConfig{Timeout: 10 * time.Second},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid sqlite config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid postgres config",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.Postgres.DSN = "postgres://wx:wx@localhost/wx"
			},
		},
		{
			name:    "missing credential digest",
			mutate:  func(c *Config) { c.CredentialDigest = "" },
			wantErr: "credential_digest",
		},
		{
			name:    "digest wrong length",
			mutate:  func(c *Config) { c.CredentialDigest = "abc123" },
			wantErr: "credential_digest",
		},
		{
			name:    "digest not hex",
			mutate:  func(c *Config) { c.CredentialDigest = strings.Repeat("z", 40) },
			wantErr: "credential_digest",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "mysql" },
			wantErr: "storage.driver",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.Postgres.DSN = ""
			},
			wantErr: "storage.postgres.dsn",
		},
		{
			name:    "latitude not numeric",
			mutate:  func(c *Config) { c.Station.Latitude = "north" },
			wantErr: "station.latitude",
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Station.Timezone = "Mars/Olympus_Mons" },
			wantErr: "station.timezone",
		},
		{
			name:    "zero current window",
			mutate:  func(c *Config) { c.Display.CurrentWindowHours = 0 },
			wantErr: "current_window_hours",
		},
		{
			name:    "negative history days",
			mutate:  func(c *Config) { c.Display.HistoryDays = -1 },
			wantErr: "history_days",
		},
		{
			name:    "bad listen addr",
			mutate:  func(c *Config) { c.ListenAddr = "8080" },
			wantErr: "listen_addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := validConfig()
	if got := cfg.DSN(); got != "wxobs.db" {
		t.Errorf("sqlite DSN = %q", got)
	}

	cfg.Storage.Driver = "postgres"
	cfg.Storage.Postgres.DSN = "postgres://wx:wx@localhost/wx"
	if got := cfg.DSN(); got != "postgres://wx:wx@localhost/wx" {
		t.Errorf("postgres DSN = %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
listen_addr: ":9090"
credential_digest: "` + testDigest + `"
storage:
  driver: sqlite
  sqlite:
    path: ` + filepath.Join(dir, "test.db") + `
station:
  latitude: "51.50"
  longitude: "-0.12"
  timezone: "Europe/London"
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.Station.Timezone != "Europe/London" {
		t.Errorf("timezone = %q", cfg.Station.Timezone)
	}
	// Unset values fall back to defaults.
	if cfg.Display.HistoryDays != 14 {
		t.Errorf("history_days = %d", cfg.Display.HistoryDays)
	}
	if cfg.Resolver.Timeout != 10*time.Second {
		t.Errorf("resolver timeout = %v", cfg.Resolver.Timeout)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
credential_digest: "not-a-digest"
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
