package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for wxserverd.
type Config struct {
	ListenAddr       string         `mapstructure:"listen_addr"`
	LogFormat        string         `mapstructure:"log_format"`
	CredentialDigest string         `mapstructure:"credential_digest"` // hex SHA-1 of the shared sensor secret
	Storage          StorageConfig  `mapstructure:"storage"`
	Station          StationConfig  `mapstructure:"station"`
	Display          DisplayConfig  `mapstructure:"display"`
	Resolver         ResolverConfig `mapstructure:"resolver"`
}

// StorageConfig defines the database backend.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// StationConfig seeds the in-memory location state at startup. Position
// updates replace these values for the life of the process; they are not
// written back.
type StationConfig struct {
	Latitude  string `mapstructure:"latitude"`  // decimal degrees
	Longitude string `mapstructure:"longitude"` // decimal degrees
	PlaceName string `mapstructure:"place_name"`
	Timezone  string `mapstructure:"timezone"` // IANA zone identifier
}

// DisplayConfig controls the query windows.
type DisplayConfig struct {
	CurrentWindowHours int `mapstructure:"current_window_hours"`
	HistoryDays        int `mapstructure:"history_days"`
}

// ResolverConfig points at the external geocode/timezone/sun-times services.
type ResolverConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	GeocodeURL   string        `mapstructure:"geocode_url"`
	TimezoneURL  string        `mapstructure:"timezone_url"`
	AstronomyURL string        `mapstructure:"astronomy_url"`
}

var hexDigestRe = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)

// Load reads configuration from flag path, env vars, then default file paths.
// Precedence: flag → $WXSERVER_CONFIG env → ~/.config/wxserver/config.yaml →
// /etc/wxserver/config.yaml
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_format", "json")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite.path", "wxobs.db")
	v.SetDefault("station.latitude", "39.68")
	v.SetDefault("station.longitude", "-75.75")
	v.SetDefault("station.timezone", "America/New_York")
	v.SetDefault("display.current_window_hours", 4)
	v.SetDefault("display.history_days", 14)
	v.SetDefault("resolver.timeout", "10s")
	v.SetDefault("resolver.geocode_url", "https://nominatim.openstreetmap.org/reverse")
	v.SetDefault("resolver.timezone_url", "https://timeapi.io/api/TimeZone/coordinate")
	v.SetDefault("resolver.astronomy_url", "https://api.sunrise-sunset.org/json")

	// Env var support
	v.SetEnvPrefix("WXSERVER")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("WXSERVER_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "wxserver"))
		}
		v.AddConfigPath("/etc/wxserver")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		// Warn if the config file (which holds the credential digest) is
		// world-readable.
		if cfgPath := v.ConfigFileUsed(); cfgPath != "" {
			if info, err := os.Stat(cfgPath); err == nil {
				perm := info.Mode().Perm()
				if perm&0004 != 0 {
					slog.Warn("config file is world-readable", "path", cfgPath, "permissions", fmt.Sprintf("%04o", perm))
				}
			}
		}
	}

	// The digest usually arrives via env for container deployments.
	if d := os.Getenv("WXSERVER_CREDENTIAL_DIGEST"); d != "" {
		v.Set("credential_digest", d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete and correct.
func (c *Config) Validate() error {
	if !hexDigestRe.MatchString(c.CredentialDigest) {
		return fmt.Errorf("credential_digest must be a 40-character hex SHA-1 digest")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite driver")
		}
		dir := filepath.Dir(c.Storage.SQLite.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return fmt.Errorf("creating storage directory %q: %w", dir, err)
			}
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver must be 'sqlite' or 'postgres', got %q", c.Storage.Driver)
	}

	if _, err := strconv.ParseFloat(c.Station.Latitude, 64); err != nil {
		return fmt.Errorf("station.latitude %q is not a decimal degree value", c.Station.Latitude)
	}
	if _, err := strconv.ParseFloat(c.Station.Longitude, 64); err != nil {
		return fmt.Errorf("station.longitude %q is not a decimal degree value", c.Station.Longitude)
	}
	if _, err := time.LoadLocation(c.Station.Timezone); err != nil {
		return fmt.Errorf("station.timezone %q is not a valid IANA zone: %w", c.Station.Timezone, err)
	}

	if c.Display.CurrentWindowHours <= 0 {
		return fmt.Errorf("display.current_window_hours must be positive")
	}
	if c.Display.HistoryDays <= 0 {
		return fmt.Errorf("display.history_days must be positive")
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr %q is not a valid address: %w", c.ListenAddr, err)
	}

	return nil
}

// DSN returns the appropriate DSN for the configured storage driver.
func (c *Config) DSN() string {
	switch c.Storage.Driver {
	case "sqlite":
		return c.Storage.SQLite.Path
	case "postgres":
		return c.Storage.Postgres.DSN
	default:
		return ""
	}
}
