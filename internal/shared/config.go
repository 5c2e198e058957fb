package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Remote   RemoteConfig   `toml:"remote"`
	Sync     SyncConfig     `toml:"sync"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path          string `toml:"path"`
	MaxOpenConns  int    `toml:"max_open_conns"`
	MaxIdleConns  int    `toml:"max_idle_conns"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

// RemoteConfig contains the list service endpoint and credentials.
type RemoteConfig struct {
	BaseURL        string  `toml:"base_url"`
	Username       string  `toml:"username"`
	Password       string  `toml:"password"`
	AccessToken    string  `toml:"access_token"`
	RateLimit      float64 `toml:"rate_limit"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SyncConfig controls the background sync loop.
type SyncConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// Interval returns the delay between sync passes.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// LogConfig sets the minimum log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `toml:"level"`
}

// ParsedLevel returns the configured [log.Level], defaulting to info.
func (l LogConfig) ParsedLevel() log.Level {
	if l.Level == "" {
		return log.InfoLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Validate rejects settings the cache cannot run with.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("%w: connection limits must not be negative", ErrInvalidConfig)
	}
	if c.Remote.RateLimit < 0 {
		return fmt.Errorf("%w: remote.rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Remote.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: remote.timeout_seconds must not be negative", ErrInvalidConfig)
	}
	if c.Sync.IntervalSeconds < 0 {
		return fmt.Errorf("%w: sync.interval_seconds must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
