package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override file credentials.
const (
	EnvAPIKey       = "YTPA_API_KEY"
	EnvClientSecret = "GOOGLE_CLIENT_SECRET"
	EnvClientToken  = "GOOGLE_CLIENT_TOKEN"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Adder       AdderConfig       `toml:"adder"`
	Retry       RetryConfig       `toml:"retry"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	YouTube YouTubeConfig `toml:"youtube"`
}

// YouTubeConfig contains YouTube Data API credentials.
type YouTubeConfig struct {
	APIKey           string `toml:"api_key"`
	ClientSecretPath string `toml:"client_secret_path"`
	TokenPath        string `toml:"token_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// AdderConfig controls the auto adder's polling cycle.
type AdderConfig struct {
	Name           string        `toml:"name"`
	TargetPlaylist string        `toml:"target_playlist"`
	Filter         string        `toml:"filter"`
	Workers        int           `toml:"workers"`
	RateLimit      float64       `toml:"rate_limit"`
	Interval       time.Duration `toml:"interval"`
	LockPath       string        `toml:"lock_path"`
}

// RetryConfig is the backoff policy applied to YouTube API calls.
type RetryConfig struct {
	MaxRetries     int           `toml:"max_retries"`
	InitialBackoff time.Duration `toml:"initial_backoff"`
	MaxBackoff     time.Duration `toml:"max_backoff"`
	Multiplier     float64       `toml:"multiplier"`
	Jitter         float64       `toml:"jitter"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults, and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
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
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return WriteFileAtomic(path, buf.Bytes(), 0644)
}

// Validate checks the values the auto adder depends on.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	if c.Adder.Workers < 1 {
		return fmt.Errorf("%w: adder.workers must be at least 1", ErrInvalidConfig)
	}
	if c.Adder.RateLimit <= 0 {
		return fmt.Errorf("%w: adder.rate_limit must be positive", ErrInvalidConfig)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("%w: retry.max_retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides credential settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Credentials.YouTube.APIKey = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		c.Credentials.YouTube.ClientSecretPath = v
	}
	if v := os.Getenv(EnvClientToken); v != "" {
		c.Credentials.YouTube.TokenPath = v
	}
}
