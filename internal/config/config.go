// Package config manages vaultscope CLI configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	ConfigDirName  = ".vaultscope"
	ConfigFileName = "config.json"

	DefaultLogLevel     = "info"
	DefaultAuthProvider = "Cyberark"
	DefaultPageSize     = 100
	DefaultMaxRetries   = 3
	DefaultGCEvery      = 50000

	// Per-request timeout and first backoff delay; backoff doubles per retry.
	DefaultTimeout    = 30 * time.Second
	DefaultRetryDelay = 5 * time.Second
)

// Secret store modes.
const (
	SecretModeLocal = "local"  // encrypted file under the config dir
	SecretModeAWS   = "aws_sm" // AWS Secrets Manager
)

// Config holds user-level configuration for the vaultscope CLI.
type Config struct {
	BaseURL      string `json:"base_url"`
	AuthProvider string `json:"auth_provider"` // Cyberark | LDAP | RADIUS | Windows
	LogLevel     string `json:"log_level"`
	OutputDir    string `json:"output_dir"`

	PageSize        int `json:"page_size"`
	MaxRetries      int `json:"max_retries"`
	RetryDelaySecs  int `json:"retry_delay_secs"`
	TimeoutSecs     int `json:"timeout_secs"`
	GCEveryRecords  int `json:"gc_every_records"`

	SecretMode   string `json:"secret_mode"`    // local | aws_sm
	AWSSecretARN string `json:"aws_secret_arn"` // only for aws_sm mode
	AWSRegion    string `json:"aws_region"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		AuthProvider:   DefaultAuthProvider,
		LogLevel:       DefaultLogLevel,
		OutputDir:      ".",
		PageSize:       DefaultPageSize,
		MaxRetries:     DefaultMaxRetries,
		RetryDelaySecs: int(DefaultRetryDelay / time.Second),
		TimeoutSecs:    int(DefaultTimeout / time.Second),
		GCEveryRecords: DefaultGCEvery,
		SecretMode:     SecretModeLocal,
		AWSRegion:      "us-east-1",
	}
}

// RetryDelay returns the configured first backoff delay.
func (c Config) RetryDelay() time.Duration {
	if c.RetryDelaySecs <= 0 {
		return DefaultRetryDelay
	}
	return time.Duration(c.RetryDelaySecs) * time.Second
}

// Timeout returns the configured per-request timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Validate rejects configs that cannot drive a report run.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive, got %d", c.MaxRetries)
	}
	switch c.SecretMode {
	case SecretModeLocal:
	case SecretModeAWS:
		if c.AWSSecretARN == "" {
			return fmt.Errorf("aws_secret_arn is required when secret_mode is %q", SecretModeAWS)
		}
	default:
		return fmt.Errorf("unknown secret_mode: %q", c.SecretMode)
	}
	return nil
}

// Dir returns the vaultscope config directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ConfigDirName)
}

// Load reads the config from ~/.vaultscope/config.json, falling back to
// defaults when no file exists.
func Load() (Config, error) {
	return LoadFrom(filepath.Join(Dir(), ConfigFileName))
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save persists the config to ~/.vaultscope/config.json.
func Save(cfg Config) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0600)
}
