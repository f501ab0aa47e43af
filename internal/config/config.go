// Package config loads the application configuration from YAML with
// environment overrides, mirroring the layered defaults->file->env approach
// used across the codebase.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the adaptive task core.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// AI provider configuration
	AI AIConfig `yaml:"ai"`

	// Quota configuration
	Quota QuotaConfig `yaml:"quota"`

	// Persistence configuration
	Storage StorageConfig `yaml:"storage"`

	// Offline sync configuration
	Sync SyncConfig `yaml:"sync"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AIConfig configures the text-generation collaborator.
type AIConfig struct {
	Provider  string `yaml:"provider"` // gemini
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Timeout   string `yaml:"timeout"`
	MaxTokens int    `yaml:"max_tokens"`
}

// QuotaConfig configures monthly allowance limits per tier.
type QuotaConfig struct {
	FreeLimit    int `yaml:"free_limit"`
	PremiumLimit int `yaml:"premium_limit"`
}

// StorageConfig configures the persistence collaborator.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	CacheDir     string `yaml:"cache_dir"`
}

// SyncConfig configures the offline reconciler.
type SyncConfig struct {
	WatchCache  bool   `yaml:"watch_cache"`
	Debounce    string `yaml:"debounce"`
	MaxParallel int    `yaml:"max_parallel"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "neuroflow",
		Version: "0.4.0",

		AI: AIConfig{
			Provider:  "gemini",
			Model:     "gemini-2.5-flash",
			Timeout:   "8s",
			MaxTokens: 1024,
		},

		Quota: QuotaConfig{
			FreeLimit:    10,
			PremiumLimit: 100,
		},

		Storage: StorageConfig{
			DatabasePath: "data/neuroflow.db",
			CacheDir:     ".flow/cache",
		},

		Sync: SyncConfig{
			WatchCache:  true,
			Debounce:    "500ms",
			MaxParallel: 4,
		},

		Logging: LoggingConfig{
			Level: "info",
			File:  "neuroflow.log",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.AI.APIKey = key
		if c.AI.Provider == "" {
			c.AI.Provider = "gemini"
		}
	}
	if path := os.Getenv("NEUROFLOW_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if dir := os.Getenv("NEUROFLOW_CACHE_DIR"); dir != "" {
		c.Storage.CacheDir = dir
	}
}

// GetAITimeout returns the AI call timeout as a duration.
func (c *Config) GetAITimeout() time.Duration {
	d, err := time.ParseDuration(c.AI.Timeout)
	if err != nil {
		return 8 * time.Second
	}
	return d
}

// GetSyncDebounce returns the cache watcher debounce as a duration.
func (c *Config) GetSyncDebounce() time.Duration {
	d, err := time.ParseDuration(c.Sync.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// LimitForTier returns the configured monthly limit for a billing tier name.
func (c *Config) LimitForTier(tier string) int {
	if tier == "premium" {
		if c.Quota.PremiumLimit > 0 {
			return c.Quota.PremiumLimit
		}
		return 100
	}
	if c.Quota.FreeLimit > 0 {
		return c.Quota.FreeLimit
	}
	return 10
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Quota.FreeLimit <= 0 {
		return fmt.Errorf("quota free_limit must be positive, got %d", c.Quota.FreeLimit)
	}
	if c.Quota.PremiumLimit < c.Quota.FreeLimit {
		return fmt.Errorf("quota premium_limit (%d) must be at least free_limit (%d)",
			c.Quota.PremiumLimit, c.Quota.FreeLimit)
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path must be set")
	}
	return nil
}
