// Package config provides configuration management for the recalld service.
// It supports loading configuration from YAML files, environment variables,
// and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultListenAddress    = ":8080"
	DefaultProviderBaseURL  = "https://us-east-1.recall.ai/api/v1"
	DefaultSweepInterval    = 2 * time.Minute
	DefaultSweepLookback    = 24 * time.Hour
	DefaultSyncThrottleTTL  = 5 * time.Minute
	DefaultRequestTimeout   = 30 * time.Second
	DefaultRedisAddr        = "localhost:6379"
	DefaultConfigDir        = ".recalld"
	DefaultConfigFile       = "config.yaml"
)

// ProviderConfig holds remote calendar/bot provider settings.
type ProviderConfig struct {
	// BaseURL is the provider API base, e.g. https://us-east-1.recall.ai/api/v1.
	BaseURL string `yaml:"base_url"`

	// APIKey authorizes provider API calls. Prefer the credentials store;
	// this field exists for container deployments.
	APIKey string `yaml:"api_key,omitempty"`

	// RequestTimeout bounds individual provider HTTP calls.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SyncConfig holds calendar synchronization settings.
type SyncConfig struct {
	// SweepInterval is how often the periodic full sweep runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// SweepLookback is the rolling watermark window for the sweep.
	SweepLookback time.Duration `yaml:"sweep_lookback"`

	// ThrottleTTL bounds how often an on-demand (user-view) sync may run
	// per user.
	ThrottleTTL time.Duration `yaml:"throttle_ttl"`
}

// RedisConfig holds queue backend settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// ServiceConfig is the top-level configuration the recalld service loads.
type ServiceConfig struct {
	// ListenAddress is the HTTP bind address for webhooks and metrics.
	ListenAddress string `yaml:"listen_address"`

	// PublicBaseURL is the externally reachable base address used to build
	// realtime webhook callback URLs handed to the provider. Empty disables
	// realtime delivery subscriptions.
	PublicBaseURL string `yaml:"public_base_url"`

	Provider ProviderConfig `yaml:"provider"`
	Sync     SyncConfig     `yaml:"sync"`
	Redis    RedisConfig    `yaml:"redis"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogJSON enables JSON log output.
	LogJSON bool `yaml:"log_json"`

	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns a ServiceConfig populated with defaults.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		ListenAddress: DefaultListenAddress,
		Provider: ProviderConfig{
			BaseURL:        DefaultProviderBaseURL,
			RequestTimeout: DefaultRequestTimeout,
		},
		Sync: SyncConfig{
			SweepInterval: DefaultSweepInterval,
			SweepLookback: DefaultSweepLookback,
			ThrottleTTL:   DefaultSyncThrottleTTL,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		LogLevel: "info",
	}
}

// ConfigPath returns the default config file path (~/.recalld/config.yaml).
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Load reads configuration from the given path (or the default path when
// empty), then applies environment variable overrides. A missing config file
// is not an error; defaults are used.
func Load(path string) (*ServiceConfig, error) {
	cfg := DefaultConfig()

	if path == "" {
		defaultPath, err := ConfigPath()
		if err == nil {
			path = defaultPath
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Fall through to defaults + env.
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides config values from RECALLD_* environment variables.
func (c *ServiceConfig) applyEnv() {
	if v := os.Getenv("RECALLD_LISTEN_ADDRESS"); v != "" {
		c.ListenAddress = v
	}
	if v := os.Getenv("RECALLD_PUBLIC_BASE_URL"); v != "" {
		c.PublicBaseURL = v
	}
	if v := os.Getenv("RECALLD_PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("RECALLD_PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("RECALLD_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("RECALLD_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("RECALLD_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	if v := os.Getenv("RECALLD_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Sync.SweepInterval = d
		}
	}
	if v := os.Getenv("RECALLD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RECALLD_LOG_JSON"); v != "" {
		c.LogJSON = v == "true" || v == "1"
	}
}

// Validate checks the configuration for invalid combinations.
func (c *ServiceConfig) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if !strings.HasPrefix(c.Provider.BaseURL, "http://") && !strings.HasPrefix(c.Provider.BaseURL, "https://") {
		return fmt.Errorf("provider.base_url must be an http(s) URL, got %q", c.Provider.BaseURL)
	}
	if c.PublicBaseURL != "" && !strings.HasPrefix(c.PublicBaseURL, "https://") {
		return fmt.Errorf("public_base_url must be https, got %q", c.PublicBaseURL)
	}
	if c.Sync.SweepInterval <= 0 {
		return fmt.Errorf("sync.sweep_interval must be positive")
	}
	if c.Sync.SweepLookback <= 0 {
		return fmt.Errorf("sync.sweep_lookback must be positive")
	}
	return nil
}

// Save writes the configuration to the given path, creating the directory
// if needed.
func (c *ServiceConfig) Save(path string) error {
	if path == "" {
		defaultPath, err := ConfigPath()
		if err != nil {
			return err
		}
		path = defaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
