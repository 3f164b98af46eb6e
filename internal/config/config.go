// Package config provides configuration management for blockscope.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	scopeerr "github.com/mrz1836/blockscope/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Home     string         `yaml:"home"`
	Node     NodeConfig     `yaml:"node"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Explorer ExplorerConfig `yaml:"explorer"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NodeConfig defines how the node RPC is reached.
type NodeConfig struct {
	URL            string  `yaml:"url"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	RetryAttempts  int     `yaml:"retry_attempts"`
}

// MonitorConfig defines block monitor settings.
type MonitorConfig struct {
	IntervalSeconds  int `yaml:"interval_seconds"`
	Window           int `yaml:"window"`
	FetchConcurrency int `yaml:"fetch_concurrency"`
}

// ExplorerConfig defines lookup settings.
type ExplorerConfig struct {
	DataStorePageSize int `yaml:"datastore_page_size"`
	TxCacheSize       int `yaml:"tx_cache_size"`
	BalanceTTLSeconds int `yaml:"balance_ttl_seconds"` // 0 disables
}

// MetricsConfig defines the Prometheus listener. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// OutputConfig defines output settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file on top of Defaults.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, scopeerr.WithCause(scopeerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default blockscope home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".blockscope"
	}
	return filepath.Join(home, ".blockscope")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

// Validate checks the configuration for values the runtime cannot use.
func (c *Config) Validate() error {
	if err := ValidateNodeURL(c.Node.URL); err != nil {
		return err
	}
	if c.Monitor.Window < 1 {
		return invalid("monitor.window", "must be at least 1")
	}
	if c.Monitor.IntervalSeconds < 1 {
		return invalid("monitor.interval_seconds", "must be at least 1")
	}
	if c.Monitor.FetchConcurrency < 1 {
		return invalid("monitor.fetch_concurrency", "must be at least 1")
	}
	if c.Explorer.DataStorePageSize < 1 {
		return invalid("explorer.datastore_page_size", "must be at least 1")
	}
	if c.Explorer.BalanceTTLSeconds < 0 {
		return invalid("explorer.balance_ttl_seconds", "must not be negative")
	}
	if c.Node.RatePerSecond <= 0 {
		return invalid("node.rate_per_second", "must be positive")
	}
	return nil
}

// ValidateNodeURL checks that the node URL is an absolute http(s) URL.
func ValidateNodeURL(raw string) error {
	if raw == "" {
		return invalid("node.url", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid("node.url", fmt.Sprintf("%q is not an http(s) URL", raw))
	}
	return nil
}

func invalid(key, reason string) error {
	return scopeerr.WithDetails(scopeerr.ErrConfigInvalid, map[string]string{
		"key":    key,
		"reason": reason,
	})
}

// NodeTimeout returns the per-request node timeout.
func (c *Config) NodeTimeout() time.Duration {
	return time.Duration(c.Node.TimeoutSeconds) * time.Second
}

// BalanceTTL returns how long a computed balance is reused.
func (c *Config) BalanceTTL() time.Duration {
	return time.Duration(c.Explorer.BalanceTTLSeconds) * time.Second
}

// MonitorInterval returns the block monitor polling interval.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}
