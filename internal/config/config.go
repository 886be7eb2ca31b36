// Package config provides configuration management for chaincache.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/chaincache/internal/fileutil"
)

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version"`
	Home    string        `yaml:"home"`
	Cache   CacheConfig   `yaml:"cache"`
	Network NetworkConfig `yaml:"network"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// CacheConfig defines where and how query results are persisted.
type CacheConfig struct {
	Path     string `yaml:"path"`
	Backend  string `yaml:"backend"`
	Format   string `yaml:"format"`
	MemoSize int    `yaml:"memo_size"`
}

// NetworkConfig defines the remote endpoints and how they are called.
type NetworkConfig struct {
	RPC            string        `yaml:"rpc"`
	Beacon         string        `yaml:"beacon,omitempty"`
	RateLimit      float64       `yaml:"rate_limit"`
	Burst          int           `yaml:"burst"`
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads the config file at path, returning defaults when it
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	return cfg, err
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// DefaultHome returns the default chaincache home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chaincache"
	}
	return filepath.Join(home, ".chaincache")
}

// ExpandPath replaces a leading "~/" with the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

// CachePath returns the cache location with "~/" expanded. A relative path
// is resolved against the chaincache home directory.
func (c *Config) CachePath() (string, error) {
	path, err := ExpandPath(c.Cache.Path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	home, err := ExpandPath(c.Home)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path), nil
}
