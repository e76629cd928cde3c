package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dyluth/snapvault/pkg/storage"
)

// DefaultPath is where the CLI looks for its configuration.
const DefaultPath = "snapvault.yml"

// Environment overrides, applied after the file is parsed.
const (
	EnvRedisURL    = "SNAPVAULT_REDIS_URL"
	EnvDatabaseURL = "SNAPVAULT_DATABASE_URL"
	EnvNamespace   = "SNAPVAULT_NAMESPACE"
)

// Defaults applied by Validate.
const (
	DefaultRedisURL  = "redis://localhost:6379/0"
	DefaultNamespace = "snapshots"
	DefaultPageSize  = 100
)

// SnapvaultConfig represents the top-level snapvault.yml configuration
type SnapvaultConfig struct {
	Version string         `yaml:"version"`
	Redis   *RedisConfig   `yaml:"redis,omitempty"`
	Archive *ArchiveConfig `yaml:"archive,omitempty"`
	SQL     *SQLConfig     `yaml:"sql,omitempty"`
	Cleanup *CleanupConfig `yaml:"cleanup,omitempty"`
}

// RedisConfig locates the Redis object and row store
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// ArchiveConfig names the archive namespace
type ArchiveConfig struct {
	Namespace string `yaml:"namespace"`
}

// SQLConfig locates the optional SQL row store. Empty means none.
type SQLConfig struct {
	DatabaseURL string `yaml:"database_url,omitempty"`
}

// CleanupConfig tunes the bulk-cleanup engine
type CleanupConfig struct {
	MaxConcurrency int `yaml:"max_concurrency,omitempty"` // 0 = whole page at once
	PageSize       int `yaml:"page_size,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *SnapvaultConfig {
	c := &SnapvaultConfig{Version: "1.0"}
	// defaults cannot fail validation
	_ = c.Validate()
	return c
}

// Validate applies defaults and performs strict validation on the configuration
func (c *SnapvaultConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("redis.url must start with redis:// or rediss://, got '%s'", c.Redis.URL)
	}

	if c.Archive == nil {
		c.Archive = &ArchiveConfig{}
	}
	if c.Archive.Namespace == "" {
		c.Archive.Namespace = DefaultNamespace
	}
	c.Archive.Namespace = storage.NormalizeNamespace(c.Archive.Namespace)
	if err := storage.ValidateNamespace(c.Archive.Namespace); err != nil {
		return fmt.Errorf("archive.namespace: %w", err)
	}

	if c.SQL == nil {
		c.SQL = &SQLConfig{}
	}

	if c.Cleanup == nil {
		c.Cleanup = &CleanupConfig{}
	}
	if c.Cleanup.MaxConcurrency < 0 {
		return fmt.Errorf("cleanup.max_concurrency must be >= 0 (0 = whole page), got %d", c.Cleanup.MaxConcurrency)
	}
	if c.Cleanup.PageSize == 0 {
		c.Cleanup.PageSize = DefaultPageSize
	}
	if c.Cleanup.PageSize < 1 {
		return fmt.Errorf("cleanup.page_size must be >= 1, got %d", c.Cleanup.PageSize)
	}

	return nil
}

// ApplyEnv overrides settings from SNAPVAULT_* environment variables.
func (c *SnapvaultConfig) ApplyEnv(getenv func(string) string) {
	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Archive == nil {
		c.Archive = &ArchiveConfig{}
	}
	if c.SQL == nil {
		c.SQL = &SQLConfig{}
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := getenv(EnvDatabaseURL); v != "" {
		c.SQL.DatabaseURL = v
	}
	if v := getenv(EnvNamespace); v != "" {
		c.Archive.Namespace = v
	}
}

// Load reads snapvault.yml from the specified path, applies environment
// overrides and validates the result. A missing file at DefaultPath falls
// back to Default; a missing file anywhere else is an error.
func Load(path string) (*SnapvaultConfig, error) {
	var config SnapvaultConfig

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
		config.Version = "1.0"
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config.ApplyEnv(os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// ResolveConnectionString reads a connection string from filePath when that
// file exists, otherwise from the environment variable envVar. Surrounding
// whitespace is trimmed.
func ResolveConnectionString(filePath, envVar string) (string, error) {
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			if s := strings.TrimSpace(string(data)); s != "" {
				return s, nil
			}
			return "", fmt.Errorf("connection string file '%s' is empty", filePath)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to read connection string file: %w", err)
		}
	}

	if s := strings.TrimSpace(os.Getenv(envVar)); s != "" {
		return s, nil
	}

	return "", fmt.Errorf("could not find connection string: create '%s' or set the environment variable %s", filePath, envVar)
}
