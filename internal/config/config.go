package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/keydrill/keydrill/pkg/utils"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global    GlobalConfig    `yaml:"global"`
	Cache     CacheConfig     `yaml:"cache"`
	Preload   PreloadConfig   `yaml:"preload"`
	Generator GeneratorConfig `yaml:"generator"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
}

// CacheConfig represents content cache limits. Byte limits accept
// human-readable sizes such as "32MB".
type CacheConfig struct {
	MaxItems  int    `yaml:"max_items"`
	SoftLimit string `yaml:"soft_limit"`
	HardLimit string `yaml:"hard_limit"`
}

// PreloadConfig represents background preloading settings
type PreloadConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Count       int    `yaml:"count"`
	Strategy    string `yaml:"strategy"`
	Concurrency int    `yaml:"concurrency"`
}

// GeneratorConfig represents content generation settings
type GeneratorConfig struct {
	// DefaultSeed overrides the per-level canonical seed when non-zero.
	DefaultSeed      uint64 `yaml:"default_seed"`
	EnableValidation bool   `yaml:"enable_validation"`
	MaxRetries       int    `yaml:"max_retries"`
}

var validStrategies = []string{"sequential", "adaptive", "user_history"}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFile:     "",
			MetricsPort: 9090,
		},
		Cache: CacheConfig{
			MaxItems:  128,
			SoftLimit: "32MB",
			HardLimit: "64MB",
		},
		Preload: PreloadConfig{
			Enabled:     true,
			Count:       3,
			Strategy:    "sequential",
			Concurrency: 2,
		},
		Generator: GeneratorConfig{
			DefaultSeed:      0,
			EnableValidation: true,
			MaxRetries:       3,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("KEYDRILL_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("KEYDRILL_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("KEYDRILL_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}

	if val := os.Getenv("KEYDRILL_CACHE_MAX_ITEMS"); val != "" {
		if items, err := strconv.Atoi(val); err == nil {
			c.Cache.MaxItems = items
		}
	}
	if val := os.Getenv("KEYDRILL_CACHE_SOFT_LIMIT"); val != "" {
		c.Cache.SoftLimit = val
	}
	if val := os.Getenv("KEYDRILL_CACHE_HARD_LIMIT"); val != "" {
		c.Cache.HardLimit = val
	}

	if val := os.Getenv("KEYDRILL_PRELOAD_ENABLED"); val != "" {
		c.Preload.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("KEYDRILL_PRELOAD_COUNT"); val != "" {
		if count, err := strconv.Atoi(val); err == nil {
			c.Preload.Count = count
		}
	}
	if val := os.Getenv("KEYDRILL_PRELOAD_STRATEGY"); val != "" {
		c.Preload.Strategy = val
	}
	if val := os.Getenv("KEYDRILL_PRELOAD_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Preload.Concurrency = n
		}
	}

	if val := os.Getenv("KEYDRILL_DEFAULT_SEED"); val != "" {
		if seed, err := strconv.ParseUint(val, 10, 64); err == nil {
			c.Generator.DefaultSeed = seed
		}
	}
	if val := os.Getenv("KEYDRILL_ENABLE_VALIDATION"); val != "" {
		c.Generator.EnableValidation = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("KEYDRILL_MAX_RETRIES"); val != "" {
		if retries, err := strconv.Atoi(val); err == nil {
			c.Generator.MaxRetries = retries
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SoftLimitBytes returns the parsed soft byte limit.
func (c *CacheConfig) SoftLimitBytes() (int64, error) {
	return utils.ParseBytes(c.SoftLimit)
}

// HardLimitBytes returns the parsed hard byte limit.
func (c *CacheConfig) HardLimitBytes() (int64, error) {
	return utils.ParseBytes(c.HardLimit)
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.Cache.MaxItems <= 0 {
		return fmt.Errorf("cache max_items must be greater than 0")
	}

	soft, err := c.Cache.SoftLimitBytes()
	if err != nil {
		return fmt.Errorf("invalid cache soft_limit: %w", err)
	}
	hard, err := c.Cache.HardLimitBytes()
	if err != nil {
		return fmt.Errorf("invalid cache hard_limit: %w", err)
	}
	if soft > hard {
		return fmt.Errorf("cache soft_limit %s exceeds hard_limit %s", c.Cache.SoftLimit, c.Cache.HardLimit)
	}

	if c.Preload.Count < 0 {
		return fmt.Errorf("preload count cannot be negative")
	}
	strategyValid := false
	for _, s := range validStrategies {
		if c.Preload.Strategy == s {
			strategyValid = true
			break
		}
	}
	if !strategyValid {
		return fmt.Errorf("invalid preload strategy: %s (must be one of: %s)",
			c.Preload.Strategy, strings.Join(validStrategies, ", "))
	}

	if c.Generator.MaxRetries < 1 {
		return fmt.Errorf("generator max_retries must be at least 1")
	}

	if c.Global.MetricsPort < 0 || c.Global.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics_port: %d", c.Global.MetricsPort)
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
