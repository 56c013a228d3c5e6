// Package config loads hierchunk settings from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = ".hierchunk.yaml"

// Config holds all hierchunk configuration.
type Config struct {
	Index  IndexConfig  `yaml:"index"`
	Bridge BridgeConfig `yaml:"bridge"`
	Shard  ShardConfig  `yaml:"shard"`
	Detect DetectConfig `yaml:"detect"`
	Log    LogConfig    `yaml:"log"`
	Watch  WatchConfig  `yaml:"watch"`
}

// IndexConfig configures index persistence.
type IndexConfig struct {
	Dir      string `yaml:"dir"`
	Compress bool   `yaml:"compress"` // store .json.zst instead of .json
}

// BridgeConfig configures accelerated extraction.
type BridgeConfig struct {
	Enabled bool              `yaml:"enabled"`
	Timeout string            `yaml:"timeout"`
	Tools   map[string]string `yaml:"tools"` // tool name -> binary
}

// ShardConfig selects the default shard policy.
type ShardConfig struct {
	Policy    string `yaml:"policy"` // level, count, tokens
	MaxNodes  int    `yaml:"max_nodes"`
	LevelSpan int    `yaml:"level_span"`
	MaxTokens int    `yaml:"max_tokens"`
}

// DetectConfig bounds format detection.
type DetectConfig struct {
	PrefixBytes int `yaml:"prefix_bytes"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// ValidPolicies lists the accepted shard policies.
var ValidPolicies = []string{"level", "count", "tokens"}

// ValidLogLevels lists the accepted log levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Dir: ".hierchunk/index",
		},
		Bridge: BridgeConfig{
			Enabled: true,
			Timeout: "5s",
			Tools:   map[string]string{},
		},
		Shard: ShardConfig{
			Policy:    "count",
			MaxNodes:  200,
			LevelSpan: 1,
			MaxTokens: 2000,
		},
		Detect: DetectConfig{
			PrefixBytes: 4096,
		},
		Log: LogConfig{
			Level: "warn",
		},
		Watch: WatchConfig{
			Debounce: "300ms",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
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
func (c *Config) applyEnvOverrides() error {
	if dir := os.Getenv("HIERCHUNK_INDEX_DIR"); dir != "" {
		c.Index.Dir = dir
	}
	if level := os.Getenv("HIERCHUNK_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if v := os.Getenv("HIERCHUNK_BRIDGE"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HIERCHUNK_BRIDGE: %w", err)
		}
		c.Bridge.Enabled = enabled
	}
	if v := os.Getenv("HIERCHUNK_BRIDGE_TIMEOUT"); v != "" {
		c.Bridge.Timeout = v
	}
	return nil
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	if c.Index.Dir == "" {
		return fmt.Errorf("index.dir must not be empty")
	}
	if _, err := c.BridgeTimeout(); err != nil {
		return err
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}
	if !contains(ValidPolicies, c.Shard.Policy) {
		return fmt.Errorf("invalid shard policy: %s (valid: %v)", c.Shard.Policy, ValidPolicies)
	}
	if c.Shard.MaxNodes < 1 || c.Shard.LevelSpan < 1 || c.Shard.MaxTokens < 1 {
		return fmt.Errorf("shard sizes must be positive (max_nodes=%d, level_span=%d, max_tokens=%d)",
			c.Shard.MaxNodes, c.Shard.LevelSpan, c.Shard.MaxTokens)
	}
	if c.Detect.PrefixBytes < 16 {
		return fmt.Errorf("detect.prefix_bytes must be at least 16, got %d", c.Detect.PrefixBytes)
	}
	if !contains(ValidLogLevels, c.Log.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Log.Level, ValidLogLevels)
	}
	return nil
}

// BridgeTimeout parses bridge.timeout.
func (c *Config) BridgeTimeout() (time.Duration, error) {
	return positiveDuration("bridge.timeout", c.Bridge.Timeout)
}

// WatchDebounce parses watch.debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	return positiveDuration("watch.debounce", c.Watch.Debounce)
}

// ShardSize returns the size parameter of the configured shard policy.
func (c *Config) ShardSize() int {
	switch c.Shard.Policy {
	case "level":
		return c.Shard.LevelSpan
	case "tokens":
		return c.Shard.MaxTokens
	}
	return c.Shard.MaxNodes
}

func positiveDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
