// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FNNDSC/pl-heartbeat/internal/models"
)

// ErrInvalidConfig marks a configuration that must not start the scheduler.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "5s", "1m" or bare integer seconds.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// ParseDuration accepts a Go duration string or an integer number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return SecondsToDuration(secs)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return parsed, nil
}

// MaxSeconds is the largest whole number of seconds a time.Duration holds.
const MaxSeconds = math.MaxInt64 / int64(time.Second)

// SecondsToDuration converts whole seconds, rejecting values that would
// overflow time.Duration.
func SecondsToDuration(secs int64) (time.Duration, error) {
	if secs > MaxSeconds || secs < -MaxSeconds {
		return 0, fmt.Errorf("%w: %d seconds is out of range (max %d)", ErrInvalidConfig, secs, MaxSeconds)
	}
	return time.Duration(secs) * time.Second, nil
}

// Config holds all heartbeat configuration.
type Config struct {
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HeartbeatConfig selects what is reported and for how long.
type HeartbeatConfig struct {
	InfoType     string   `yaml:"info_type"`
	BeatInterval Duration `yaml:"beat_interval"`
	Lifetime     Duration `yaml:"lifetime"`
	Quiet        bool     `yaml:"quiet"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Heartbeat: HeartbeatConfig{
			InfoType:     models.InfoTypeDateTime.String(),
			BeatInterval: Duration{5 * time.Second},
			Lifetime:     Duration{10 * time.Second},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// CLIOverrides holds values from command-line flags.
// Zero values are treated as "not set" and skipped.
type CLIOverrides struct {
	InfoType     string
	BeatInterval time.Duration
	Lifetime     time.Duration
	LogLevel     string
	Quiet        bool
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate()
//   - explicit value  → use that path ("" means no external file)
//
// An explicit path that cannot be read is an error; a discovered one is not.
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	explicit := len(configPath) > 0
	if explicit {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		case explicit:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cli.InfoType != "" {
		cfg.Heartbeat.InfoType = cli.InfoType
	}
	if cli.BeatInterval != 0 {
		cfg.Heartbeat.BeatInterval = Duration{cli.BeatInterval}
	}
	if cli.Lifetime != 0 {
		cfg.Heartbeat.Lifetime = Duration{cli.Lifetime}
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Quiet {
		cfg.Heartbeat.Quiet = true
	}

	return cfg, nil
}

// WriteConfig saves the resolved configuration as YAML, creating parent
// directories as needed. The file loads back through LoadLayered.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies HB_* environment variables to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HB_INFO_TYPE"); v != "" {
		cfg.Heartbeat.InfoType = v
	}
	if v := os.Getenv("HB_BEAT_INTERVAL"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HB_BEAT_INTERVAL: %w", err)
		}
		cfg.Heartbeat.BeatInterval = Duration{d}
	}
	if v := os.Getenv("HB_LIFETIME"); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HB_LIFETIME: %w", err)
		}
		cfg.Heartbeat.Lifetime = Duration{d}
	}
	if v := os.Getenv("HB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks that the heartbeat can be started with this configuration.
// Every returned error wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if _, err := c.InfoType(); err != nil {
		return err
	}
	if c.Heartbeat.BeatInterval.Duration <= 0 {
		return fmt.Errorf("%w: beat interval must be positive (got %s)", ErrInvalidConfig, c.Heartbeat.BeatInterval.Duration)
	}
	if c.Heartbeat.Lifetime.Duration <= 0 {
		return fmt.Errorf("%w: lifetime must be positive (got %s)", ErrInvalidConfig, c.Heartbeat.Lifetime.Duration)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}

// InfoType returns the parsed metric selector.
func (c *Config) InfoType() (models.InfoType, error) {
	t, err := models.ParseInfoType(c.Heartbeat.InfoType)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return t, nil
}
