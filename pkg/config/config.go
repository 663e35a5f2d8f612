package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BLEPILOT_"

// ProfileConfig overrides parts of a built-in device profile.
type ProfileConfig struct {
	NamePrefix     string   `yaml:"name_prefix"`
	Services       []string `yaml:"services"`
	Service        string   `yaml:"service"`
	Characteristic string   `yaml:"characteristic"`
	Address        string   `yaml:"address"`
	// WithoutResponse sends commands as write-without-response.
	WithoutResponse bool `yaml:"without_response"`
}

// Config holds application configuration
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"panic"`
	TickInterval   time.Duration `yaml:"tick_interval" default:"250ms"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" default:"2s"`
	HoldTimeout    time.Duration `yaml:"hold_timeout" default:"600ms"`

	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps BLEPILOT_* env vars to config fields.
// Per-profile addresses use BLEPILOT_<PROFILE>_ADDRESS.
func ApplyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	durations := []struct {
		name  string
		field *time.Duration
	}{
		{"TICK_INTERVAL", &cfg.TickInterval},
		{"CONNECT_TIMEOUT", &cfg.ConnectTimeout},
		{"SCAN_TIMEOUT", &cfg.ScanTimeout},
		{"WRITE_TIMEOUT", &cfg.WriteTimeout},
		{"HOLD_TIMEOUT", &cfg.HoldTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(EnvPrefix + d.name)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, d.name, v, err)
		}
		*d.field = parsed
	}

	for _, name := range []string{"car", "drone", "led", "lamp"} {
		v := os.Getenv(EnvPrefix + strings.ToUpper(name) + "_ADDRESS")
		if v == "" {
			continue
		}
		if cfg.Profiles == nil {
			cfg.Profiles = map[string]ProfileConfig{}
		}
		p := cfg.Profiles[name]
		p.Address = v
		cfg.Profiles[name] = p
	}
	return nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	checks := []struct {
		name  string
		value time.Duration
	}{
		{"tick_interval", c.TickInterval},
		{"connect_timeout", c.ConnectTimeout},
		{"scan_timeout", c.ScanTimeout},
		{"write_timeout", c.WriteTimeout},
		{"hold_timeout", c.HoldTimeout},
	}
	for _, ch := range checks {
		if ch.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", ch.name, ch.value)
		}
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.PanicLevel, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// Profile returns the overrides for the named profile.
func (c *Config) Profile(name string) (ProfileConfig, bool) {
	p, ok := c.Profiles[strings.ToLower(name)]
	return p, ok
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	lvl, err := c.Level()
	if err != nil {
		lvl = logrus.PanicLevel
	}
	logger.SetLevel(lvl)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
