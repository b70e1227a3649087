// Package config loads the usagebar configuration: a YAML file with
// environment variable expansion, USAGEBAR_* overrides, defaults, and
// validation. A missing config file is not an error; everything has a
// usable default.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jandubois/usagebar/internal/notify"
)

// Config holds the usagebar daemon configuration.
type Config struct {
	Listen             string        `yaml:"listen"`
	RefreshIntervalSec int           `yaml:"refresh_interval_sec"`
	HTTPTimeoutSec     int           `yaml:"http_timeout_sec"`
	InvokeTimeoutSec   int           `yaml:"invoke_timeout_sec"`
	DataDir            string        `yaml:"data_dir"`
	Probes             ProbesConfig  `yaml:"probes"`
	Pace               PaceConfig    `yaml:"pace"`
	Env                EnvConfig     `yaml:"env"`
	Notify             NotifyConfig  `yaml:"notify"`
	Logging            LoggingConfig `yaml:"logging"`
}

// ProbesConfig selects which probes run on automatic refreshes.
type ProbesConfig struct {
	Disabled []string `yaml:"disabled"`
	Debug    bool     `yaml:"debug"` // register the synthetic debug probe
}

// PaceConfig tunes the pacing projection.
type PaceConfig struct {
	MinElapsedPercent int `yaml:"min_elapsed_percent"` // suppress projection below this much of the period
}

// EnvConfig extends the environment variable allow-list probes may read.
type EnvConfig struct {
	Allowlist []string `yaml:"allowlist"`
}

// NotifyConfig holds the notification channel settings.
type NotifyConfig struct {
	Ntfy     *notify.NtfyConfig     `yaml:"ntfy"`
	Pushover *notify.PushoverConfig `yaml:"pushover"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads the configuration from path, or from DefaultPath when
// path is empty. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	var cfg Config
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Dir returns the usagebar config directory, honoring XDG_CONFIG_HOME.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "usagebar")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "usagebar"
	}
	return filepath.Join(home, ".config", "usagebar")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultDataDir returns the default application data directory,
// honoring XDG_DATA_HOME.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "usagebar")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "usagebar-data"
	}
	return filepath.Join(home, ".local", "share", "usagebar")
}

// TokenPath returns where the API bearer token is stored.
func TokenPath() string {
	return filepath.Join(Dir(), "api.token")
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:7642"
	}
	if c.RefreshIntervalSec <= 0 {
		c.RefreshIntervalSec = 300
	}
	if c.HTTPTimeoutSec <= 0 {
		c.HTTPTimeoutSec = 15
	}
	if c.InvokeTimeoutSec <= 0 {
		c.InvokeTimeoutSec = 60
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.Pace.MinElapsedPercent <= 0 {
		c.Pace.MinElapsedPercent = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("listen must be host:port, got %q: %w", c.Listen, err)
	}
	if c.RefreshIntervalSec < 10 {
		return fmt.Errorf("refresh_interval_sec must be at least 10, got %d", c.RefreshIntervalSec)
	}
	if c.Pace.MinElapsedPercent < 0 || c.Pace.MinElapsedPercent > 100 {
		return fmt.Errorf("pace.min_elapsed_percent must be between 0 and 100, got %d", c.Pace.MinElapsedPercent)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// RefreshInterval returns the automatic refresh interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

// HTTPTimeout returns the default probe HTTP request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// InvokeTimeout returns the per-probe invocation timeout.
func (c *Config) InvokeTimeout() time.Duration {
	return time.Duration(c.InvokeTimeoutSec) * time.Second
}

// MinElapsedFraction returns the pace threshold as a fraction.
func (c *Config) MinElapsedFraction() float64 {
	return float64(c.Pace.MinElapsedPercent) / 100
}

// EnabledProbes filters the disabled ids out of all.
func (c *Config) EnabledProbes(all []string) []string {
	if len(c.Probes.Disabled) == 0 {
		return all
	}
	disabled := make(map[string]bool, len(c.Probes.Disabled))
	for _, id := range c.Probes.Disabled {
		disabled[strings.TrimSpace(id)] = true
	}
	out := make([]string, 0, len(all))
	for _, id := range all {
		if !disabled[id] {
			out = append(out, id)
		}
	}
	return out
}

// Channels builds the configured notification channels.
func (c *NotifyConfig) Channels() []notify.Channel {
	var out []notify.Channel
	if c.Ntfy != nil && c.Ntfy.Topic != "" {
		out = append(out, notify.NewNtfyChannel(*c.Ntfy))
	}
	if c.Pushover != nil && c.Pushover.APIToken != "" && c.Pushover.UserKey != "" {
		out = append(out, notify.NewPushoverChannel(*c.Pushover))
	}
	return out
}

// applyEnvOverrides lets USAGEBAR_* variables override file settings.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("USAGEBAR_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("USAGEBAR_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("USAGEBAR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("USAGEBAR_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	for env, target := range map[string]*int{
		"USAGEBAR_REFRESH_INTERVAL_SEC": &c.RefreshIntervalSec,
		"USAGEBAR_HTTP_TIMEOUT_SEC":     &c.HTTPTimeoutSec,
		"USAGEBAR_INVOKE_TIMEOUT_SEC":   &c.InvokeTimeoutSec,
	} {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} before parsing, so
// secrets can stay out of the config file.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, fallback, hasFallback := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasFallback {
			val = fallback
		}
		return []byte(val)
	})
}
