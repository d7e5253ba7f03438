// Package config defines the nmaptrace configuration surface: scan
// defaults, monitoring settings, report output locations, and logging.
// Configuration is loaded from YAML with sensible defaults and validated
// before any scan starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ValorVie/nmapTraceroute/internal/validate"
)

const (
	configDirPerm  = 0750
	configFilePerm = 0600
)

// Config represents the complete application configuration.
type Config struct {
	// Scan defaults applied when flags are not given
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Monitoring configuration
	Monitor MonitorConfig `yaml:"monitor" json:"monitor"`

	// Report output configuration
	Output OutputConfig `yaml:"output" json:"output"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScanConfig holds scan-related settings.
type ScanConfig struct {
	// Protocol used when not overridden per scan (tcp or udp)
	Protocol string `yaml:"protocol" json:"protocol" validate:"oneof=tcp udp"`

	// Default port specification, e.g. "80" or "22,80-82,443"
	Ports string `yaml:"ports" json:"ports" validate:"required"`

	// Maximum number of hops to trace
	MaxHops int `yaml:"max_hops" json:"max_hops" validate:"min=1,max=255"`

	// Per-scan timeout in seconds
	TimeoutSec int `yaml:"timeout_seconds" json:"timeout_seconds" validate:"min=5,max=300"`

	// Enable verbose nmap output
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// MonitorConfig holds interval-monitoring settings.
type MonitorConfig struct {
	// Time between scan starts
	Interval time.Duration `yaml:"interval" json:"interval"`

	// Number of results retained in the session history
	MaxHistory int `yaml:"max_history" json:"max_history" validate:"min=1"`
}

// UnmarshalYAML accepts the interval as a Go duration string ("30s",
// "1m") or as a plain integer number of seconds.
func (m *MonitorConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Interval   string `yaml:"interval"`
		MaxHistory int    `yaml:"max_history"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.MaxHistory != 0 {
		m.MaxHistory = raw.MaxHistory
	}
	if raw.Interval == "" {
		return nil
	}
	if d, err := time.ParseDuration(raw.Interval); err == nil {
		m.Interval = d
		return nil
	}
	if secs, err := strconv.Atoi(raw.Interval); err == nil {
		m.Interval = time.Duration(secs) * time.Second
		return nil
	}
	return fmt.Errorf("invalid monitor interval %q", raw.Interval)
}

// MarshalYAML writes the interval in Go duration syntax so saved files
// stay readable and round-trip through UnmarshalYAML.
func (m MonitorConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Interval   string `yaml:"interval"`
		MaxHistory int    `yaml:"max_history"`
	}{m.Interval.String(), m.MaxHistory}, nil
}

// OutputConfig holds report output settings.
type OutputConfig struct {
	// Directory for CSV reports
	CSVDir string `yaml:"csv_dir" json:"csv_dir"`

	// Directory for HTML reports
	HTMLDir string `yaml:"html_dir" json:"html_dir"`
}

// MetricsConfig holds Prometheus exposure settings.
type MetricsConfig struct {
	// Enable the /metrics listener during monitoring sessions
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address for the metrics endpoint
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Protocol:   "tcp",
			Ports:      "80",
			MaxHops:    30,
			TimeoutSec: 30,
			Verbose:    false,
		},
		Monitor: MonitorConfig{
			Interval:   10 * time.Second,
			MaxHistory: 100,
		},
		Output: OutputConfig{
			CSVDir:  "output_data/csv",
			HTMLDir: "output_data/charts",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9199",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load loads configuration from a file, falling back to defaults when the
// file does not exist.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := validate.ParsePortList(c.Scan.Ports); err != nil {
		return err
	}
	if err := validate.ValidateTimeout(c.Scan.TimeoutSec); err != nil {
		return err
	}
	if err := validate.ValidateMaxHops(c.Scan.MaxHops); err != nil {
		return err
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}

	return nil
}

// ScanTimeout returns the scan timeout as a duration.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.Scan.TimeoutSec) * time.Second
}
