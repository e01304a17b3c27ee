package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/venuekit/usher/pkg/types"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds everything the usher binary needs. The two intervals are the
// only tuning knobs the host application is expected to touch.
type Config struct {
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// DataDir holds the offline queue database
	DataDir string `yaml:"data_dir"`

	// StoreURL is the record-store API base URL; HealthURL defaults to its
	// /health liveness endpoint
	StoreURL  string `yaml:"store_url"`
	HealthURL string `yaml:"health_url"`

	MonitorInterval Duration `yaml:"monitor_interval"`
	RetryInterval   Duration `yaml:"retry_interval"`
	ProbeTimeout    Duration `yaml:"probe_timeout"`
	MaxRetries      int      `yaml:"max_retries"`

	// Serve-mode settings
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		LogLevel:        "info",
		DataDir:         "./data",
		StoreURL:        "http://localhost:8080",
		MonitorInterval: Duration(types.DefaultMonitorInterval),
		RetryInterval:   Duration(types.DefaultRetryInterval),
		ProbeTimeout:    Duration(types.DefaultProbeTimeout),
		MaxRetries:      types.DefaultMaxRetries,
		Listen:          ":8080",
		DBPath:          "./data/bookings.db",
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.HealthURL == "" {
		cfg.HealthURL = strings.TrimRight(cfg.StoreURL, "/") + "/health"
	}
	return cfg, nil
}
