package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

// Config is the top-level configuration loaded from file and environment.
type Config struct {
	// DataDir is the storage directory. Empty selects DefaultDataDir.
	DataDir string `json:"dataDir" yaml:"dataDir"`
	// HTTPAddr is the listen address for the HTTP API.
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	// Fsync selects WAL durability: always, interval, or never.
	Fsync string `json:"fsync" yaml:"fsync"`
	// FsyncIntervalMs bounds group-commit latency when Fsync is "interval".
	FsyncIntervalMs int `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	// RedirectTTLMs is how long migrated identities keep their redirect marker.
	RedirectTTLMs int64 `json:"redirectTtlMs" yaml:"redirectTtlMs"`
	// ReadBatch is the delivery worker's log read batch size.
	ReadBatch int `json:"readBatch" yaml:"readBatch"`
	// AdmissionRetentionHours expires admission records older than this.
	// Zero disables the sweep and keeps records forever.
	AdmissionRetentionHours int `json:"admissionRetentionHours" yaml:"admissionRetentionHours"`
	// MetricsEnabled exposes Prometheus metrics at /metrics.
	MetricsEnabled bool `json:"metricsEnabled" yaml:"metricsEnabled"`
	// Log configures the structured logger.
	Log logpkg.Config `json:"log" yaml:"log"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		Fsync:           "interval",
		FsyncIntervalMs: 5,
		RedirectTTLMs:   (24 * time.Hour).Milliseconds(),
		ReadBatch:       64,
		MetricsEnabled:  true,
		Log:             logpkg.Config{Level: "info", Format: "json", Output: "console"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). An empty
// path returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// FsyncMode maps the configured fsync name to the storage mode. Unknown names
// fall back to interval.
func (c Config) FsyncMode() pebblestore.FsyncMode {
	switch c.Fsync {
	case "always":
		return pebblestore.FsyncModeAlways
	case "never":
		return pebblestore.FsyncModeNever
	case "interval":
		return pebblestore.FsyncModeInterval
	default:
		return pebblestore.FsyncModeInterval
	}
}

// FsyncInterval returns the group-commit window.
func (c Config) FsyncInterval() time.Duration {
	if c.FsyncIntervalMs <= 0 {
		return 0
	}
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}

// RedirectTTL returns the redirect marker lifetime.
func (c Config) RedirectTTL() time.Duration {
	if c.RedirectTTLMs <= 0 {
		return 0
	}
	return time.Duration(c.RedirectTTLMs) * time.Millisecond
}

// AdmissionRetention returns the admission record lifetime, or zero when the
// sweep is disabled.
func (c Config) AdmissionRetention() time.Duration {
	if c.AdmissionRetentionHours <= 0 {
		return 0
	}
	return time.Duration(c.AdmissionRetentionHours) * time.Hour
}
