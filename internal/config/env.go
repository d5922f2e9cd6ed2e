package config

import (
	"os"
	"strconv"
)

// FromEnv overlays HERALD_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("HERALD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("HERALD_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("HERALD_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("HERALD_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("HERALD_REDIRECT_TTL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RedirectTTLMs = n
		}
	}
	if v := os.Getenv("HERALD_READ_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReadBatch = n
		}
	}
	if v := os.Getenv("HERALD_ADMISSION_RETENTION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AdmissionRetentionHours = n
		}
	}
	if v := os.Getenv("HERALD_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MetricsEnabled = b
		}
	}
	if v := os.Getenv("HERALD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HERALD_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HERALD_LOG_OUTPUT"); v != "" {
		cfg.Log.Output = v
	}
}
