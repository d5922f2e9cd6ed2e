package config

import (
	"os"
	"path/filepath"
	"testing"

	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Fsync != "interval" || !cfg.MetricsEnabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "herald.json", `{"httpAddr":":9090","fsync":"always","readBatch":16}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.Fsync != "always" || cfg.ReadBatch != 16 {
		t.Fatalf("json not applied: %+v", cfg)
	}
	// untouched keys keep defaults
	if cfg.FsyncIntervalMs != 5 {
		t.Fatalf("default lost: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "herald.yaml", "httpAddr: \":7070\"\nfsync: never\nlog:\n  level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" || cfg.Fsync != "never" || cfg.Log.Level != "debug" {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
}

func TestLoadBadFile(t *testing.T) {
	path := writeFile(t, "broken.json", `{"httpAddr":`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestFromEnvOverlay(t *testing.T) {
	t.Setenv("HERALD_HTTP_ADDR", ":6060")
	t.Setenv("HERALD_FSYNC", "always")
	t.Setenv("HERALD_READ_BATCH", "8")
	t.Setenv("HERALD_METRICS_ENABLED", "false")
	t.Setenv("HERALD_LOG_LEVEL", "warn")

	cfg := Default()
	FromEnv(&cfg)
	if cfg.HTTPAddr != ":6060" || cfg.Fsync != "always" || cfg.ReadBatch != 8 {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("bool env not applied")
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("log env not applied")
	}
}

func TestFsyncModeMapping(t *testing.T) {
	cases := map[string]pebblestore.FsyncMode{
		"always":   pebblestore.FsyncModeAlways,
		"interval": pebblestore.FsyncModeInterval,
		"never":    pebblestore.FsyncModeNever,
		"bogus":    pebblestore.FsyncModeInterval,
	}
	for name, want := range cases {
		cfg := Config{Fsync: name}
		if got := cfg.FsyncMode(); got != want {
			t.Fatalf("FsyncMode(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDefaultDataDirNotEmpty(t *testing.T) {
	if DefaultDataDir() == "" {
		t.Fatalf("empty data dir")
	}
}
