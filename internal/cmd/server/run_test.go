package serverrun

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/jdertmann/herald/internal/config"
)

func TestRunStartsAndStops(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := cfgpkg.Default()
	cfg.Fsync = "never"
	cfg.MetricsEnabled = false
	cfg.Log.Level = "error"

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := Run(ctx, Options{
		DataDir:  t.TempDir(),
		HTTPAddr: "127.0.0.1:0",
		Config:   &cfg,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunRejectsBadConfigPath(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := Run(ctx, Options{ConfigPath: "/does/not/exist.yaml"}); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
