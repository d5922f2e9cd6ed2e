package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/jdertmann/herald/internal/config"
	"github.com/jdertmann/herald/internal/runtime"
	httpserver "github.com/jdertmann/herald/internal/server/http"
	dispatchsvc "github.com/jdertmann/herald/internal/services/dispatch"
	"github.com/jdertmann/herald/internal/worker"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

// Options controls a server run. Zero values fall back to the loaded
// configuration.
type Options struct {
	ConfigPath string
	DataDir    string
	HTTPAddr   string
	// Sender overrides the default webhook sender, mainly for tests.
	Sender worker.Sender
	Config *cfgpkg.Config
}

// admission sweep cadence; each pass deletes records older than the
// configured retention.
const sweepInterval = time.Hour

const backlogInterval = 10 * time.Second

// Run starts the runtime, the delivery workers, and the HTTP server, and
// blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg cfgpkg.Config
	if opts.Config != nil {
		cfg = *opts.Config
	} else {
		loaded, err := cfgpkg.Load(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfgpkg.FromEnv(&loaded)
		cfg = loaded
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	if opts.HTTPAddr != "" {
		cfg.HTTPAddr = opts.HTTPAddr
	}

	logger, err := logpkg.ApplyConfig(cfg.Log)
	if err != nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
		logger.Warn("bad log config, using defaults", logpkg.Err(err))
	}
	// stdlib logs (Pebble) go through the same logger
	logpkg.RedirectStdLog(logger)

	storeDir := filepath.Join(cfg.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{DataDir: storeDir, Fsync: cfg.FsyncMode(), Config: cfg})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting herald server",
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("fsync", cfg.Fsync),
		logpkg.Bool("metrics", cfg.MetricsEnabled))

	svc := dispatchsvc.NewWithLogger(rt, logger.With(logpkg.Component("dispatch")))

	sender := opts.Sender
	if sender == nil {
		sender = worker.NewWebhookSender(logger)
	}
	pool := worker.NewPool(rt, svc, sender, worker.Config{ReadBatch: cfg.ReadBatch}, 0, logger)
	pool.Start()
	defer pool.Stop()

	var wg sync.WaitGroup
	if retention := cfg.AdmissionRetention(); retention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweepAdmissions(sctx, rt, retention, logger)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		trackBacklog(sctx, rt, logger)
	}()

	hsrv := httpserver.NewWithService(rt, svc, logger.With(logpkg.Component("http")))
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.Error("http server failed", logpkg.Err(err))
			stop()
		}
	}()

	<-sctx.Done()
	hsrv.Close()
	wg.Wait()
	return nil
}

// sweepAdmissions periodically drops admission records past retention so the
// gate's keyspace stays bounded.
func sweepAdmissions(ctx context.Context, rt *runtime.Runtime, retention time.Duration, logger logpkg.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := rt.Gate().SweepBefore(ctx, time.Now().Add(-retention), 1024)
			if err != nil {
				logger.Warn("admission sweep failed", logpkg.Err(err))
				continue
			}
			if n > 0 {
				logger.Info("swept admission records", logpkg.Int("count", n))
			}
		}
	}
}

// trackBacklog refreshes the queued-message gauge.
func trackBacklog(ctx context.Context, rt *runtime.Runtime, logger logpkg.Logger) {
	ticker := time.NewTicker(backlogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := rt.Queues().Backlog()
			if err != nil {
				logger.Warn("backlog scan failed", logpkg.Err(err))
				continue
			}
			rt.Metrics().QueueBacklog.Set(float64(n))
		}
	}
}
