package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jdertmann/herald/internal/runtime"
	dispatchsvc "github.com/jdertmann/herald/internal/services/dispatch"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

// Pool keeps one delivery worker running per registered destination,
// rescanning the registered set on an interval so registrations and
// migrations pick up workers without restarts.
type Pool struct {
	rt       *runtime.Runtime
	svc      *dispatchsvc.Service
	sender   Sender
	cfg      Config
	interval time.Duration
	logger   logpkg.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers map[string]*Worker
}

// NewPool creates a pool. A zero interval rescans every 5 seconds.
func NewPool(rt *runtime.Runtime, svc *dispatchsvc.Service, sender Sender, cfg Config, interval time.Duration, logger logpkg.Logger) *Pool {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		rt:       rt,
		svc:      svc,
		sender:   sender,
		cfg:      cfg,
		interval: interval,
		logger:   logger.With(logpkg.Component("worker-pool")),
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[string]*Worker),
	}
}

// Start begins supervision.
func (p *Pool) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop halts supervision and every worker.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	workers := p.workers
	p.workers = make(map[string]*Worker)
	p.mu.Unlock()
	for _, w := range workers {
		w.Stop()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.reconcile()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.reconcile()
		}
	}
}

// reconcile aligns running workers with the registered set.
func (p *Pool) reconcile() {
	ids, err := p.svc.Destinations()
	if err != nil {
		p.logger.Warn("listing destinations failed", logpkg.Err(err))
		return
	}
	registered := make(map[string]bool, len(ids))
	for _, id := range ids {
		registered[id] = true
	}

	p.mu.Lock()
	var stopped []*Worker
	for id, w := range p.workers {
		if !registered[id] {
			delete(p.workers, id)
			stopped = append(stopped, w)
		}
	}
	var started int
	for _, id := range ids {
		if _, ok := p.workers[id]; ok {
			continue
		}
		w := New(p.rt, p.svc, p.sender, id, p.cfg, p.logger)
		p.workers[id] = w
		w.Start()
		started++
	}
	p.mu.Unlock()

	for _, w := range stopped {
		w.Stop()
	}
	if started > 0 || len(stopped) > 0 {
		p.logger.Info("reconciled workers",
			logpkg.Int("started", started),
			logpkg.Int("stopped", len(stopped)),
			logpkg.Int("running", len(ids)))
	}
}
