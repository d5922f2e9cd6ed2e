// Package worker runs the per-destination delivery loop: drain the direct
// queue, then walk unseen log entries, applying the destination's filter and
// advancing the cursor optimistically around each send.
//
// The cursor is advanced before the send and rolled back on failure. Both
// moves are idempotent in the core, so the worker may crash or be cancelled
// at any point and resume safely from the stored cursor.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jdertmann/herald/internal/eventlog"
	"github.com/jdertmann/herald/internal/runtime"
	dispatchsvc "github.com/jdertmann/herald/internal/services/dispatch"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

// Sender delivers one payload to a destination. Implementations call the
// messaging platform; errors trigger rollback and backoff.
type Sender interface {
	Send(ctx context.Context, destinationID string, payload []byte) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, destinationID string, payload []byte) error

func (f SenderFunc) Send(ctx context.Context, destinationID string, payload []byte) error {
	return f(ctx, destinationID, payload)
}

// Config tunes a delivery worker.
type Config struct {
	ReadBatch   int           // log entries read per pass (default 64)
	IdleWait    time.Duration // block on the log this long when caught up (default 1s)
	BackoffBase time.Duration // first retry delay after a failed send (default 200ms)
	BackoffCap  time.Duration // retry delay ceiling (default 30s)
	MaxAttempts int           // consecutive send failures before an entry is dropped (0 = retry forever)
}

func (c *Config) applyDefaults() {
	if c.ReadBatch <= 0 {
		c.ReadBatch = 64
	}
	if c.IdleWait <= 0 {
		c.IdleWait = time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 200 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
}

// Worker drives delivery for one destination.
type Worker struct {
	rt     *runtime.Runtime
	svc    *dispatchsvc.Service
	sender Sender
	dest   string
	cfg    Config
	logger logpkg.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// consecutive send failures for the entry the cursor is parked on
	failID    eventlog.EntryID
	failCount int
}

// New creates a worker for destinationID.
func New(rt *runtime.Runtime, svc *dispatchsvc.Service, sender Sender, destinationID string, cfg Config, logger logpkg.Logger) *Worker {
	cfg.applyDefaults()
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		rt:     rt,
		svc:    svc,
		sender: sender,
		dest:   destinationID,
		cfg:    cfg,
		logger: logger.With(logpkg.Component("worker"), logpkg.Str("destination", destinationID)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the delivery loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop cancels the loop and waits for it to exit. The destination simply
// stays at its last acknowledged position until resumed.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	attempt := 0
	for {
		if w.ctx.Err() != nil {
			return
		}
		progressed, err := w.step(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			attempt++
			delay := computeBackoff(attempt, w.cfg.BackoffBase, w.cfg.BackoffCap)
			w.logger.Warn("delivery failed, backing off",
				logpkg.Err(err),
				logpkg.Int("attempt", attempt),
				logpkg.Duration("delay", delay))
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
		if !progressed {
			w.rt.Log().WaitForAppend(w.cfg.IdleWait)
		}
	}
}

// step performs one delivery pass. It reports whether any progress was made;
// an error means a send failed and the caller should back off.
func (w *Worker) step(ctx context.Context) (bool, error) {
	progressed, err := w.drainQueue(ctx)
	if err != nil {
		return progressed, err
	}

	dest, found, err := w.svc.Resolve(w.dest)
	if err != nil {
		return progressed, err
	}
	if !found {
		return progressed, nil
	}
	if dest.ID != w.dest {
		// identity migrated; follow the live record from now on
		w.logger.Info("following migrated destination", logpkg.Str("to", dest.ID))
		w.dest = dest.ID
	}

	filter, err := dispatchsvc.CompileFilter(dest.Filter)
	if err != nil {
		w.logger.Warn("unusable filter, delivering nothing", logpkg.Err(err))
		return progressed, nil
	}

	entries, err := w.rt.Log().ReadAfter(dest.Cursor, w.cfg.ReadBatch)
	if err != nil {
		return progressed, err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return progressed, nil
		}
		ok, err := w.svc.Acknowledge(ctx, dest.ID, e.ID)
		if err != nil {
			return progressed, err
		}
		if !ok {
			// stale view; re-read on the next pass
			return progressed, nil
		}
		if !filter.Eval(e) {
			// filtered out: the advance stands, nothing is sent
			progressed = true
			continue
		}

		start := time.Now()
		if serr := w.sender.Send(ctx, dest.ID, e.Payload); serr != nil {
			w.rt.Metrics().DeliveryFailures.Inc()
			if ctx.Err() != nil {
				// cancelled mid-send; the advance stands
				return progressed, nil
			}
			if e.ID == w.failID {
				w.failCount++
			} else {
				w.failID, w.failCount = e.ID, 1
			}
			if w.cfg.MaxAttempts > 0 && w.failCount >= w.cfg.MaxAttempts {
				w.logger.Error("dropping entry after repeated send failures",
					logpkg.Str("entry", e.ID.String()),
					logpkg.Int("attempts", w.failCount),
					logpkg.Err(serr))
				w.failID, w.failCount = eventlog.EntryID{}, 0
				progressed = true
				continue
			}
			if _, uerr := w.svc.Unacknowledge(ctx, dest.ID, e.ID); uerr != nil {
				return progressed, uerr
			}
			return progressed, serr
		}
		w.failID, w.failCount = eventlog.EntryID{}, 0
		w.rt.Metrics().DeliverySeconds.Observe(time.Since(start).Seconds())
		progressed = true
	}
	return progressed, nil
}

// drainQueue delivers and removes directly fanned-out messages.
func (w *Worker) drainQueue(ctx context.Context) (bool, error) {
	progressed := false
	for {
		if ctx.Err() != nil {
			return progressed, nil
		}
		msg, ok, err := w.rt.Queues().Peek(w.dest)
		if err != nil {
			return progressed, err
		}
		if !ok {
			return progressed, nil
		}
		start := time.Now()
		if serr := w.sender.Send(ctx, w.dest, msg.Payload); serr != nil {
			w.rt.Metrics().DeliveryFailures.Inc()
			return progressed, serr
		}
		w.rt.Metrics().DeliverySeconds.Observe(time.Since(start).Seconds())
		if err := w.rt.Queues().Remove(ctx, w.dest, msg.Seq); err != nil {
			return progressed, err
		}
		progressed = true
	}
}
