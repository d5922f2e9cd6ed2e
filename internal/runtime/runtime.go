// Package runtime wires storage and the protocol components into a
// single-node instance: one Pebble store carrying the event log, the
// admission gate, the delivery queues, and the subscription registry.
package runtime

import (
	"context"
	"errors"

	"github.com/jdertmann/herald/internal/admission"
	cfgpkg "github.com/jdertmann/herald/internal/config"
	"github.com/jdertmann/herald/internal/deliveryqueue"
	"github.com/jdertmann/herald/internal/eventlog"
	pebblestore "github.com/jdertmann/herald/internal/storage/pebble"
	"github.com/jdertmann/herald/internal/subscription"
	"github.com/jdertmann/herald/internal/telemetry"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
}

// Runtime owns the shared store and the component facades built over it.
type Runtime struct {
	db       *pebblestore.DB
	config   cfgpkg.Config
	metrics  *telemetry.Metrics
	log      *eventlog.Log
	gate     *admission.Gate
	queues   *deliveryqueue.Queues
	registry *subscription.Registry
}

// Open initializes storage and the component facades.
func Open(opts Options) (*Runtime, error) {
	metrics := telemetry.New(opts.Config.MetricsEnabled)
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.Config.FsyncInterval(),
		Metrics:       metrics,
	})
	if err != nil {
		return nil, err
	}
	l, err := eventlog.Open(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Runtime{
		db:       db,
		config:   opts.Config,
		metrics:  metrics,
		log:      l,
		gate:     admission.NewGate(db),
		queues:   deliveryqueue.NewQueues(db),
		registry: subscription.NewRegistry(db, l, opts.Config.RedirectTTL()),
	}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth verifies the store is open and readable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Log returns the shared event log.
func (r *Runtime) Log() *eventlog.Log { return r.log }

// Gate returns the admission gate.
func (r *Runtime) Gate() *admission.Gate { return r.gate }

// Queues returns the direct delivery queues.
func (r *Runtime) Queues() *deliveryqueue.Queues { return r.queues }

// Registry returns the subscription registry.
func (r *Runtime) Registry() *subscription.Registry { return r.registry }

// Metrics returns the telemetry instruments.
func (r *Runtime) Metrics() *telemetry.Metrics { return r.metrics }

// DB exposes the underlying store for batch composition (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
