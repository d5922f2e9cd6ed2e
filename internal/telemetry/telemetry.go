package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram observes a distribution of values.
type Histogram interface {
	Observe(float64)
}

// Counter is a monotonically increasing value.
type Counter interface {
	Inc()
	Add(float64)
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Sub(float64)
	SetToCurrentTime()
}

// NoopStat satisfies Counter, Gauge and Histogram when metrics are disabled.
type NoopStat struct{}

func (NoopStat) Observe(float64)   {}
func (NoopStat) Set(float64)       {}
func (NoopStat) Inc()              {}
func (NoopStat) Dec()              {}
func (NoopStat) Add(float64)       {}
func (NoopStat) Sub(float64)       {}
func (NoopStat) SetToCurrentTime() {}

// Metrics holds every instrument the service records. A Metrics built with
// New(false) is fully usable; every instrument is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	EntriesPublished Counter
	EntriesRejected  Counter
	FanoutDeliveries Counter
	Acknowledged     Counter
	AckConflicts     Counter
	Unacknowledged   Counter
	Registrations    Counter
	Migrations       Counter
	DeliveryFailures Counter
	DeliverySeconds  Histogram
	QueueBacklog     Gauge

	storageReadSeconds   Histogram
	storageWriteSeconds  Histogram
	storageCommitSeconds Histogram
	storageCommitBytes   Counter
}

// New builds the metric set. When enabled is false all instruments are no-ops
// and Handler returns nil.
func New(enabled bool) *Metrics {
	m := &Metrics{}
	if enabled {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m.registry.MustRegister(collectors.NewGoCollector())
	}

	m.EntriesPublished = m.newCounter("entries_published_total", "Entries appended to the delivery log.")
	m.EntriesRejected = m.newCounter("entries_rejected_total", "Submissions rejected by the admission gate.")
	m.FanoutDeliveries = m.newCounter("fanout_deliveries_total", "Per-destination deliveries enqueued by fan-out.")
	m.Acknowledged = m.newCounter("acknowledged_total", "Successful cursor advances.")
	m.AckConflicts = m.newCounter("ack_conflicts_total", "Cursor advances refused due to a stale candidate.")
	m.Unacknowledged = m.newCounter("unacknowledged_total", "Cursor rollbacks after failed sends.")
	m.Registrations = m.newCounter("registrations_total", "Destination registrations accepted.")
	m.Migrations = m.newCounter("migrations_total", "Destination identity migrations applied.")
	m.DeliveryFailures = m.newCounter("delivery_failures_total", "Send attempts that failed.")
	m.DeliverySeconds = m.newHistogram("delivery_seconds", "Send attempt latency.", prometheus.DefBuckets)
	m.QueueBacklog = m.newGauge("queue_backlog", "Entries waiting across direct delivery queues.")

	m.storageReadSeconds = m.newHistogram("storage_read_seconds", "Point read latency.", fastBuckets)
	m.storageWriteSeconds = m.newHistogram("storage_write_seconds", "Point write latency.", fastBuckets)
	m.storageCommitSeconds = m.newHistogram("storage_commit_seconds", "Batch commit latency.", fastBuckets)
	m.storageCommitBytes = m.newCounter("storage_commit_bytes_total", "Bytes committed in batches.")

	return m
}

var fastBuckets = []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, 1}

// Handler returns the scrape endpoint, or nil when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRead implements the storage metrics hook.
func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.storageReadSeconds.Observe(elapsed.Seconds())
}

// ObserveWrite implements the storage metrics hook.
func (m *Metrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.storageWriteSeconds.Observe(elapsed.Seconds())
}

// ObserveBatchCommit implements the storage metrics hook.
func (m *Metrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.storageCommitSeconds.Observe(elapsed.Seconds())
	m.storageCommitBytes.Add(float64(bytes))
}

func (m *Metrics) newCounter(name, help string) Counter {
	if m.registry == nil {
		return NoopStat{}
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "herald",
		Name:      name,
		Help:      help,
	})
	m.registry.MustRegister(c)
	return c
}

func (m *Metrics) newGauge(name, help string) Gauge {
	if m.registry == nil {
		return NoopStat{}
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "herald",
		Name:      name,
		Help:      help,
	})
	m.registry.MustRegister(g)
	return g
}

func (m *Metrics) newHistogram(name, help string, buckets []float64) Histogram {
	if m.registry == nil {
		return NoopStat{}
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "herald",
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
	m.registry.MustRegister(h)
	return h
}
