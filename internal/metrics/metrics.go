// Package metrics provides in-process Prometheus metrics for
// branchback's core repository operations: snapshot, checkout, and
// delta compression.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace for every branchback metric.
const namespace = "branchback"

// Metrics holds every metric an embedder may want to scrape. Nothing
// in this package starts an HTTP server: Handler returns a standard
// http.Handler that an embedding CLI or service can mount if it wants
// to expose metrics at all.
//
// Each Metrics instance carries its own registry rather than
// registering into the global default one, since a single process may
// legitimately open more than one Repository (tests do this routinely)
// and the default registry panics on a second registration of the same
// metric name.
type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	ObjectsWrittenTotal    prometheus.Counter
	ObjectsDeduplicated    prometheus.Counter
	DeltaCompressionsTotal prometheus.Counter
	DeltaSavingsBytes      prometheus.Counter

	SnapshotBytesTotal prometheus.Counter
	CatalogRowsTotal   prometheus.Gauge
}

// New creates and registers every metric against a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "repository",
				Name:      "operations_total",
				Help:      "Total number of repository operations, by operation and status.",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "repository",
				Name:      "operation_duration_seconds",
				Help:      "Repository operation duration in seconds.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		ObjectsWrittenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "objectstore",
				Name:      "objects_written_total",
				Help:      "Total number of fresh objects written.",
			},
		),
		ObjectsDeduplicated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "objectstore",
				Name:      "objects_deduplicated_total",
				Help:      "Total number of writes skipped because the object already existed.",
			},
		),
		DeltaCompressionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "delta",
				Name:      "compressions_total",
				Help:      "Total number of objects delta-compressed in place.",
			},
		),
		DeltaSavingsBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "delta",
				Name:      "savings_bytes_total",
				Help:      "Total bytes saved by storing objects as deltas instead of fresh copies.",
			},
		),
		SnapshotBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "repository",
				Name:      "snapshot_bytes_total",
				Help:      "Total bytes read from the working directory across all snapshots.",
			},
		),
		CatalogRowsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "rows",
				Help:      "Number of snapshot catalog rows inserted through this Metrics instance.",
			},
		),
	}
}

// RecordOperation records the outcome and duration of a repository
// operation by name (Repository records "snapshot" and "checkout").
func (m *Metrics) RecordOperation(operation, status string, durationSeconds float64) {
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordObjectWrite records whether a PutFresh call actually wrote a
// new object or deduplicated against an existing one.
func (m *Metrics) RecordObjectWrite(wroteNew bool) {
	if wroteNew {
		m.ObjectsWrittenTotal.Inc()
	} else {
		m.ObjectsDeduplicated.Inc()
	}
}

// RecordDeltaCompression records one object being turned into a delta
// envelope, and how many bytes that saved versus storing it fresh.
func (m *Metrics) RecordDeltaCompression(savingsBytes int64) {
	m.DeltaCompressionsTotal.Inc()
	if savingsBytes > 0 {
		m.DeltaSavingsBytes.Add(float64(savingsBytes))
	}
}

// Handler returns a standard Prometheus scrape handler. branchback's
// own CLI never calls this; it exists for an embedder that wants to
// expose these metrics over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
