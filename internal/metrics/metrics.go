// Package metrics collects loader counters in a private Prometheus registry
// and writes them out in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heartmarshall/names-loader/internal/domain"
)

// Metrics holds the loader's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	rowsRead      *prometheus.CounterVec
	rowsWritten   *prometheus.CounterVec
	rowsSkipped   *prometheus.CounterVec
	orderWarnings *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
}

// New registers the loader collectors under namespace in a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Rows read from the source files.",
		}, []string{"dataset"}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows accepted by the destination.",
		}, []string{"dataset"}),
		rowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows skipped, by reason.",
		}, []string{"dataset", "reason"}),
		orderWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_warnings_total",
			Help:      "Rows whose count exceeded the previous row of the same year and gender.",
		}, []string{"dataset"}),
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_flush_duration_seconds",
			Help:      "Time to deliver one batch to the destination.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"dataset"}),
	}

	m.registry.MustRegister(m.rowsRead, m.rowsWritten, m.rowsSkipped, m.orderWarnings, m.flushDuration)
	return m
}

// Registry returns the registry holding the loader collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RowRead(dataset string) {
	m.rowsRead.WithLabelValues(dataset).Inc()
}

func (m *Metrics) RowsWritten(dataset string, n int) {
	m.rowsWritten.WithLabelValues(dataset).Add(float64(n))
}

func (m *Metrics) RowSkipped(dataset string, kind domain.SkipKind) {
	m.rowsSkipped.WithLabelValues(dataset, string(kind)).Inc()
}

func (m *Metrics) OrderWarning(dataset string) {
	m.orderWarnings.WithLabelValues(dataset).Inc()
}

func (m *Metrics) ObserveFlush(dataset string, d time.Duration) {
	m.flushDuration.WithLabelValues(dataset).Observe(d.Seconds())
}

// WriteTextfile writes the current values to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
