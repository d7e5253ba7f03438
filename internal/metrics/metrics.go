// Package metrics provides Prometheus-based metrics collection for
// nmaptrace scan and monitoring operations.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all nmaptrace metrics
	namespace = "nmaptrace"

	// Subsystems
	subsystemScan    = "scan"
	subsystemMonitor = "monitor"
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	scanErrors   *prometheus.CounterVec
	hopsRecorded *prometheus.CounterVec
	activeScans  prometheus.Gauge

	// Monitor metrics
	monitorSessionsActive prometheus.Gauge
	monitorHistorySize    prometheus.Gauge
	monitorTicksSkipped   prometheus.Counter

	startTime time.Time
	registry  *prometheus.Registry
}

// New creates a metrics instance with all collectors registered on a
// fresh registry, together with the standard Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		startTime: time.Now(),
		registry:  registry,
	}

	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans performed by protocol and status",
		},
		[]string{"protocol", "status"},
	)

	m.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scan operations in seconds",
			Buckets:   []float64{0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 300.0},
		},
		[]string{"protocol"},
	)

	m.scanErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "errors_total",
			Help:      "Total number of scan errors by protocol and error type",
		},
		[]string{"protocol", "error_type"},
	)

	m.hopsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "hops_total",
			Help:      "Total number of hops recorded by status",
		},
		[]string{"status"},
	)

	m.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently active scans",
		},
	)

	m.monitorSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemMonitor,
			Name:      "sessions_active",
			Help:      "Number of currently active monitoring sessions",
		},
	)

	m.monitorHistorySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemMonitor,
			Name:      "history_size",
			Help:      "Number of results retained in the monitoring history",
		},
	)

	m.monitorTicksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemMonitor,
			Name:      "ticks_skipped_total",
			Help:      "Monitoring ticks skipped because a scan was still in flight",
		},
	)

	registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.scanErrors,
		m.hopsRecorded,
		m.activeScans,
		m.monitorSessionsActive,
		m.monitorHistorySize,
		m.monitorTicksSkipped,
	)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the underlying Prometheus registry for HTTP exposure.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncrementScansTotal records a completed scan.
func (m *Metrics) IncrementScansTotal(protocol, status string) {
	m.scansTotal.WithLabelValues(protocol, status).Inc()
}

// RecordScanDuration records how long a scan took.
func (m *Metrics) RecordScanDuration(protocol string, d time.Duration) {
	m.scanDuration.WithLabelValues(protocol).Observe(d.Seconds())
}

// IncrementScanErrors records a scan error.
func (m *Metrics) IncrementScanErrors(protocol, errorType string) {
	m.scanErrors.WithLabelValues(protocol, errorType).Inc()
}

// AddHopsRecorded records parsed hops by status.
func (m *Metrics) AddHopsRecorded(status string, count int) {
	if count > 0 {
		m.hopsRecorded.WithLabelValues(status).Add(float64(count))
	}
}

// ScanStarted marks a scan as in flight.
func (m *Metrics) ScanStarted() {
	m.activeScans.Inc()
}

// ScanFinished marks a scan as done.
func (m *Metrics) ScanFinished() {
	m.activeScans.Dec()
}

// MonitorSessionStarted marks a monitoring session as active.
func (m *Metrics) MonitorSessionStarted() {
	m.monitorSessionsActive.Inc()
}

// MonitorSessionStopped marks a monitoring session as finished.
func (m *Metrics) MonitorSessionStopped() {
	m.monitorSessionsActive.Dec()
}

// SetMonitorHistorySize records the current history buffer length.
func (m *Metrics) SetMonitorHistorySize(n int) {
	m.monitorHistorySize.Set(float64(n))
}

// IncrementTicksSkipped records an anti-overlap tick skip.
func (m *Metrics) IncrementTicksSkipped() {
	m.monitorTicksSkipped.Inc()
}

// Uptime returns how long this metrics instance has been alive.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

var (
	globalOnce sync.Once
	global     *Metrics
)

// Global returns the process-wide metrics instance.
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}
