// Package metrics exposes scan metrics for Prometheus scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomsec/scanhub/internal/engine"
)

// Compile-time interface check.
var _ engine.Observer = (*Metrics)(nil)

// Metrics implements engine.Observer on a dedicated Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	scansStarted   *prometheus.CounterVec
	scansCompleted *prometheus.CounterVec
	scansFailed    *prometheus.CounterVec
	findingsTotal  *prometheus.CounterVec

	lastScanDurationSeconds prometheus.Gauge
	lastScanFindings        prometheus.Gauge
}

// New creates and registers all scan metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scansStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanhub_scans_started_total",
			Help: "Number of scans that entered execution.",
		}, []string{"scan_type"}),
		scansCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanhub_scans_completed_total",
			Help: "Number of scans that reached completed status.",
		}, []string{"scan_type"}),
		scansFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanhub_scans_failed_total",
			Help: "Number of scans that reached failed status.",
		}, []string{"scan_type"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanhub_findings_total",
			Help: "Number of findings recorded, by severity.",
		}, []string{"severity"}),
		lastScanDurationSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanhub_last_scan_duration_seconds",
			Help: "Duration of the most recently completed scan.",
		}),
		lastScanFindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanhub_last_scan_findings",
			Help: "Finding count of the most recently completed scan.",
		}),
	}

	m.registry.MustRegister(
		m.scansStarted,
		m.scansCompleted,
		m.scansFailed,
		m.findingsTotal,
		m.lastScanDurationSeconds,
		m.lastScanFindings,
	)
	return m
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ScanStarted implements engine.Observer.
func (m *Metrics) ScanStarted(scanType engine.ScanType) {
	m.scansStarted.WithLabelValues(string(scanType)).Inc()
}

// ScanCompleted implements engine.Observer.
func (m *Metrics) ScanCompleted(scanType engine.ScanType, findings int, duration time.Duration) {
	m.scansCompleted.WithLabelValues(string(scanType)).Inc()
	m.lastScanDurationSeconds.Set(duration.Seconds())
	m.lastScanFindings.Set(float64(findings))
}

// ScanFailed implements engine.Observer.
func (m *Metrics) ScanFailed(scanType engine.ScanType) {
	m.scansFailed.WithLabelValues(string(scanType)).Inc()
}

// FindingRecorded implements engine.Observer.
func (m *Metrics) FindingRecorded(severity engine.Severity) {
	m.findingsTotal.WithLabelValues(string(severity)).Inc()
}
