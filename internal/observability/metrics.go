// Package observability holds the Prometheus metrics of the refresh pipeline
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for board refreshes.
type Metrics struct {
	SourceFetches    *prometheus.CounterVec // labels: source, outcome={ok,network,malformed,error}
	MetricExtraction *prometheus.CounterVec // labels: metric, outcome={found,missing}
	SiteStatuses     *prometheus.CounterVec // labels: level
	RefreshDuration  prometheus.Histogram
	LastRefresh      prometheus.Gauge
	RefreshRunning   prometheus.Gauge
}

// NewMetrics creates and registers all refresh metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SourceFetches,
		m.MetricExtraction,
		m.SiteStatuses,
		m.RefreshDuration,
		m.LastRefresh,
		m.RefreshRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverstats",
			Name:      "source_fetches_total",
			Help:      "Upstream source fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		MetricExtraction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverstats",
			Name:      "metric_extractions_total",
			Help:      "Reservoir metrics by whether a value was found after all sources.",
		}, []string{"metric", "outcome"}),
		SiteStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riverstats",
			Name:      "site_statuses_total",
			Help:      "Classified site statuses by level.",
		}, []string{"level"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riverstats",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete board refresh cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riverstats",
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last completed refresh.",
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riverstats",
			Name:      "refresh_running",
			Help:      "1 while a refresh cycle is in progress.",
		}),
	}
}
