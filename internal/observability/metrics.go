package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_report"

// Metrics holds the Prometheus counters, histograms, and gauges for feed loads
// and the displayed list.
type Metrics struct {
	Loads         *prometheus.CounterVec // labels: outcome={ok,empty,network_failure,parse_failure}
	LoadDuration  prometheus.Histogram
	RecordsLoaded prometheus.Counter

	RecordsDisplayed prometheus.Gauge
	Subscribers      prometheus.Gauge

	// Publisher metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Loads,
		m.LoadDuration,
		m.RecordsLoaded,
		m.RecordsDisplayed,
		m.Subscribers,
		m.RecordsPublished,
		m.PublishErrors,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not exposed on the default
// registry, for short-lived processes with no /metrics endpoint.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Feed loads by outcome.",
		}, []string{"outcome"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of one fetch and parse cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Total earthquake records parsed from the feed.",
		}),
		RecordsDisplayed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_displayed",
			Help:      "Number of records in the currently displayed list.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open snapshot stream connections.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Total records written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed publish attempts.",
		}),
	}
}
