// Package observability holds the logger and Prometheus metrics shared by the
// host, the data providers and the layer engines.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the visualization host.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProviderQueries  *prometheus.CounterVec   // labels: kind={shape,scalar}, outcome={ok,empty,error}
	ProviderDuration *prometheus.HistogramVec // labels: kind
	ScalarCache      *prometheus.CounterVec   // labels: result={hit,miss,negative}
	LoadingInFlight  prometheus.Gauge
	LoadingDuration  prometheus.Histogram
	LayerRenders     *prometheus.CounterVec // labels: layer
	StateWrites      prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ProviderQueries,
		m.ProviderDuration,
		m.ScalarCache,
		m.LoadingInFlight,
		m.LoadingDuration,
		m.LayerRenders,
		m.StateWrites,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ProviderQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plat_water",
			Name:      "provider_queries_total",
			Help:      "Data provider queries by kind and outcome.",
		}, []string{"kind", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plat_water",
			Name:      "provider_query_duration_seconds",
			Help:      "Data provider query duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		ScalarCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plat_water",
			Name:      "scalar_cache_total",
			Help:      "Scalar cache lookups during filter cycles.",
		}, []string{"result"}),
		LoadingInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plat_water",
			Name:      "loading_in_flight",
			Help:      "Long-running operations currently holding the busy indicator.",
		}),
		LoadingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plat_water",
			Name:      "loading_duration_seconds",
			Help:      "Time between begin and end of a loading notification.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		LayerRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plat_water",
			Name:      "layer_renders_total",
			Help:      "Rendered-set recomputations per layer.",
		}, []string{"layer"}),
		StateWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plat_water",
			Name:      "shared_state_writes_total",
			Help:      "Merge-writes applied to the shared-state store.",
		}),
	}
}

// ObserveQuery records one provider query.
func (m *Metrics) ObserveQuery(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderQueries.WithLabelValues(kind, outcome).Inc()
	m.ProviderDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// CacheLookup records a scalar cache lookup result.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.ScalarCache.WithLabelValues(result).Inc()
}

// Rendered records a render recompute for a layer.
func (m *Metrics) Rendered(layer string) {
	if m == nil {
		return
	}
	m.LayerRenders.WithLabelValues(layer).Inc()
}

// StateWritten records a shared-state write.
func (m *Metrics) StateWritten() {
	if m == nil {
		return
	}
	m.StateWrites.Inc()
}

// LoadingStarted and LoadingFinished track the busy indicator.
func (m *Metrics) LoadingStarted() {
	if m == nil {
		return
	}
	m.LoadingInFlight.Inc()
}

func (m *Metrics) LoadingFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.LoadingInFlight.Dec()
	m.LoadingDuration.Observe(d.Seconds())
}
