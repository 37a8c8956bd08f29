package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
)

// Metrics holds the Prometheus instruments for the API server. Each server
// owns its registry so parallel test servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal    prometheus.Counter
	RefreshFailures prometheus.Counter
	RefreshDuration prometheus.Histogram
	LayerFeatures   *prometheus.GaugeVec
	LayerMissing    *prometheus.GaugeVec
	RequestDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RefreshTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resilience_refresh_total",
			Help: "Total number of pipeline refreshes started",
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resilience_refresh_failures_total",
			Help: "Total number of pipeline refreshes that returned an error",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resilience_refresh_duration_seconds",
			Help:    "Pipeline refresh duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		LayerFeatures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resilience_layer_features",
			Help: "Feature count in the current snapshot by layer",
		}, []string{"layer"}),
		LayerMissing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resilience_layer_missing_values",
			Help: "Missing numeric values in the current snapshot by layer and field",
		}, []string{"layer", "field"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resilience_request_duration_ms",
			Help:    "API request duration in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.RefreshTotal,
		m.RefreshFailures,
		m.RefreshDuration,
		m.LayerFeatures,
		m.LayerMissing,
		m.RequestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot records per-layer feature gauges for a published snapshot.
func (m *Metrics) ObserveSnapshot(snap *pipeline.Snapshot) {
	if snap == nil {
		return
	}
	for name, lr := range snap.Layers {
		if lr == nil || lr.Stats == nil {
			continue
		}
		m.LayerFeatures.WithLabelValues(name).Set(float64(lr.Stats.Total))
		for field, fs := range lr.Stats.Fields {
			m.LayerMissing.WithLabelValues(name, field).Set(float64(fs.Missing))
		}
	}
}

// ObserveRequest records one request duration in milliseconds.
func (m *Metrics) ObserveRequest(route string, d time.Duration) {
	m.RequestDuration.WithLabelValues(route).Observe(float64(d.Milliseconds()))
}
