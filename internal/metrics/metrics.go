// Package metrics exposes conversion counters and latencies for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Conversion sources.
const (
	SourceFile   = "file"
	SourceInline = "inline"
)

// Conversion results.
const (
	ResultOK     = "ok"
	ResultCached = "cached"
	ResultError  = "error"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "conversions_total",
			Help: "Notebook conversions by format, source and result.",
		}, []string{"format", "source", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conversion_duration_seconds",
			Help:    "Time spent in exporters.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format"}),
	}
	reg.MustRegister(
		m.conversions,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one conversion. A nil *Metrics ignores the call.
func (m *Metrics) Observe(format, source, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(format, source, result).Inc()
	if result == ResultOK {
		m.duration.WithLabelValues(format).Observe(took.Seconds())
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
