package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options for the Prometheus collector.
type Options struct {
	// Prefix for all metric names, defaults to "signet_".
	Prefix string

	// Registry to register the collectors with. When nil a new
	// registry is created.
	Registry *prometheus.Registry
}

// Prometheus implements Metrics backed by prometheus collectors.
type Prometheus struct {
	counters *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	registry *prometheus.Registry
}

// NewPrometheus creates a Prometheus metrics collector and registers
// its collectors.
func NewPrometheus(o Options) *Prometheus {
	if o.Prefix == "" {
		o.Prefix = "signet_"
	}
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}

	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: o.Prefix + "events_total",
		Help: "Total number of signet events by key.",
	}, []string{"key"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    o.Prefix + "duration_seconds",
		Help:    "Duration of signet operations by key.",
		Buckets: prometheus.DefBuckets,
	}, []string{"key"})

	o.Registry.MustRegister(counters, latency)

	return &Prometheus{
		counters: counters,
		latency:  latency,
		registry: o.Registry,
	}
}

func (p *Prometheus) IncCounter(key string) {
	p.counters.WithLabelValues(key).Inc()
}

func (p *Prometheus) MeasureSince(key string, start time.Time) {
	p.latency.WithLabelValues(key).Observe(time.Since(start).Seconds())
}

// Handler returns an http.Handler exposing the collected metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
