// Package metrics exports store and invalidation activity as Prometheus
// metrics. A Collector is a state.Observer and a bus.Listener.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/state"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "fintrack"

// Config configures a Collector.
type Config struct {
	Namespace string
	Buckets   []float64
	Registry  prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the execution latency histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the registerer. Default: prometheus.DefaultRegisterer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = r
	}
}

// Collector records executions and firings.
type Collector struct {
	executions    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inFlight      *prometheus.GaugeVec
	invalidations *prometheus.CounterVec
}

var (
	_ state.Observer = (*Collector)(nil)
	_ bus.Listener   = (*Collector)(nil)
)

// New registers the collector's metrics.
// Registering twice on one registry panics.
func New(opts ...Option) *Collector {
	cfg := Config{
		Namespace: DefaultNamespace,
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Collector{
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "executions_total",
			Help:      "Settled store executions by outcome (skipped, success, error, dropped).",
		}, []string{"store", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "execution_duration_seconds",
			Help:      "Transport time of executions that reached the network phase.",
			Buckets:   cfg.Buckets,
		}, []string{"store"}),

		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "executions_in_flight",
			Help:      "Executions started but not yet settled.",
		}, []string{"store"}),

		invalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "invalidations_total",
			Help:      "Refreshes started by mutations, by publishing store and topic.",
		}, []string{"source", "topic"}),
	}
}

// Observe implements state.Observer.
func (c *Collector) Observe(_ context.Context, ev state.Event) {
	switch ev.Kind {
	case state.EventStarted:
		c.inFlight.WithLabelValues(ev.Store).Inc()
		return
	case state.EventSkipped:
	case state.EventSucceeded, state.EventFailed, state.EventDropped:
		c.inFlight.WithLabelValues(ev.Store).Dec()
		c.duration.WithLabelValues(ev.Store).Observe(ev.Duration.Seconds())
	default:
		return
	}
	c.executions.WithLabelValues(ev.Store, string(ev.Outcome())).Inc()
}

// Fired implements bus.Listener.
func (c *Collector) Fired(_ context.Context, f bus.Firing) {
	c.invalidations.WithLabelValues(f.Cause.Source, string(f.Cause.Topic)).Inc()
}
