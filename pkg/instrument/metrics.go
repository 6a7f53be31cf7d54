// Package instrument provides Instrumentation backends for the engine:
// Prometheus metrics and OpenTelemetry transaction spans. Install one (or
// both, via Combine) at startup:
//
//	cell.SetInstrumentation(instrument.Combine(
//	    instrument.Prometheus(instrument.WithNamespace("myapp")),
//	    instrument.OpenTelemetry(),
//	))
package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cellgraph-dev/cellgraph/pkg/cell"
)

// MetricsConfig configures the Prometheus backend.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "cellgraph").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for transaction duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus backend.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the transaction duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "cellgraph",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// promBackend implements cell.Instrumentation on Prometheus collectors.
type promBackend struct {
	txTotal    prometheus.Counter
	txDuration prometheus.Histogram
	txVisited  prometheus.Histogram
	computes   prometheus.Counter
	cutoffs    prometheus.Counter
	reclaims   prometheus.Counter
}

// Prometheus builds an Instrumentation backend that records engine
// activity as Prometheus metrics.
//
// Metrics collected:
//   - cellgraph_transactions_total: Counter of settled transactions
//   - cellgraph_transaction_duration_seconds: Histogram of settlement time
//   - cellgraph_transaction_visited: Histogram of expressions recomputed
//     per transaction
//   - cellgraph_computes_total: Counter of expression computes
//   - cellgraph_cutoffs_total: Counter of computes suppressed by the
//     equality cutoff
//   - cellgraph_reclaims_total: Counter of reclaimed expressions
//
// Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) cell.Instrumentation {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	return &promBackend{
		txTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transactions_total",
			Help:        "Total number of settled transactions",
			ConstLabels: config.ConstLabels,
		}),
		txDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transaction_duration_seconds",
			Help:        "Transaction settlement duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
		txVisited: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transaction_visited",
			Help:        "Expressions recomputed per transaction",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
		computes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "computes_total",
			Help:        "Total number of expression computes",
			ConstLabels: config.ConstLabels,
		}),
		cutoffs: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cutoffs_total",
			Help:        "Total number of computes suppressed by the equality cutoff",
			ConstLabels: config.ConstLabels,
		}),
		reclaims: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reclaims_total",
			Help:        "Total number of reclaimed expressions",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// TxStart implements cell.Instrumentation.
func (p *promBackend) TxStart(name string) cell.TxDone {
	start := time.Now()
	return func(visited, reclaimed int) {
		p.txTotal.Inc()
		p.txDuration.Observe(time.Since(start).Seconds())
		p.txVisited.Observe(float64(visited))
	}
}

// ComputeObserved implements cell.Instrumentation.
func (p *promBackend) ComputeObserved(changed bool) {
	p.computes.Inc()
	if !changed {
		p.cutoffs.Inc()
	}
}

// ReclaimObserved implements cell.Instrumentation.
func (p *promBackend) ReclaimObserved() {
	p.reclaims.Inc()
}

// Combine fans engine events out to several backends.
func Combine(backends ...cell.Instrumentation) cell.Instrumentation {
	return &multiBackend{backends: backends}
}

type multiBackend struct {
	backends []cell.Instrumentation
}

func (m *multiBackend) TxStart(name string) cell.TxDone {
	dones := make([]cell.TxDone, len(m.backends))
	for i, b := range m.backends {
		dones[i] = b.TxStart(name)
	}
	return func(visited, reclaimed int) {
		for _, done := range dones {
			done(visited, reclaimed)
		}
	}
}

func (m *multiBackend) ComputeObserved(changed bool) {
	for _, b := range m.backends {
		b.ComputeObserved(changed)
	}
}

func (m *multiBackend) ReclaimObserved() {
	for _, b := range m.backends {
		b.ReclaimObserved()
	}
}
