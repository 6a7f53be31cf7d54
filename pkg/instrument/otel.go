package instrument

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cellgraph-dev/cellgraph/pkg/cell"
)

// OTelConfig configures the OpenTelemetry backend.
type OTelConfig struct {
	// TracerName is the instrumentation scope name.
	// Default: "github.com/cellgraph-dev/cellgraph"
	TracerName string

	// SpanName is the span name used for transactions.
	// Default: "cell.tx"
	SpanName string
}

// OTelOption configures the OpenTelemetry backend.
type OTelOption func(*OTelConfig)

// WithTracerName sets the instrumentation scope name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithSpanName sets the transaction span name.
func WithSpanName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.SpanName = name
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: "github.com/cellgraph-dev/cellgraph",
		SpanName:   "cell.tx",
	}
}

type otelBackend struct {
	tracer   trace.Tracer
	spanName string
}

// OpenTelemetry builds an Instrumentation backend that records one span per
// settled outermost transaction, using the globally registered tracer
// provider. Span attributes:
//   - cell.tx.name: the transaction name (TxNamed), if any
//   - cell.tx.visited: expressions recomputed during settlement
//   - cell.tx.reclaimed: expressions reclaimed during settlement
func OpenTelemetry(opts ...OTelOption) cell.Instrumentation {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &otelBackend{
		tracer:   otel.Tracer(config.TracerName),
		spanName: config.SpanName,
	}
}

// TxStart implements cell.Instrumentation.
func (o *otelBackend) TxStart(name string) cell.TxDone {
	_, span := o.tracer.Start(context.Background(), o.spanName)
	if name != "" {
		span.SetAttributes(attribute.String("cell.tx.name", name))
	}
	return func(visited, reclaimed int) {
		span.SetAttributes(
			attribute.Int("cell.tx.visited", visited),
			attribute.Int("cell.tx.reclaimed", reclaimed),
		)
		span.End()
	}
}

// ComputeObserved implements cell.Instrumentation.
func (o *otelBackend) ComputeObserved(changed bool) {}

// ReclaimObserved implements cell.Instrumentation.
func (o *otelBackend) ReclaimObserved() {}
