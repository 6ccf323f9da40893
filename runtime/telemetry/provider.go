// Package telemetry exports session activity as OpenTelemetry spans: a
// process-wide tracer provider and a bus listener that turns events into
// spans.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Instrumentation scope and resource defaults.
const (
	InstrumentationName = "github.com/AltairaLabs/roboshen"
	DefaultServiceName  = "roboshen"
)

// Config selects where spans go. An empty Endpoint disables export.
type Config struct {
	// Endpoint is an OTLP/HTTP traces URL, e.g. http://localhost:4318/v1/traces.
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	// SampleRatio is the fraction of sessions traced; 0 or 1 traces all.
	SampleRatio float64
}

// Provider is the installed tracer provider.
type Provider struct {
	tp       trace.TracerProvider
	shutdown func(context.Context) error
}

// Setup installs a global tracer provider and the W3C and X-Ray
// propagators. Without an endpoint the provider is a noop.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	otel.SetTextMapPropagator(Propagator())

	if cfg.Endpoint == "" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return &Provider{tp: tp, shutdown: func(context.Context) error { return nil }}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(serviceAttributes(&cfg)...))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	return &Provider{tp: tp, shutdown: tp.Shutdown}, nil
}

func serviceAttributes(cfg *Config) []attribute.KeyValue {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	return attrs
}

// sampler keeps child spans with their parent so a session is traced
// whole or not at all.
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Tracer returns the RoboShen tracer of this provider.
func (p *Provider) Tracer() trace.Tracer {
	return Tracer(p.tp)
}

// TracerProvider returns the underlying provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

// Tracer returns the RoboShen tracer from tp, or from the global provider
// when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// Propagator handles W3C TraceContext, W3C Baggage and AWS X-Ray headers.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		xray.Propagator{},
	)
}
