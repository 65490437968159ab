// Package tracing configures the OpenTelemetry tracer provider that the
// registry and coordinator spans are recorded on.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceName identifies lexbridge in exported spans.
const DefaultServiceName = "lexbridge"

// Config configures the tracing subsystem.
type Config struct {
	// Enabled controls whether spans are recorded at all.
	Enabled bool

	// Exporter is "none" or "stdout". With "none", spans are recorded but
	// not exported.
	Exporter string

	// Output receives stdout exports. Defaults to os.Stderr so it does not
	// mix with command output.
	Output io.Writer

	// SampleRate is the fraction of root spans sampled. Defaults to 1.
	SampleRate float64

	// ServiceName defaults to DefaultServiceName.
	ServiceName string
}

// Provider owns the installed tracer provider.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	previous trace.TracerProvider
}

// Install creates a provider for cfg and sets it as the global provider.
// When tracing is disabled a no-op provider is installed.
func Install(cfg Config) (*Provider, error) {
	previous := otel.GetTracerProvider()

	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return &Provider{tracer: tp.Tracer(DefaultServiceName), previous: previous}, nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "stdout":
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp
	case "none", "":
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return &Provider{provider: tp, tracer: tp.Tracer(name), previous: previous}, nil
}

// Tracer returns a tracer on the installed provider.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are recorded.
func (p *Provider) Enabled() bool {
	return p.provider != nil
}

// Shutdown flushes pending spans and restores the previous global provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	otel.SetTracerProvider(p.previous)
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}
