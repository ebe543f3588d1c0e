// Package observability provides tracing, metrics and logging for kiln.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the kiln tracer.
const TracerName = "github.com/efebarandurmaz/kiln"

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLPEndpoint is the OTLP gRPC endpoint, e.g. "localhost:4317".
	// Tracing is a no-op when it is empty.
	OTLPEndpoint string

	// SampleRate is the sampling ratio in [0, 1].
	SampleRate float64
}

func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "kiln",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the SDK provider, which is nil in no-op mode.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing installs a global OTLP tracer provider, or returns a no-op
// provider when no endpoint is configured.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{provider: provider, tracer: provider.Tracer(TracerName)}, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

func (tp *TracerProvider) Tracer() trace.Tracer { return tp.tracer }

// Span kinds recorded under the kiln.span.kind attribute.
const (
	SpanKindBuild  = "build"
	SpanKindUnit   = "unit"
	SpanKindExtern = "extern"
	SpanKindGraph  = "graph"
)

// StartBuildSpan starts the span covering one backend build.
func StartBuildSpan(ctx context.Context, backend, root string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "build."+backend,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("kiln.span.kind", SpanKindBuild),
			attribute.String("build.backend", backend),
			attribute.String("build.root", root),
		),
	)
}

// RecordBuildResult annotates a build span with its outcome.
func RecordBuildResult(span trace.Span, success bool, units, errorCount, warningCount int) {
	span.SetAttributes(
		attribute.Bool("build.success", success),
		attribute.Int("build.unit_count", units),
		attribute.Int("build.error_count", errorCount),
		attribute.Int("build.warning_count", warningCount),
	)
	if !success {
		span.SetStatus(codes.Error, "build failed")
	}
}

// StartUnitSpan starts the span for emitting one unit.
func StartUnitSpan(ctx context.Context, unit string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "unit.emit",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("kiln.span.kind", SpanKindUnit),
			attribute.String("unit.name", unit),
		),
	)
}

func StartExternSpan(ctx context.Context, fileCount int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "extern.compile",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("kiln.span.kind", SpanKindExtern),
			attribute.Int("extern.file_count", fileCount),
		),
	)
}

func RecordExternResult(span trace.Span, classes, excluded, errorCount int) {
	span.SetAttributes(
		attribute.Int("extern.class_count", classes),
		attribute.Int("extern.excluded_count", excluded),
		attribute.Int("extern.error_count", errorCount),
	)
	if errorCount > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d errors", errorCount))
	}
}

// StartGraphSpan starts a span for exporting or storing a dependency graph.
func StartGraphSpan(ctx context.Context, op string, nodes int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "graph."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("kiln.span.kind", SpanKindGraph),
			attribute.Int("graph.node_count", nodes),
		),
	)
}

// RecordError marks span as failed with err; nil is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
