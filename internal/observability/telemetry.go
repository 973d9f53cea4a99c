// Package observability sets up OpenTelemetry tracing and metrics with
// stdout exporters. Telemetry is off by default; when disabled, the no-op
// providers keep call sites unconditional.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// metricExportInterval is how often the periodic reader flushes metrics.
const metricExportInterval = 10 * time.Second

// Config controls telemetry setup.
type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
}

// Telemetry bundles the tracer and request metrics used by the exchange
// client, plus the shutdown hook for the underlying providers.
type Telemetry struct {
	tracer          trace.Tracer
	requestDuration metric.Float64Histogram
	shutdown        func(context.Context) error
}

// Setup initializes tracing and metrics per cfg. With Enabled false it
// returns a no-op Telemetry whose Shutdown does nothing.
func Setup(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return NewNop(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			metricExporter,
			sdkmetric.WithInterval(metricExportInterval),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(cfg.ServiceName)
	hist, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request duration histogram: %w", err)
	}

	return &Telemetry{
		tracer:          tp.Tracer(cfg.ServiceName),
		requestDuration: hist,
		shutdown: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutting down tracer provider: %w", err)
			}
			if err := mp.Shutdown(ctx); err != nil {
				return fmt.Errorf("shutting down meter provider: %w", err)
			}
			return nil
		},
	}, nil
}

// NewNop returns a Telemetry whose tracer and metrics discard everything.
func NewNop() *Telemetry {
	tracer := tracenoop.NewTracerProvider().Tracer("raglet")
	hist, _ := metricnoop.NewMeterProvider().Meter("raglet").Float64Histogram("http.client.request.duration")
	return &Telemetry{
		tracer:          tracer,
		requestDuration: hist,
		shutdown:        func(context.Context) error { return nil },
	}
}

// Start opens a client span around one remote operation.
func (t *Telemetry) Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
}

// RecordRequest records one request's duration with endpoint and outcome
// attributes.
func (t *Telemetry) RecordRequest(ctx context.Context, endpoint string, d time.Duration, err error) {
	t.requestDuration.Record(ctx, float64(d.Milliseconds()),
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.Bool("error", err != nil),
		),
	)
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
