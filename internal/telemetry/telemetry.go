// Package telemetry installs the OpenTelemetry providers used by the fhirq CLI.
//
// Telemetry is off by default. When disabled, no-op providers are installed
// and the spans and instruments created by the query engine cost nothing.
// When enabled, spans and metrics are pretty-printed to the given writer.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const metricInterval = 15 * time.Second

// Settings controls Init.
type Settings struct {
	Enabled     bool
	ServiceName string
	Version     string
	Writer      io.Writer
}

// Providers holds the installed providers so they can be flushed on exit.
type Providers struct {
	shutdownFns []func(context.Context) error
}

// Init configures the global tracer and meter providers.
func Init(ctx context.Context, settings Settings) (*Providers, error) {
	providers := &Providers{}

	if !settings.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())

		return providers, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(settings.ServiceName),
			semconv.ServiceVersionKey.String(settings.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(
		stdouttrace.WithWriter(settings.Writer),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)
	providers.shutdownFns = append(providers.shutdownFns, tracerProvider.Shutdown)

	metricExporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(settings.Writer),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricInterval))),
	)
	otel.SetMeterProvider(meterProvider)
	providers.shutdownFns = append(providers.shutdownFns, meterProvider.Shutdown)

	return providers, nil
}

// Shutdown flushes pending spans and metrics. Safe on a nil receiver.
func (p *Providers) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}

	for _, fn := range p.shutdownFns {
		_ = fn(ctx)
	}

	p.shutdownFns = nil
}
