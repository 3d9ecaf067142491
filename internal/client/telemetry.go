package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fivetwenty-io/fhirq/pkg/fhir"
)

const scopeName = "github.com/fivetwenty-io/fhirq/client"

// instruments traces and counts chain executions. With no global providers
// installed every call is a no-op.
type instruments struct {
	tracer trace.Tracer
	runs   metric.Int64Counter
	errs   metric.Int64Counter
	dur    metric.Float64Histogram
}

func newInstruments() *instruments {
	meter := otel.Meter(scopeName)

	runs, _ := meter.Int64Counter("fhirq.chain.executions",
		metric.WithDescription("Chains executed, by mode"),
	)
	errs, _ := meter.Int64Counter("fhirq.chain.errors",
		metric.WithDescription("Chains that ended in an error, by mode"),
	)
	dur, _ := meter.Float64Histogram("fhirq.chain.duration",
		metric.WithDescription("Chain execution time in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &instruments{
		tracer: otel.Tracer(scopeName),
		runs:   runs,
		errs:   errs,
		dur:    dur,
	}
}

// start opens the span covering one chain execution.
func (i *instruments) start(ctx context.Context, desc *descriptor) (context.Context, trace.Span, time.Time) {
	attrs := chainAttributes(desc)

	ctx, span := i.tracer.Start(ctx, "fhir."+string(desc.mode),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	i.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("fhir.mode", string(desc.mode))))

	return ctx, span, time.Now()
}

// end closes the span and records the outcome.
func (i *instruments) end(ctx context.Context, span trace.Span, start time.Time, desc *descriptor, urls *URLSet, err error) {
	mode := metric.WithAttributes(attribute.String("fhir.mode", string(desc.mode)))

	i.dur.Record(ctx, float64(time.Since(start).Milliseconds()), mode)
	span.SetAttributes(
		attribute.Int("fhir.resolved_urls", urls.Len()),
		attribute.String("fhir.url", urls.Last()),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.errs.Add(ctx, 1, mode)
	}

	span.End()
}

func chainAttributes(desc *descriptor) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("fhir.mode", string(desc.mode))}

	if desc.resourceType != "" {
		attrs = append(attrs, attribute.String("fhir.resource_type", desc.resourceType))
	}

	if desc.mode == fhir.ModeOperation {
		attrs = append(attrs, attribute.String("fhir.operation", desc.operationName))
	}

	if desc.mode == fhir.ModeSearch {
		attrs = append(attrs, attribute.Int("fhir.filters", len(desc.filters)))
	}

	return attrs
}
