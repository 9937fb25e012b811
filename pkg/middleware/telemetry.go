package middleware

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
)

const instrumentationName = "github.com/ag-ui/go-engine/pkg/middleware"

// TelemetryOption configures the Telemetry stage.
type TelemetryOption func(*telemetry)

type telemetry struct {
	tracer trace.Tracer
	meter  metric.Meter
}

// WithTracer sets the tracer. The default is the global TracerProvider.
func WithTracer(tracer trace.Tracer) TelemetryOption {
	return func(t *telemetry) {
		t.tracer = tracer
	}
}

// WithMeter sets the meter. The default is the global MeterProvider.
func WithMeter(meter metric.Meter) TelemetryOption {
	return func(t *telemetry) {
		t.meter = meter
	}
}

// Telemetry records one span per run and counts events by type. A
// RUN_ERROR event or a stream error marks the span as failed.
func Telemetry(opts ...TelemetryOption) (Middleware, error) {
	t := &telemetry{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(t)
	}

	counter, err := t.meter.Int64Counter("agui.events",
		metric.WithDescription("Events streamed per run, by type"))
	if err != nil {
		return nil, err
	}
	runs, err := t.meter.Int64Counter("agui.runs",
		metric.WithDescription("Runs by outcome"))
	if err != nil {
		return nil, err
	}

	return Func(func(ctx context.Context, req *core.RunRequest, next core.EventProducer) (core.EventStream, error) {
		ctx, span := t.tracer.Start(ctx, "agui.run", trace.WithAttributes(
			attribute.String("agui.thread_id", req.ThreadID),
			attribute.String("agui.run_id", req.RunID),
			attribute.Int("agui.messages", len(req.Messages)),
		))

		upstream, err := next.Run(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "start_failed")))
			return nil, err
		}

		outcome := "incomplete"
		return Transform(upstream, func(ctx context.Context, event events.Event) ([]events.Event, error) {
			counter.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", string(event.Type()))))
			switch e := event.(type) {
			case *events.RunStartedEvent:
				span.SetAttributes(
					attribute.String("agui.thread_id", e.ThreadID),
					attribute.String("agui.run_id", e.RunID),
				)
			case *events.RunFinishedEvent:
				outcome = "finished"
			case *events.RunErrorEvent:
				outcome = "error"
				span.SetStatus(codes.Error, e.Message)
			}
			span.AddEvent(string(event.Type()))
			return []events.Event{event}, nil
		}, func(err error) {
			switch {
			case err == nil:
				if outcome == "incomplete" {
					outcome = "closed"
				}
			case !errors.Is(err, io.EOF):
				outcome = "stream_error"
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.SetAttributes(attribute.String("agui.outcome", outcome))
			runs.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
			span.End()
		}), nil
	}), nil
}
