// Package tracing wires OTLP trace export for the gateway. One span is
// recorded per inbound turn, carrying surface, chat and token attributes.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/clawrelay/clawrelay/internal/config"
)

const (
	tracerName         = "github.com/clawrelay/clawrelay/internal/tracing"
	defaultServiceName = "clawrelay-gateway"
)

// Setup installs a global OTLP tracer provider per the telemetry config and
// returns a shutdown func that flushes pending spans. When telemetry is
// disabled the global provider stays a no-op and the returned shutdown does
// nothing.
func Setup(ctx context.Context, tc config.TelemetryConfig) (func(context.Context) error, error) {
	if !tc.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newExporter(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	serviceName := tc.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, tc config.TelemetryConfig) (*otlptrace.Exporter, error) {
	switch tc.Protocol {
	case "", "grpc":
		opts := []otlptracegrpc.Option{}
		if tc.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(tc.Endpoint))
		}
		if tc.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(tc.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{}
		if tc.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(tc.Endpoint))
		}
		if tc.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(tc.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(tc.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown telemetry protocol %q (want grpc or http)", tc.Protocol)
	}
}

// Tracer returns the gateway tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartTurn opens a span covering one inbound message turn.
func StartTurn(ctx context.Context, surface, chatID, sender string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "gateway.turn", trace.WithAttributes(
		attribute.String("chat.surface", surface),
		attribute.String("chat.id", chatID),
		attribute.String("chat.sender", sender),
	))
}

// AnnotateTurn attaches model and token usage to the turn span in ctx, if
// any. Safe to call with no active span.
func AnnotateTurn(ctx context.Context, model string, inputTokens, outputTokens int64) {
	span := trace.SpanFromContext(ctx)
	if model != "" {
		span.SetAttributes(attribute.String("llm.model", model))
	}
	span.SetAttributes(
		attribute.Int64("llm.input_tokens", inputTokens),
		attribute.Int64("llm.output_tokens", outputTokens),
	)
}

// EndTurn records the turn outcome on the span and closes it.
func EndTurn(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
