// Package tracing installs OpenTelemetry for the gateway. Both hops of a
// submission carry W3C trace context: the inbound request is continued by a
// server span and the runner call is made under a client span.
package tracing

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	Enabled     bool
	ServiceName string
	Environment string

	OTLPEndpoint string
	OTLPInsecure bool

	SampleRatio float64
}

// traceContext is the only propagator the gateway uses. Baggage from clients
// is never forwarded to the runner.
var traceContext propagation.TextMapPropagator = propagation.TraceContext{}

func noopShutdown(context.Context) error { return nil }

// Setup installs the global propagator and, when enabled, an OTLP/gRPC tracer
// provider. The returned shutdown flushes pending spans and is never nil.
// Exporter failures leave tracing off rather than failing startup.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	otel.SetTextMapPropagator(traceContext)
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	s := resolveSettings(cfg, os.Getenv)
	exp, err := newExporter(ctx, s)
	if err != nil {
		logger.Warn("otel exporter init failed; tracing disabled", "endpoint", s.endpoint, "err", err)
		return noopShutdown, nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(gatewayResource(s)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	logger.Info("tracing enabled", "endpoint", s.endpoint, "insecure", s.insecure, "sampleRatio", s.sampleRatio)
	return tp.Shutdown, nil
}

// Extract continues the caller's trace, if the inbound headers carry one.
func Extract(ctx context.Context, h http.Header) context.Context {
	return traceContext.Extract(ctx, propagation.HeaderCarrier(h))
}

// InjectHeaders writes traceparent/tracestate for the span in ctx onto the
// outbound runner request.
func InjectHeaders(ctx context.Context, h http.Header) {
	if h == nil {
		return
	}
	traceContext.Inject(ctx, propagation.HeaderCarrier(h))
}
