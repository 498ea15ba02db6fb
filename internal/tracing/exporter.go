package tracing

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

const defaultEndpoint = "localhost:4317"

// settings is Config resolved against the standard OTEL_* environment.
type settings struct {
	serviceName string
	environment string
	endpoint    string
	insecure    bool
	sampleRatio float64
}

// resolveSettings lets explicit config win over OTEL_* variables, except for
// OTEL_EXPORTER_OTLP_INSECURE which collectors commonly inject per deployment.
func resolveSettings(cfg Config, getenv func(string) string) settings {
	s := settings{
		serviceName: firstNonBlank(cfg.ServiceName, getenv("OTEL_SERVICE_NAME"), "jobgate"),
		environment: strings.TrimSpace(cfg.Environment),
		endpoint:    hostPort(firstNonBlank(cfg.OTLPEndpoint, getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), defaultEndpoint)),
		insecure:    cfg.OTLPInsecure,
		sampleRatio: cfg.SampleRatio,
	}
	if v := strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_INSECURE")); v != "" {
		s.insecure = parseBool(v)
	}
	if s.sampleRatio <= 0 || s.sampleRatio > 1 {
		s.sampleRatio = 1
	}
	return s
}

func newExporter(ctx context.Context, s settings) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
	if s.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// gatewayResource is schemaless so it merges cleanly with the SDK default
// resource, whatever semconv version that one is pinned to.
func gatewayResource(s settings) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(s.serviceName)}
	if s.environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(s.environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return resource.NewSchemaless(attrs...)
	}
	return res
}

// hostPort accepts either host:port or a URL, since OTEL_EXPORTER_OTLP_ENDPOINT
// is usually written as a URL while the gRPC exporter wants host:port.
func hostPort(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.TrimSuffix(raw, "/")
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y", "on":
		return true
	}
	return false
}
