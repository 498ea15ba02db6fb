package tracing

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func fakeEnv(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"collector:4317", "collector:4317"},
		{"collector:4317/", "collector:4317"},
		{"http://collector:4317", "collector:4317"},
		{"https://otel.example.com:443/v1/traces", "otel.example.com:443"},
	}
	for _, tt := range tests {
		if got := hostPort(tt.in); got != tt.want {
			t.Errorf("hostPort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		env  map[string]string
		want settings
	}{
		{
			name: "defaults",
			want: settings{serviceName: "jobgate", endpoint: defaultEndpoint, sampleRatio: 1},
		},
		{
			name: "env fills gaps",
			env: map[string]string{
				"OTEL_SERVICE_NAME":           "gateway-eu",
				"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4317",
				"OTEL_EXPORTER_OTLP_INSECURE": "true",
			},
			want: settings{serviceName: "gateway-eu", endpoint: "collector:4317", insecure: true, sampleRatio: 1},
		},
		{
			name: "config wins over env",
			cfg:  Config{ServiceName: "jobgate-prod", Environment: " prod ", OTLPEndpoint: "otel:4317", SampleRatio: 0.25},
			env: map[string]string{
				"OTEL_SERVICE_NAME":           "ignored",
				"OTEL_EXPORTER_OTLP_ENDPOINT": "ignored:4317",
			},
			want: settings{serviceName: "jobgate-prod", environment: "prod", endpoint: "otel:4317", sampleRatio: 0.25},
		},
		{
			name: "insecure env overrides config",
			cfg:  Config{OTLPInsecure: true, SampleRatio: 3},
			env:  map[string]string{"OTEL_EXPORTER_OTLP_INSECURE": "no"},
			want: settings{serviceName: "jobgate", endpoint: defaultEndpoint, sampleRatio: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveSettings(tt.cfg, fakeEnv(tt.env)); got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGatewayResource(t *testing.T) {
	res := gatewayResource(settings{serviceName: "jobgate", environment: "staging"})

	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}
	if got["service.name"] != "jobgate" {
		t.Fatalf("service.name = %q", got["service.name"])
	}
	if got["deployment.environment"] != "staging" {
		t.Fatalf("deployment.environment = %q", got["deployment.environment"])
	}
}

func TestSetupDisabledReturnsNoopShutdown(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInjectThenExtractContinuesTrace(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "forward")
	defer span.End()

	h := http.Header{}
	InjectHeaders(ctx, h)
	if h.Get("traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	remote := trace.SpanContextFromContext(Extract(context.Background(), h))
	if remote.TraceID() != span.SpanContext().TraceID() || !remote.IsRemote() {
		t.Fatalf("expected extracted remote context for trace %s, got %+v", span.SpanContext().TraceID(), remote)
	}

	InjectHeaders(ctx, nil)
}
