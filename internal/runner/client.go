// Package runner forwards job submissions to the downstream job runner.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/osvaldoandrade/jobgate/internal/metrics"
	"github.com/osvaldoandrade/jobgate/internal/middleware"
	"github.com/osvaldoandrade/jobgate/internal/tracing"
	"github.com/osvaldoandrade/jobgate/pkg/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxResponseBytes = 16 << 20

// Forwarder is what the gateway needs from a runner client.
type Forwarder interface {
	Forward(ctx context.Context, sub domain.JobSubmission) (domain.RunnerResponse, error)
}

type Options struct {
	BaseURL          string
	SubmitPath       string
	Timeout          time.Duration
	MaxResponseBytes int64
	// Transport overrides the HTTP transport; nil uses a clone of http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

type Client struct {
	target           string
	httpClient       *http.Client
	maxResponseBytes int64
	logger           *slog.Logger
	tracer           trace.Tracer
}

// NewClient validates opts. A zero or negative Timeout is rejected: the
// gateway never waits on the runner without a bound.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("runner base url %q must be an absolute http(s) URL", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		return nil, errors.New("runner timeout must be > 0")
	}
	path := opts.SubmitPath
	if path == "" {
		path = "/run-job"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		target:           base + path,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			// A runner 3xx is relayed like any other status, never followed.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		maxResponseBytes: maxBytes,
		logger:           logger,
		tracer:           otel.Tracer("jobgate/runner"),
	}, nil
}

// Target is the absolute URL submissions are posted to.
func (c *Client) Target() string { return c.target }

// Forward posts one freshly encoded multipart request. Any HTTP response is a
// success whatever its status; only a missing or unreadable response is a
// *domain.TransportError. Nothing is retried.
func (c *Client) Forward(ctx context.Context, sub domain.JobSubmission) (domain.RunnerResponse, error) {
	ctx, span := c.tracer.Start(ctx, "runner.forward",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodPost),
			attribute.String("http.url", c.target),
			attribute.String("jobgate.method", sub.Method),
			attribute.Int("jobgate.file_bytes", len(sub.File.Content)),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.do(ctx, sub)
	result := "transport_error"
	if err == nil {
		result = metrics.StatusClass(resp.StatusCode)
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RunnerRequestsTotal.WithLabelValues(result).Inc()
	metrics.RunnerRequestDurationSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return resp, err
}

func (c *Client) do(ctx context.Context, sub domain.JobSubmission) (domain.RunnerResponse, error) {
	out, err := sub.Encode()
	if err != nil {
		return domain.RunnerResponse{}, &domain.TransportError{Reason: "request encoding failed", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target, bytes.NewReader(out.Body()))
	if err != nil {
		return domain.RunnerResponse{}, &domain.TransportError{Reason: "request build failed", Err: err}
	}
	req.Header.Set("Content-Type", out.ContentType())
	if id := middleware.RequestIDFrom(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RunnerResponse{}, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		terr := classify(ctx, err)
		if !terr.Timeout && terr.Reason != "request canceled" {
			terr.Reason = "response read failed"
		}
		return domain.RunnerResponse{}, terr
	}
	if int64(len(body)) > c.maxResponseBytes {
		return domain.RunnerResponse{}, &domain.TransportError{
			Reason: fmt.Sprintf("response too large (limit %d bytes)", c.maxResponseBytes),
		}
	}

	c.logger.Debug("runner responded", "status", resp.StatusCode, "bytes", len(body), "target", c.target)
	return domain.RunnerResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func classify(ctx context.Context, err error) *domain.TransportError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &domain.TransportError{Reason: "timeout", Timeout: true, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &domain.TransportError{Reason: "request canceled", Err: err}
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return &domain.TransportError{Reason: "unreachable", Err: err}
	}
	return &domain.TransportError{Reason: "request failed", Err: err}
}
