package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/osvaldoandrade/jobgate/pkg/domain"
)

type mockForwarder struct {
	resp  domain.RunnerResponse
	err   error
	calls []domain.JobSubmission
}

func (m *mockForwarder) Forward(ctx context.Context, sub domain.JobSubmission) (domain.RunnerResponse, error) {
	m.calls = append(m.calls, sub)
	return m.resp, m.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testSubmission() domain.JobSubmission {
	return domain.JobSubmission{
		File:   domain.NamedFile{Name: "data.csv", Content: []byte("0123456789")},
		Method: "arima",
		Lags:   3,
		Window: 12,
	}
}

func TestGatewayServiceSubmitPassThrough(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"ok", 200, `{"jobId":"abc"}`},
		{"runner rejects", 422, `{"error":"lags out of range"}`},
		{"runner crashes", 500, "boom"},
		{"empty body", 204, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := &mockForwarder{resp: domain.RunnerResponse{StatusCode: tt.status, Body: []byte(tt.body)}}
			svc := NewGatewayService(fwd, quietLogger())

			resp, err := svc.Submit(context.Background(), testSubmission())
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if resp.StatusCode != tt.status || string(resp.Body) != tt.body {
				t.Errorf("got %d %q, want %d %q", resp.StatusCode, resp.Body, tt.status, tt.body)
			}
			if len(fwd.calls) != 1 {
				t.Fatalf("expected exactly one forward, got %d", len(fwd.calls))
			}
		})
	}
}

func TestGatewayServiceSubmitPropagatesTransportError(t *testing.T) {
	want := &domain.TransportError{Reason: "unreachable", Err: errors.New("connection refused")}
	fwd := &mockForwarder{err: want}
	svc := NewGatewayService(fwd, quietLogger())

	_, err := svc.Submit(context.Background(), testSubmission())
	if err != want {
		t.Fatalf("expected the same error back, got %v", err)
	}
	if len(fwd.calls) != 1 {
		t.Fatalf("expected no retry, got %d calls", len(fwd.calls))
	}
}

func TestGatewayServiceSubmitNoDeduplication(t *testing.T) {
	fwd := &mockForwarder{resp: domain.RunnerResponse{StatusCode: 200}}
	svc := NewGatewayService(fwd, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.Submit(context.Background(), testSubmission()); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if len(fwd.calls) != 2 {
		t.Fatalf("expected two forwards for two submissions, got %d", len(fwd.calls))
	}
}
