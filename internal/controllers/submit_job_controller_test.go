package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/jobgate/pkg/domain"
)

type mockGatewayService struct {
	resp  domain.RunnerResponse
	err   error
	calls []domain.JobSubmission
}

func (m *mockGatewayService) Submit(ctx context.Context, sub domain.JobSubmission) (domain.RunnerResponse, error) {
	m.calls = append(m.calls, sub)
	return m.resp, m.err
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = part.Write(content)
	}
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{"method": "arima", "lags": "3", "window": "12"}
}

func serve(t *testing.T, svc *mockGatewayService, maxUpload int64, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/submit-job", NewSubmitJobController(svc, maxUpload).Handle)

	req := httptest.NewRequest(http.MethodPost, "/submit-job", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJobRelaysRunnerResponse(t *testing.T) {
	svc := &mockGatewayService{resp: domain.RunnerResponse{StatusCode: 200, Body: []byte(`{"jobId":"abc"}`), ContentType: "application/json"}}
	body, ct := multipartBody(t, "data.csv", []byte("0123456789"), validFields())

	rec := serve(t, svc, 1<<20, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"jobId":"abc"}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if len(svc.calls) != 1 {
		t.Fatalf("expected one submission, got %d", len(svc.calls))
	}
	got := svc.calls[0]
	if got.File.Name != "data.csv" || len(got.File.Content) != 10 || got.Method != "arima" || got.Lags != 3 || got.Window != 12 {
		t.Fatalf("unexpected submission %+v", got)
	}
}

func TestSubmitJobRelaysRunnerErrorStatusVerbatim(t *testing.T) {
	svc := &mockGatewayService{resp: domain.RunnerResponse{StatusCode: 422, Body: []byte("window too small")}}
	body, ct := multipartBody(t, "data.csv", []byte("1,2"), validFields())

	rec := serve(t, svc, 1<<20, body, ct)

	if rec.Code != 422 || rec.Body.String() != "window too small" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(GatewayErrorHeader) != "" {
		t.Fatal("relayed runner statuses must not be tagged as gateway errors")
	}
	if rec.Header().Get("Content-Type") != "application/octet-stream" {
		t.Fatalf("expected octet-stream fallback, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestSubmitJobValidationNeverCallsRunner(t *testing.T) {
	tests := []struct {
		name      string
		filename  string
		content   []byte
		fields    map[string]string
		wantField string
	}{
		{"non-integer lags", "data.csv", []byte("1"), map[string]string{"method": "arima", "lags": "x", "window": "12"}, "lags"},
		{"non-integer window", "data.csv", []byte("1"), map[string]string{"method": "arima", "lags": "3", "window": "1e3"}, "window"},
		{"missing method", "data.csv", []byte("1"), map[string]string{"lags": "3", "window": "12"}, "method"},
		{"missing file", "", nil, validFields(), "file"},
		{"empty file", "data.csv", nil, validFields(), "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockGatewayService{}
			body, ct := multipartBody(t, tt.filename, tt.content, tt.fields)

			rec := serve(t, svc, 1<<20, body, ct)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			var out map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &out)
			if out["field"] != tt.wantField {
				t.Fatalf("field = %q, want %q (body %s)", out["field"], tt.wantField, rec.Body.String())
			}
			if len(svc.calls) != 0 {
				t.Fatalf("runner must not be contacted, got %d calls", len(svc.calls))
			}
		})
	}
}

func TestSubmitJobRejectsNonMultipart(t *testing.T) {
	svc := &mockGatewayService{}
	rec := serve(t, svc, 1<<20, strings.NewReader(`{"method":"arima"}`), "application/json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(svc.calls) != 0 {
		t.Fatal("runner must not be contacted")
	}
}

func TestSubmitJobTooLarge(t *testing.T) {
	svc := &mockGatewayService{}
	body, ct := multipartBody(t, "big.csv", bytes.Repeat([]byte("a"), 4096), validFields())

	rec := serve(t, svc, 512, body, ct)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(svc.calls) != 0 {
		t.Fatal("runner must not be contacted")
	}
}

func TestSubmitJobErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantHeader string
	}{
		{"unreachable", &domain.TransportError{Reason: "unreachable", Err: errors.New("dial tcp: connection refused")}, http.StatusBadGateway, "transport"},
		{"timeout", &domain.TransportError{Reason: "timeout", Timeout: true}, http.StatusGatewayTimeout, "transport"},
		{"payload read", &domain.PayloadReadError{Filename: "data.csv", Err: io.ErrUnexpectedEOF}, http.StatusInternalServerError, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockGatewayService{err: tt.err}
			body, ct := multipartBody(t, "data.csv", []byte("1"), validFields())

			rec := serve(t, svc, 1<<20, body, ct)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get(GatewayErrorHeader); got != tt.wantHeader {
				t.Fatalf("%s = %q, want %q", GatewayErrorHeader, got, tt.wantHeader)
			}
			if strings.Contains(rec.Body.String(), "dial tcp") {
				t.Fatal("transport details must not leak to the caller")
			}
		})
	}
}

func TestHealthController(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/healthz", nil)

	NewHealthController().Handle(ctx)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}
