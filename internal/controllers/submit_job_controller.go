package controllers

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/jobgate/internal/metrics"
	"github.com/osvaldoandrade/jobgate/internal/middleware"
	"github.com/osvaldoandrade/jobgate/internal/services"
	"github.com/osvaldoandrade/jobgate/internal/submission"
	"github.com/osvaldoandrade/jobgate/pkg/domain"

	"github.com/gin-gonic/gin"
)

// GatewayErrorHeader marks responses produced by the gateway itself rather
// than relayed from the runner.
const GatewayErrorHeader = "X-Gateway-Error"

type submitJobController struct {
	svc            services.GatewayService
	maxUploadBytes int64
}

func NewSubmitJobController(svc services.GatewayService, maxUploadBytes int64) *submitJobController {
	return &submitJobController{svc: svc, maxUploadBytes: maxUploadBytes}
}

func (h *submitJobController) Handle(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.SubmissionsTotal.WithLabelValues("too_large").Inc()
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds limit", "limitBytes": tooLarge.Limit})
			return
		}
		h.fail(c, &domain.ValidationError{Field: domain.FieldFile, Reason: "multipart form required"})
		return
	}
	defer func() { _ = form.RemoveAll() }()

	sub, err := submission.FromForm(form)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.svc.Submit(c.Request.Context(), sub)
	if err != nil {
		h.fail(c, err)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

func (h *submitJobController) fail(c *gin.Context, err error) {
	logger := middleware.GetLogger(c)

	var (
		verr *domain.ValidationError
		perr *domain.PayloadReadError
		terr *domain.TransportError
	)
	switch {
	case errors.As(err, &verr):
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		logger.Info("submission rejected", "field", verr.Field, "reason", verr.Reason)
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.As(err, &perr):
		metrics.SubmissionsTotal.WithLabelValues("payload_read_error").Inc()
		logger.Error("upload read failed", "filename", perr.Filename, "err", perr.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read uploaded file"})
	case errors.As(err, &terr):
		status := http.StatusBadGateway
		if terr.Timeout {
			status = http.StatusGatewayTimeout
		}
		// err carries the runner URL; only the reason goes back to the caller.
		c.Header(GatewayErrorHeader, "transport")
		c.JSON(status, gin.H{"error": "job runner " + terr.Reason})
	default:
		logger.Error("submit failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
