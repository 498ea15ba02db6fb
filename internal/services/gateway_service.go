package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/osvaldoandrade/jobgate/internal/metrics"
	"github.com/osvaldoandrade/jobgate/internal/runner"
	"github.com/osvaldoandrade/jobgate/pkg/domain"
)

type GatewayService interface {
	Submit(ctx context.Context, sub domain.JobSubmission) (domain.RunnerResponse, error)
}

type gatewayService struct {
	forwarder runner.Forwarder
	logger    *slog.Logger
}

func NewGatewayService(forwarder runner.Forwarder, logger *slog.Logger) GatewayService {
	if logger == nil {
		logger = slog.Default()
	}
	return &gatewayService{forwarder: forwarder, logger: logger}
}

// Submit forwards sub exactly once. The runner's status is not judged here;
// transport failures come back already classified by the runner client.
func (s *gatewayService) Submit(ctx context.Context, sub domain.JobSubmission) (domain.RunnerResponse, error) {
	metrics.UploadSizeBytes.Observe(float64(len(sub.File.Content)))

	resp, err := s.forwarder.Forward(ctx, sub)
	if err != nil {
		var terr *domain.TransportError
		if errors.As(err, &terr) {
			metrics.SubmissionsTotal.WithLabelValues("transport_error").Inc()
			s.logger.Error("runner unreachable", "reason", terr.Reason, "timeout", terr.Timeout, "err", err)
		} else {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
			s.logger.Error("forward failed", "err", err)
		}
		return domain.RunnerResponse{}, err
	}

	metrics.SubmissionsTotal.WithLabelValues("forwarded").Inc()
	s.logger.Info("job forwarded",
		"method", sub.Method,
		"lags", sub.Lags,
		"window", sub.Window,
		"filename", sub.File.Name,
		"bytes", len(sub.File.Content),
		"runner_status", resp.StatusCode,
	)
	return resp, nil
}
