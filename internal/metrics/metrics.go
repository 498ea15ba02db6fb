package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "jobgate"

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of job submissions, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	RunnerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runner_requests_total",
			Help:      "Total number of forwards to the job runner, labeled by status class or transport failure.",
		},
		[]string{"result"},
	)

	RunnerRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runner_request_duration_seconds",
			Help:      "Latency of forwards to the job runner (seconds).",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"result"},
	)

	UploadSizeBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of accepted job data files (bytes).",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Submission rate limit checks by decision (admitted, rejected, error).",
		},
		[]string{"decision"},
	)
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		RunnerRequestsTotal,
		RunnerRequestDurationSeconds,
		UploadSizeBytes,
		RateLimitDecisionsTotal,
	)
}

// StatusClass buckets an HTTP status into "2xx".."5xx".
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
