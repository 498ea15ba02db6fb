package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/osvaldoandrade/jobgate/internal/metrics"
	"github.com/osvaldoandrade/jobgate/internal/middleware"
	"github.com/osvaldoandrade/jobgate/internal/providers"
	"github.com/osvaldoandrade/jobgate/internal/ratelimit"
	"github.com/osvaldoandrade/jobgate/internal/runner"
	"github.com/osvaldoandrade/jobgate/internal/services"
	"github.com/osvaldoandrade/jobgate/internal/tracing"
	"github.com/osvaldoandrade/jobgate/pkg/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Gateway         services.GatewayService
	Runner          *runner.Client
	Logger          *slog.Logger
	Redis           *redis.Client
	RateLimiter     ratelimit.Limiter
	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithRateLimiter replaces the Redis-backed limiter
func WithRateLimiter(limiter ratelimit.Limiter) ApplicationOption {
	return func(app *Application) error {
		app.RateLimiter = limiter
		return nil
	}
}

// WithForwarder routes submissions through f instead of the HTTP runner client
func WithForwarder(f runner.Forwarder) ApplicationOption {
	return func(app *Application) error {
		app.Gateway = services.NewGatewayService(f, app.Logger)
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	tracingShutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}

	runnerClient, err := runner.NewClient(runner.Options{
		BaseURL:          cfg.RunnerServiceURL,
		SubmitPath:       cfg.RunnerSubmitPath,
		Timeout:          time.Duration(cfg.RunnerTimeoutSeconds) * time.Second,
		MaxResponseBytes: cfg.MaxRunnerResponseBytes,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	app := &Application{
		Config:          cfg,
		Gateway:         services.NewGatewayService(runnerClient, logger),
		Runner:          runnerClient,
		Logger:          logger,
		TracingShutdown: tracingShutdown,
	}

	policy := ratelimit.Policy{PerMinute: cfg.RateLimit.Submit.RequestsPerMinute, Burst: cfg.RateLimit.Submit.BurstSize}
	if policy.Enabled() && cfg.RedisAddr != "" {
		app.Redis = providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
		app.RateLimiter = ratelimit.NewSubmissionLimiter(app.Redis, policy)
		metrics.RegisterRedisCollector(app.Redis, ratelimit.KeyPrefix, logger)
	}

	engine := gin.New()
	// nil trusts no proxy, so ClientIP is the TCP peer.
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware(cfg.Tracing.ServiceName),
	)
	if len(cfg.CORSAllowedOrigins) > 0 {
		engine.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	}
	app.Engine = engine

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	logger.Info("application initialised", "runner", runnerClient.Target(), "rateLimit", app.RateLimiter != nil)
	return app, nil
}

// Close releases the Redis connection pool and flushes traces.
func (a *Application) Close(ctx context.Context) error {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.TracingShutdown != nil {
		return a.TracingShutdown(ctx)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", "jobgate", "env", cfg.Env)
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-Id", "traceparent", "tracestate"},
		ExposeHeaders: []string{"X-Request-Id", "X-Gateway-Error", "Retry-After", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	return c
}
