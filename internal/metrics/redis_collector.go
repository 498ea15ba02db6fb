package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// redisCollector reports whether the rate limiter backend is reachable and how
// many clients currently hold a submission allowance there.
type redisCollector struct {
	rdb       *redis.Client
	logger    *slog.Logger
	keyPrefix string

	upDesc      *prometheus.Desc
	clientsDesc *prometheus.Desc
}

func newRedisCollector(rdb *redis.Client, keyPrefix string, logger *slog.Logger) *redisCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisCollector{
		rdb:       rdb,
		logger:    logger,
		keyPrefix: keyPrefix,
		upDesc: prometheus.NewDesc(
			"jobgate_ratelimit_redis_up",
			"Whether the rate limiter Redis answered PING (1) or not (0).",
			nil,
			nil,
		),
		clientsDesc: prometheus.NewDesc(
			"jobgate_ratelimit_tracked_clients",
			"Clients with a live submission allowance in the rate limiter.",
			nil,
			nil,
		),
	}
}

func (c *redisCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.upDesc
	ch <- c.clientsDesc
}

func (c *redisCollector) Collect(ch chan<- prometheus.Metric) {
	if c.rdb == nil {
		return
	}

	// Keep Redis reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.logger.Warn("prometheus redis collector ping failed", "err", err)
		emitGauge(ch, c.upDesc, 0)
		return
	}
	emitGauge(ch, c.upDesc, 1)

	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.keyPrefix+"*", 500).Result()
		if err != nil {
			c.logger.Warn("prometheus redis collector scan failed", "err", err)
			return
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	emitGauge(ch, c.clientsDesc, float64(count))
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerRedisCollectorOnce sync.Once

func RegisterRedisCollector(rdb *redis.Client, keyPrefix string, logger *slog.Logger) {
	registerRedisCollectorOnce.Do(func() {
		prometheus.MustRegister(newRedisCollector(rdb, keyPrefix, logger))
	})
}
