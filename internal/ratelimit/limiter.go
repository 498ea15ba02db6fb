// Package ratelimit throttles job submissions per client address with a
// Redis-backed GCRA (generic cell rate algorithm).
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// KeyPrefix namespaces every key the limiter writes to Redis.
const KeyPrefix = "jobgate:rl:submit:"

// Policy is the submission allowance for one client address.
type Policy struct {
	PerMinute int
	Burst     int
}

func (p Policy) Enabled() bool {
	return p.PerMinute > 0 && p.Burst > 0
}

// interval is the spacing between submissions at the sustained rate.
func (p Policy) interval() time.Duration {
	d := time.Minute / time.Duration(p.PerMinute)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects one submission from client.
type Limiter interface {
	Admit(ctx context.Context, client string) (Decision, error)
}

// SubmissionLimiter stores one theoretical arrival time per client. A
// submission is admitted while that time is less than Burst intervals ahead
// of now.
type SubmissionLimiter struct {
	rdb    *redis.Client
	policy Policy
	now    func() time.Time
}

func NewSubmissionLimiter(rdb *redis.Client, policy Policy) *SubmissionLimiter {
	return &SubmissionLimiter{rdb: rdb, policy: policy, now: time.Now}
}

// ARGV: now_ms, interval_ms, window_ms (interval * burst).
// Returns {allowed, remaining, retry_after_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

local tat = tonumber(redis.call("GET", KEYS[1]))
if not tat or tat < now then
  tat = now
end

local next_tat = tat + interval
local allow_at = next_tat - window
if now < allow_at then
  return {0, 0, allow_at - now}
end

redis.call("SET", KEYS[1], next_tat, "PX", next_tat - now)
return {1, math.floor((window - (next_tat - now)) / interval), 0}
`)

func (l *SubmissionLimiter) Admit(ctx context.Context, client string) (Decision, error) {
	if l == nil || l.rdb == nil || !l.policy.Enabled() {
		return Decision{Allowed: true}, nil
	}
	interval := l.policy.interval().Milliseconds()
	window := interval * int64(l.policy.Burst)

	res, err := gcraScript.Run(ctx, l.rdb, []string{clientKey(client)}, l.now().UnixMilli(), interval, window).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Decision{}, fmt.Errorf("unexpected rate limit reply: %v", res)
	}
	allowed, _ := vals[0].(int64)
	remaining, _ := vals[1].(int64)
	retryMS, _ := vals[2].(int64)

	if allowed == 1 {
		return Decision{Allowed: true, Remaining: int(remaining)}, nil
	}
	return Decision{RetryAfter: time.Duration(retryMS) * time.Millisecond}, nil
}

// clientKey hashes the address so client IPs never appear in Redis keys.
func clientKey(client string) string {
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	sum := sha256.Sum256([]byte(client))
	return KeyPrefix + hex.EncodeToString(sum[:16])
}
