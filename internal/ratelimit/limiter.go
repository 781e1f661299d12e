// Package ratelimit implements a Redis fixed-window request limiter.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

const keyPrefix = "senseirm:ratelimit:"

// Result describes one counted request.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// New returns a limiter allowing max requests per window.
func New(client *redis.Client, max int, window time.Duration) *Limiter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Limiter{client: client, max: max, window: window}
}

// hitLua increments the window counter and sets its expiry in one step. A key
// left without a TTL is given one, so a counter can never outlive its window.
//
//	returns {count, pttl_ms}
var hitLua = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Allow counts a request for key. The window starts with the first request.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	reply, err := hitLua.Run(ctx, l.client, []string{keyPrefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit hit: %w", err)
	}
	if len(reply) != 2 {
		return Result{}, fmt.Errorf("rate limit hit: unexpected reply %v", reply)
	}
	count, ttl := reply[0], time.Duration(reply[1])*time.Millisecond

	result := Result{Allowed: count <= int64(l.max), Limit: l.max, Remaining: l.max - int(count)}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		if ttl <= 0 {
			ttl = l.window
		}
		result.RetryAfter = ttl
	}
	return result, nil
}

// Middleware limits requests per client IP. Redis failures let the request
// through.
func Middleware(l *Limiter, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		if l == nil || l.client == nil || l.max <= 0 {
			return c.Next()
		}
		result, err := l.Allow(c.UserContext(), c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(result.RetryAfter.Round(time.Second).Seconds())))
			return apperrors.NewRateLimited("too many requests, please try again later")
		}
		return c.Next()
	}
}
