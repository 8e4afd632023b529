package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed-window counter: INCR the scoped key, arm its expiry on first use.
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RateLimiter implements distributed fixed-window rate limiting on Redis.
// A nil limiter, or one whose limit is zero, allows everything.
type RateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRateLimiter builds a limiter allowing `limit` calls per scope+subject
// per window.
func NewRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RateLimiter {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "ledger:rate_limit"
	}
	return &RateLimiter{
		client: client,
		prefix: trimmed,
		limit:  limit,
		window: window,
	}
}

// Allow consumes one unit of the subject's budget within the scope and
// reports whether the call is still inside the limit.
func (r *RateLimiter) Allow(ctx context.Context, scope, subject string) (bool, error) {
	if r == nil || r.client == nil || r.limit <= 0 || r.window <= 0 {
		return true, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return true, nil
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
	raw, err := rateLimitScript.Run(ctx, r.client, []string{key}, r.window.Milliseconds()).Result()
	if err != nil {
		return true, err
	}
	count, ok := raw.(int64)
	if !ok {
		return true, fmt.Errorf("unexpected redis limiter response type: %T", raw)
	}
	return count <= int64(r.limit), nil
}
