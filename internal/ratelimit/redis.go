package ratelimit

import (
	"context"
	"fmt"

	"github.com/pilab-dev/talent-auth/domain"
	"github.com/redis/go-redis/v9"
)

// INCR and the first-hit expiry run as one script so a counter can never be
// left without a TTL.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Only decrement a live, positive counter. A refund arriving after the window
// expired must not recreate the key.
var refundScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v and tonumber(v) > 0 then
  return redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisLimiter shares counters across instances through Redis.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// NewRedisLimiter creates a limiter storing counters under prefix.
func NewRedisLimiter(client redis.UniversalClient, prefix string, cfg Config) *RedisLimiter {
	return &RedisLimiter{redis: client, prefix: prefix, config: cfg}
}

func (l *RedisLimiter) key(k string) string {
	return l.prefix + "auth_attempts:" + k
}

func (l *RedisLimiter) Hit(ctx context.Context, key string) (int64, error) {
	count, err := hitScript.Run(ctx, l.redis, []string{l.key(key)}, l.config.Window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count > int64(l.config.MaxAttempts) {
		return count, domain.ErrRateLimited
	}
	return count, nil
}

func (l *RedisLimiter) Refund(ctx context.Context, key string) error {
	if err := refundScript.Run(ctx, l.redis, []string{l.key(key)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

var _ Limiter = (*RedisLimiter)(nil)
