package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pilab-dev/talent-auth/domain"
)

// MemoryLimiter keeps counters in process. Use it for single-instance
// deployments and development.
type MemoryLimiter struct {
	config Config

	mu       sync.Mutex
	counters *ttlcache.Cache[string, int64]
}

// NewMemoryLimiter creates the limiter and starts its expiry loop. Call Close
// to stop it.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cache := ttlcache.New[string, int64](
		ttlcache.WithTTL[string, int64](cfg.Window),
		ttlcache.WithDisableTouchOnHit[string, int64](),
	)
	go cache.Start()
	return &MemoryLimiter{config: cfg, counters: cache}
}

func (l *MemoryLimiter) Hit(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := int64(1)
	ttl := l.config.Window
	if item := l.counters.Get(key); item != nil {
		if remaining := time.Until(item.ExpiresAt()); remaining > 0 {
			count = item.Value() + 1
			ttl = remaining
		}
	}
	l.counters.Set(key, count, ttl)

	if count > int64(l.config.MaxAttempts) {
		return count, domain.ErrRateLimited
	}
	return count, nil
}

func (l *MemoryLimiter) Refund(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := l.counters.Get(key)
	if item == nil || item.Value() <= 0 {
		return nil
	}
	remaining := time.Until(item.ExpiresAt())
	if remaining <= 0 {
		return nil
	}
	l.counters.Set(key, item.Value()-1, remaining)
	return nil
}

// Close stops the expiry loop.
func (l *MemoryLimiter) Close() {
	l.counters.Stop()
}

var _ Limiter = (*MemoryLimiter)(nil)
