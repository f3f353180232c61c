// Package ratelimit counts authentication attempts per caller in fixed
// windows.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures. Callers decide whether to fail open.
var ErrUnavailable = errors.New("rate limiter backend unavailable")

// Config holds the window parameters shared by every backend.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter reserves an attempt for a key before the attempt is evaluated.
//
// Hit increments the key's counter atomically and returns the new count. It
// returns domain.ErrRateLimited when the count exceeds MaxAttempts. The window
// starts at the first hit and is not extended by later ones. Refund gives back
// one reserved attempt, so attempts that succeed end up not counting; it never
// drops the counter below zero.
type Limiter interface {
	Hit(ctx context.Context, key string) (int64, error)
	Refund(ctx context.Context, key string) error
}
