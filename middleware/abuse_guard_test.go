package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/talent-auth/domain"
	"github.com/pilab-dev/talent-auth/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	hitErr  error
	hits    int
	refunds int
}

func (s *stubLimiter) Hit(context.Context, string) (int64, error) {
	s.hits++
	return int64(s.hits), s.hitErr
}

func (s *stubLimiter) Refund(context.Context, string) error {
	s.refunds++
	return nil
}

func newGuardedEcho(t *testing.T, limiter ratelimit.Limiter, handler echo.HandlerFunc) *echo.Echo {
	t.Helper()
	extractor, err := NewIPExtractor(nil)
	require.NoError(t, err)

	e := echo.New()
	e.IPExtractor = extractor
	e.POST("/auth/:kind/login", handler, AbuseGuard(limiter))
	return e
}

func serveGuarded(t *testing.T, limiter ratelimit.Limiter, status int) *httptest.ResponseRecorder {
	t.Helper()
	e := newGuardedEcho(t, limiter, func(c echo.Context) error {
		return c.NoContent(status)
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/candidate/login", nil))
	return rec
}

func TestAbuseGuard_RefundsAllButClientFailures(t *testing.T) {
	for status, counted := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusCreated:             false,
		http.StatusUnauthorized:        true,
		http.StatusNotFound:            true,
		http.StatusConflict:            true,
		http.StatusInternalServerError: false,
	} {
		limiter := &stubLimiter{}
		rec := serveGuarded(t, limiter, status)
		assert.Equal(t, status, rec.Code)
		assert.Equal(t, 1, limiter.hits, "status %d", status)
		if counted {
			assert.Zero(t, limiter.refunds, "status %d", status)
		} else {
			assert.Equal(t, 1, limiter.refunds, "status %d", status)
		}
	}
}

func TestAbuseGuard_HTTPErrorCounts(t *testing.T) {
	limiter := &stubLimiter{}
	e := newGuardedEcho(t, limiter, func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest)
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/candidate/login", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, limiter.refunds)
}

func TestAbuseGuard_Throttles(t *testing.T) {
	limiter := &stubLimiter{hitErr: domain.ErrRateLimited}
	called := false
	e := newGuardedEcho(t, limiter, func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/candidate/login", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RateLimited")
	assert.False(t, called)
	assert.Zero(t, limiter.refunds)
}

func TestAbuseGuard_FailsOpenWhenBackendDown(t *testing.T) {
	limiter := &stubLimiter{hitErr: errors.Join(ratelimit.ErrUnavailable, errors.New("dial tcp"))}
	rec := serveGuarded(t, limiter, http.StatusOK)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, limiter.refunds)
}

func TestAbuseGuard_SixthAttemptWithMemoryLimiter(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{MaxAttempts: 5, Window: time.Minute})
	t.Cleanup(limiter.Close)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, serveGuarded(t, limiter, http.StatusUnauthorized).Code)
	}
	// Correct credentials no longer help.
	assert.Equal(t, http.StatusTooManyRequests, serveGuarded(t, limiter, http.StatusOK).Code)
}

func TestAbuseGuard_IgnoresSpoofedForwardingHeaders(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{MaxAttempts: 5, Window: time.Minute})
	t.Cleanup(limiter.Close)
	e := newGuardedEcho(t, limiter, func(c echo.Context) error {
		return c.NoContent(http.StatusUnauthorized)
	})

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/candidate/login", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, map[int]int{http.StatusUnauthorized: 5, http.StatusTooManyRequests: 15}, codes)
}

func TestAbuseGuard_ConcurrentBurstIsBounded(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{MaxAttempts: 5, Window: time.Minute})
	t.Cleanup(limiter.Close)

	// Hold every admitted request until all 40 are in flight.
	release := make(chan struct{})
	e := newGuardedEcho(t, limiter, func(c echo.Context) error {
		<-release
		return c.NoContent(http.StatusUnauthorized)
	})

	var (
		mu    sync.Mutex
		codes = map[int]int{}
		wg    sync.WaitGroup
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/candidate/login", nil))
			mu.Lock()
			codes[rec.Code]++
			mu.Unlock()
		}()
	}
	// Throttled requests return without reaching the handler.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return codes[http.StatusTooManyRequests] == 35
	}, 5*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, map[int]int{http.StatusUnauthorized: 5, http.StatusTooManyRequests: 35}, codes)
}
