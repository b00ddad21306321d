package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmehdipour/lead-intake/internal/ratelimit"
	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type brokenLimiter struct{}

func (brokenLimiter) Check(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("down")
}

func serve(mw echo.MiddlewareFunc, header map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, mw)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	mw := RateLimitMiddleware(RateLimitConfig{
		Limiter:        ratelimit.NewMemory(1, time.Minute, ratelimit.WithClock(clock)),
		RetryAfterHint: true,
		Now:            clock,
	})

	a := map[string]string{"X-Forwarded-For": "198.51.100.1"}
	b := map[string]string{"X-Forwarded-For": "198.51.100.2"}

	assert.Equal(t, http.StatusOK, serve(mw, a).Code)

	rec := serve(mw, a)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(mw, b).Code)
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(RateLimitMiddleware(RateLimitConfig{Limiter: brokenLimiter{}}), nil).Code)
	assert.Equal(t, http.StatusOK, serve(RateLimitMiddleware(RateLimitConfig{}), nil).Code)
}

func TestAdminKeyMiddleware(t *testing.T) {
	mw := AdminKeyMiddleware("k1")

	assert.Equal(t, http.StatusUnauthorized, serve(mw, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(mw, map[string]string{AdminKeyHeader: "k2"}).Code)
	assert.Equal(t, http.StatusOK, serve(mw, map[string]string{AdminKeyHeader: " k1 "}).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(AdminKeyMiddleware(""), map[string]string{AdminKeyHeader: "x"}).Code)
}
