package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jmehdipour/lead-intake/internal/intake"
	"github.com/jmehdipour/lead-intake/internal/ratelimit"
	echo "github.com/labstack/echo/v4"
)

// RateLimitConfig config for the per-IP fixed-window limiter.
type RateLimitConfig struct {
	Limiter        ratelimit.Limiter
	RetryAfterHint bool // set Retry-After header when limited
	Now            func() time.Time
}

// RateLimitMiddleware limits requests per client IP. Limiter errors let the
// request through.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Limiter == nil {
				return next(c)
			}

			r := c.Request()
			ip := intake.ClientIP(r.Header, r.RemoteAddr)
			dec, err := cfg.Limiter.Check(r.Context(), ip)
			if err != nil {
				c.Logger().Warnf("rate limit check failed: %v", err)
				return next(c)
			}

			if !dec.Allowed {
				if cfg.RetryAfterHint {
					if remain := dec.ResetAt.Sub(cfg.Now()); remain > 0 {
						c.Response().Header().Set("Retry-After", strconv.Itoa(int(remain.Round(time.Second)/time.Second)))
					}
				}
				return c.JSON(http.StatusTooManyRequests, map[string]any{"ok": false, "error": intake.CodeRateLimited})
			}
			return next(c)
		}
	}
}
