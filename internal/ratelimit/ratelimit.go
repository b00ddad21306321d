package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultMax    = 6
	DefaultWindow = 10 * time.Minute
)

// Decision is the outcome of a single Check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether a key (client IP) may submit again in the current window.
type Limiter interface {
	Check(ctx context.Context, key string) (Decision, error)
}
