package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNoRedis = errors.New("ratelimit: redis client is nil")

// fixedWindow mirrors Memory.Check: a missing key starts a window with
// count=1, a full window denies without incrementing.
// Returns {allowed, count, pttl}.
var fixedWindow = redis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local cur = redis.call("GET", KEYS[1])
if not cur then
  redis.call("SET", KEYS[1], 1, "PX", window)
  return {1, 1, window}
end
cur = tonumber(cur)
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], window)
  ttl = window
end
if cur >= max then
  return {0, cur, ttl}
end
cur = redis.call("INCR", KEYS[1])
return {1, cur, ttl}
`)

// Redis is a fixed-window limiter shared by every instance pointing at the same Redis.
type Redis struct {
	client    redis.Scripter
	keyPrefix string
	max       int
	window    time.Duration
	now       func() time.Time
}

func NewRedis(client redis.Scripter, keyPrefix string, max int, window time.Duration) *Redis {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if keyPrefix == "" {
		keyPrefix = "rl:contact:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix, max: max, window: window, now: time.Now}
}

var _ Limiter = (*Redis)(nil)

func (r *Redis) Check(ctx context.Context, key string) (Decision, error) {
	if r.client == nil {
		return Decision{}, ErrNoRedis
	}

	res, err := fixedWindow.Run(ctx, r.client, []string{r.keyPrefix + key}, r.max, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit script: unexpected reply %v", res)
	}

	return decisionFromReply(r.now(), r.max, res[0], res[1], res[2]), nil
}

func decisionFromReply(now time.Time, max int, allowed, count, pttl int64) Decision {
	d := Decision{
		Allowed: allowed == 1,
		ResetAt: now.Add(time.Duration(pttl) * time.Millisecond),
	}
	if d.Allowed {
		d.Remaining = max - int(count)
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	return d
}
