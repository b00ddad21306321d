package db

import (
	"context"
	"time"

	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects and pings the shared rate-limit store.
func NewRedisClient(c config.RedisConfig) (*redis.Client, error) {
	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: timeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}
