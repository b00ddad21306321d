// Package app wires config into the services shared by the long-running
// server and the serverless entrypoints.
package app

import (
	"fmt"
	"time"

	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmehdipour/lead-intake/internal/db"
	"github.com/jmehdipour/lead-intake/internal/intake"
	"github.com/jmehdipour/lead-intake/internal/mailer"
	"github.com/jmehdipour/lead-intake/internal/ratelimit"
	"github.com/jmehdipour/lead-intake/internal/repository"
	"github.com/jmehdipour/lead-intake/internal/scrape"
	"github.com/jmehdipour/lead-intake/internal/turnstile"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewLimiter picks the contact limiter backend. rdb may be nil for memory.
func NewLimiter(c config.RateLimitConfig, rdb *redis.Client) (ratelimit.Limiter, error) {
	switch c.Backend {
	case "", BackendMemory:
		return ratelimit.NewMemory(c.Max, c.Window), nil
	case BackendRedis:
		if rdb == nil {
			return nil, ratelimit.ErrNoRedis
		}
		return ratelimit.NewRedis(rdb, c.KeyPrefix, c.Max, c.Window), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", c.Backend)
	}
}

// NewScrapeLimiter shares the contact backend but keeps its own keys and budget.
func NewScrapeLimiter(c config.Config, rdb *redis.Client) (ratelimit.Limiter, error) {
	if c.Scrape.RateMax <= 0 {
		return nil, nil
	}
	return NewLimiter(config.RateLimitConfig{
		Backend:   c.RateLimit.Backend,
		Max:       c.Scrape.RateMax,
		Window:    c.Scrape.RateWindow,
		KeyPrefix: "rl:scrape:",
	}, rdb)
}

func NewDispatcher(cfg config.Config, log *zap.Logger) *mailer.Dispatcher {
	provider := mailer.NewProvider(cfg.Contact.ConnectionString, mailer.ACSOptions{
		APIVersion:   cfg.ACS.APIVersion,
		Timeout:      cfg.ACS.Timeout,
		PollInterval: cfg.ACS.PollInterval,
	})
	breaker := mailer.NewBreaker(cfg.ACS.Breaker.FailThreshold, time.Duration(cfg.ACS.Breaker.OpenForMs)*time.Millisecond)
	return mailer.NewDispatcher(provider, breaker, log)
}

// NewIntake builds the contact pipeline. rec may be nil.
func NewIntake(cfg config.Config, limiter ratelimit.Limiter, rec intake.Recorder, log *zap.Logger) *intake.Service {
	d := intake.Deps{
		Limiter:  limiter,
		Verifier: turnstile.NewVerifier(cfg.Turnstile.SecretKey, cfg.Turnstile.VerifyURL, cfg.Turnstile.Timeout, log),
		Sender:   NewDispatcher(cfg, log),
		Env: intake.Env{
			ToEmail:          cfg.Contact.ToEmail,
			Sender:           cfg.Contact.Sender,
			ConnectionString: cfg.Contact.ConnectionString,
			SubjectPrefix:    cfg.Contact.SubjectPrefix,
		},
		Recorder: rec,
		Log:      log,
	}
	return intake.New(d)
}

func NewScraper(c config.ScrapeConfig) *scrape.Fetcher {
	var opts []scrape.Option
	if c.AllowPrivate {
		opts = append(opts, scrape.AllowPrivateNetworks())
	}
	return scrape.NewFetcher(c.Timeout, c.MaxBytes, c.UserAgent, opts...)
}

// OpenRecorder connects the MySQL lead archive. Without a DSN it returns a
// nil recorder and a nil db.
func OpenRecorder(cfg config.Config) (intake.Recorder, *sqlx.DB, error) {
	if cfg.MySQL.DSN == "" {
		return nil, nil, nil
	}
	mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connect: %w", err)
	}
	rec := repository.NewLeadRecorder(
		mysqlDB,
		repository.NewLeadsRepository(mysqlDB),
		repository.NewOutboxRepository(mysqlDB),
		cfg.Kafka.Topic,
	)
	return rec, mysqlDB, nil
}
