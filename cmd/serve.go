package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/lead-intake/internal/app"
	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmehdipour/lead-intake/internal/db"
	httpSrv "github.com/jmehdipour/lead-intake/internal/http"
	"github.com/jmehdipour/lead-intake/internal/logger"
	"github.com/jmehdipour/lead-intake/internal/ratelimit"
	"github.com/jmehdipour/lead-intake/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var redisClient *redis.Client
		if cfg.RateLimit.Backend == app.BackendRedis {
			redisClient, err = db.NewRedisClient(cfg.Redis)
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = redisClient.Close() }()
		}

		limiter, err := app.NewLimiter(cfg.RateLimit, redisClient)
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		if mem, ok := limiter.(*ratelimit.Memory); ok && cfg.RateLimit.SweepInterval > 0 {
			go mem.RunSweeper(ctx, cfg.RateLimit.SweepInterval)
		}

		scrapeLimiter, err := app.NewScrapeLimiter(cfg, redisClient)
		if err != nil {
			return fmt.Errorf("scrape rate limiter: %w", err)
		}
		if mem, ok := scrapeLimiter.(*ratelimit.Memory); ok && cfg.RateLimit.SweepInterval > 0 {
			go mem.RunSweeper(ctx, cfg.RateLimit.SweepInterval)
		}

		recorder, mysqlDB, err := app.OpenRecorder(cfg)
		if err != nil {
			return err
		}
		if mysqlDB != nil {
			defer mysqlDB.Close()
		} else {
			log.Info("mysql dsn not set, leads are not archived")
		}

		deps := httpSrv.Deps{
			Intake:        app.NewIntake(cfg, limiter, recorder, log),
			Scraper:       app.NewScraper(cfg.Scrape),
			ScrapeLimiter: scrapeLimiter,
			Log:           log,
		}

		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()
			deps.Leads = repository.NewCHLeadsRepository(chDB)
		}

		server := httpSrv.NewServer(cfg, deps)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		select {
		case <-ctx.Done():
			log.Info("signal received, shutting down")
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		return nil
	},
}
