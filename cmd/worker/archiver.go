package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmehdipour/lead-intake/internal/db"
	"github.com/jmehdipour/lead-intake/internal/kafka"
	"github.com/jmehdipour/lead-intake/internal/logger"
	"github.com/jmehdipour/lead-intake/internal/metrics"
	"github.com/jmehdipour/lead-intake/internal/repository"
	"github.com/jmehdipour/lead-intake/internal/worker"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var archiverCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Copy lead events from Kafka into ClickHouse",
	RunE:  runArchiver,
}

func runArchiver(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Encoding)
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	consumer := kafka.NewConsumer(cfg.Kafka)
	defer consumer.Close()

	w := worker.NewArchiver(consumer, repository.NewCHLeadsRepository(chDB), log)
	if cfg.Archiver.BatchSize > 0 {
		w.BatchSize = cfg.Archiver.BatchSize
	}
	if cfg.Archiver.BatchWait > 0 {
		w.BatchWait = cfg.Archiver.BatchWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := cfg.Archiver.MetricsAddr; addr != "" {
		ms := newMetricsServer(prometheus.DefaultGatherer)
		go func() {
			if err := ms.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("archiver metrics server", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Shutdown(sctx)
		}()
	}

	log.Info("archiver started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.GroupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
		zap.String("metrics_addr", cfg.Archiver.MetricsAddr),
	)

	return w.Run(ctx)
}

// newMetricsServer exposes g on /metrics for the worker process.
func newMetricsServer(g prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	return e
}
