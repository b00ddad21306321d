package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmehdipour/lead-intake/internal/app"
	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmehdipour/lead-intake/internal/intake"
	"github.com/jmehdipour/lead-intake/internal/logger"
	"github.com/jmehdipour/lead-intake/internal/serverless"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// functionsCmd runs as an Azure Functions custom handler. The host passes
// the port in FUNCTIONS_CUSTOMHANDLER_PORT and invokes POST /<function>;
// with enableForwardingHttpRequest the original /api/... request is
// forwarded instead.
var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "Run as an Azure Functions custom handler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		defer func() { _ = log.Sync() }()

		port := cfg.Functions.Port
		if v := os.Getenv("FUNCTIONS_CUSTOMHANDLER_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				port = p
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// instance-local limiter; the host may scale out
		cfg.RateLimit.Backend = app.BackendMemory
		limiter, err := app.NewLimiter(cfg.RateLimit, nil)
		if err != nil {
			return err
		}

		svc := app.NewIntake(cfg, limiter, nil, log)

		mux := serverless.NewMux(svc, app.NewScraper(cfg.Scrape), intake.DefaultBodyLimit)
		mux.Handle("POST /"+cfg.Functions.FunctionName, serverless.AzureHandler(svc, log))

		srv := &http.Server{
			Addr:              ":" + strconv.Itoa(port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("functions handler listening", zap.Int("port", port), zap.String("function", cfg.Functions.FunctionName))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
