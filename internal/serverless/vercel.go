package serverless

import (
	"net/http"
	"os"
	"sync"

	"github.com/jmehdipour/lead-intake/internal/app"
	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmehdipour/lead-intake/internal/intake"
	"github.com/jmehdipour/lead-intake/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	initOnce sync.Once
	initErr  error
	mux      http.Handler
)

// Handler is the entry point for Vercel-style Go functions. Configuration
// comes from the environment, optionally a YAML file named by LEADGW_CONFIG.
// The rate limiter lives as long as the warm instance unless the redis
// backend is configured.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		mux, initErr = build()
	})
	if initErr != nil {
		logger.Log.Error("serverless init", zap.Error(initErr))
		http.Error(w, `{"ok":false,"error":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	mux.ServeHTTP(w, r)
}

func build() (http.Handler, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("LEADGW_CONFIG"))
	if err != nil {
		return nil, err
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Encoding)

	// serverless instances do not hold Redis or MySQL pools
	cfg.RateLimit.Backend = app.BackendMemory
	limiter, err := app.NewLimiter(cfg.RateLimit, nil)
	if err != nil {
		return nil, err
	}

	svc := app.NewIntake(cfg, limiter, nil, log)
	return NewMux(svc, app.NewScraper(cfg.Scrape), intake.DefaultBodyLimit), nil
}

// Reset drops the cached handler so the next call rebuilds it.
func Reset() {
	initOnce = sync.Once{}
	initErr = nil
	mux = nil
}
