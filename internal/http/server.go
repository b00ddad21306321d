package http

import (
	"context"
	"net/http"

	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmehdipour/lead-intake/internal/http/middleware"
	"github.com/jmehdipour/lead-intake/internal/intake"
	"github.com/jmehdipour/lead-intake/internal/metrics"
	"github.com/jmehdipour/lead-intake/internal/ratelimit"
	"github.com/jmehdipour/lead-intake/internal/repository"
	"github.com/jmehdipour/lead-intake/internal/scrape"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the collaborators behind the routes. Leads and ScrapeLimiter are
// optional.
type Deps struct {
	Intake        *intake.Service
	Scraper       *scrape.Fetcher
	ScrapeLimiter ratelimit.Limiter
	Leads         repository.CHLeadsRepository
	Log           *zap.Logger
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	bodyLimit, err := bytes.Parse(cfg.HTTP.BodyLimit)
	if err != nil || bodyLimit <= 0 {
		bodyLimit = intake.DefaultBodyLimit
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// contact intake (all methods; the service owns CORS and 405)
	e.Any("/api/contact", contactHandler(d.Intake, bodyLimit))

	// article scraping
	if d.Scraper != nil {
		api := e.Group("/api",
			echoMid.CORSWithConfig(echoMid.CORSConfig{
				AllowOrigins: cfg.HTTP.AllowedOrigins,
				AllowMethods: []string{http.MethodGet, http.MethodOptions},
			}),
			middleware.RateLimitMiddleware(middleware.RateLimitConfig{
				Limiter:        d.ScrapeLimiter,
				RetryAfterHint: true,
			}),
		)
		api.GET("/article-image", echo.WrapHandler(d.Scraper.ImageHandler()))
		api.GET("/article-content", echo.WrapHandler(d.Scraper.ContentHandler()))
	}

	// admin reports; not mounted without a key
	if cfg.Admin.APIKey != "" && d.Leads != nil {
		admin := e.Group("/v1/admin", middleware.AdminKeyMiddleware(cfg.Admin.APIKey))
		admin.GET("/leads", listLeadsHandler(d.Leads))
	}

	return &Server{e: e, log: d.Log}
}

func echoLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
