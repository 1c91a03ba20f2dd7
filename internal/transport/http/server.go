// Package http provides the HTTP server of the answer service.
package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/objectstore"
	"github.com/KaanSezen1923/tolkien-rag/internal/service"
	v1 "github.com/KaanSezen1923/tolkien-rag/internal/transport/http/v1"
	"github.com/KaanSezen1923/tolkien-rag/internal/transport/ws"
)

// Options configures the server surface around the service.
type Options struct {
	JWTSecret       []byte
	RateLimitPerSec float64
	RateLimitBurst  int

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer

	// Events serves the stage stream. Nil disables it.
	Events *ws.Server

	// Artifacts is served under /artifacts in mock mode.
	Artifacts *objectstore.MemoryStore
}

// NewServer creates and configures the HTTP server.
func NewServer(svc *service.Service, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h := v1.NewHandler(svc)
	e.GET("/health", h.Health)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if opts.Artifacts != nil {
		e.GET("/artifacts/:key", artifactHandler(opts.Artifacts))
	}

	api := e.Group("/v1", JWTAuth(opts.JWTSecret))
	h.RegisterRoutes(api, RateLimit(opts.RateLimitPerSec, opts.RateLimitBurst))
	if opts.Events != nil {
		api.GET("/sessions/:session_id/events", opts.Events.HandleWebSocket)
	}

	return e
}

// RateLimit limits each authenticated user to perSec requests per second.
// A non-positive rate disables limiting.
func RateLimit(perSec float64, burst int) echo.MiddlewareFunc {
	if perSec <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSec),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id, ok := c.Get(v1.UserIDKey).(string); ok && id != "" {
				return id, nil
			}
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		},
	})
}

func artifactHandler(store *objectstore.MemoryStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, ok := store.Get(c.Param("key"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "artifact not found"})
		}
		return c.Blob(http.StatusOK, "image/png", data)
	}
}
