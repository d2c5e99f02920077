package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/buytime/backend/docs"
	"github.com/buytime/backend/internal/api/handler"
	"github.com/buytime/backend/internal/api/middleware"
	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
	"github.com/buytime/backend/internal/infrastructure/http/handlers"
)

const metricsSubsystem = "buytime"

// webhookBodyLimit caps a webhook delivery. Larger bodies get 413.
const webhookBodyLimit = "1M"

// Deps carries everything the router wires into handlers.
type Deps struct {
	Ledger      ports.LedgerService
	Preferences ports.PreferencesService
	Profile     ports.ProfileService
	Webhooks    ports.WebhookService

	// Auth guards every /api route.
	Auth echo.MiddlewareFunc
	// Health maps dependency names to readiness checks; nil entries are skipped.
	Health map[string]handlers.Pinger

	AllowedOrigins []string
	// RateLimitRPS is the per-identity request rate on /api; 0 disables it.
	RateLimitRPS float64

	// Registerer receives the HTTP metrics; nil selects the default registry.
	Registerer prometheus.Registerer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: d.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	registerer := d.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  metricsSubsystem,
		Registerer: registerer,
	}))

	// --- Operational endpoints (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Health)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Identity provider webhooks (authenticated by signature) ---
	webhookHandler := handler.NewWebhookHandler(d.Webhooks)
	e.POST("/webhooks/clerk", webhookHandler.Clerk,
		echomiddleware.BodyLimit(webhookBodyLimit),
		middleware.RequireHeaders(domain.ErrMissingWebhookHeaders,
			handler.HeaderSvixID, handler.HeaderSvixTimestamp, handler.HeaderSvixSignature))

	// --- Authenticated API ---
	apiGroup := e.Group("/api", d.Auth)
	if d.RateLimitRPS > 0 {
		apiGroup.Use(rateLimiter(d.RateLimitRPS))
	}

	balanceHandler := handler.NewBalanceHandler(d.Ledger)
	apiGroup.GET("/balance", balanceHandler.Get)
	apiGroup.PATCH("/balance", balanceHandler.Set)
	apiGroup.POST("/balance/sessions", balanceHandler.RecordSession)

	preferencesHandler := handler.NewPreferencesHandler(d.Preferences)
	apiGroup.GET("/preferences", preferencesHandler.Get)
	apiGroup.PATCH("/preferences", preferencesHandler.Update)

	userHandler := handler.NewUserHandler(d.Profile)
	apiGroup.GET("/users/me", userHandler.Me)
	apiGroup.PATCH("/users/me", userHandler.Update)
	apiGroup.DELETE("/users/me", userHandler.Delete)

	return e
}

// requestLogger writes one zerolog entry per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= http.StatusInternalServerError {
				evt = log.Error()
			}
			if v.Error != nil {
				evt = evt.Str("error", v.Error.Error())
			}
			externalID, _ := c.Get(handler.ContextKeyExternalID).(string)
			evt.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("external_id", externalID).
				Msg("request")
			return nil
		},
	})
}

// rateLimiter limits each authenticated identity to rps requests per second,
// falling back to the client IP.
func rateLimiter(rps float64) echo.MiddlewareFunc {
	burst := int(rps * 2)
	if burst < 1 {
		burst = 1
	}
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if id, _ := c.Get(handler.ContextKeyExternalID).(string); id != "" {
				return id, nil
			}
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}
