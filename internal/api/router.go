package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/aicompanion/companion/internal/api/handler"
	"github.com/aicompanion/companion/internal/api/middleware"
	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
	infrahttp "github.com/aicompanion/companion/internal/infrastructure/http"
	"github.com/aicompanion/companion/internal/infrastructure/http/handlers"
)

// Services groups the core services the HTTP layer exposes.
type Services struct {
	Auth       ports.AuthService
	Chat       ports.ChatService
	Onboarding ports.OnboardingService
}

// Options tunes the router. The zero value is usable.
type Options struct {
	// AuthRateLimitRPM caps login and registration attempts per client IP.
	// Zero disables the limit.
	AuthRateLimitRPM int
	// HealthChecks are run by GET /health/ready.
	HealthChecks []handlers.Check
	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(svc Services, opts Options, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "companion",
		Registerer: opts.Registerer,
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(svc.Auth)
	profileHandler := handler.NewProfileHandler(svc.Auth, svc.Onboarding)
	chatHandler := handler.NewChatHandler(svc.Chat)
	planHandler := handler.NewPlanHandler()

	authRequired := middleware.Auth(svc.Auth)
	currentIdentity := middleware.CurrentIdentity(svc.Auth)
	limiter := middleware.NewRateLimiter(opts.AuthRateLimitRPM)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register, limiter.Middleware())
	auth.POST("/login", authHandler.Login, limiter.Middleware())
	auth.POST("/logout", authHandler.Logout, authRequired)

	// --- Profile and onboarding ---
	me := e.Group("/v1/me", authRequired, currentIdentity)
	me.GET("", profileHandler.Me)
	me.PATCH("", profileHandler.Update)
	me.PUT("/role", profileHandler.SetRole)
	me.POST("/onboarding/individual", profileHandler.OnboardIndividual, middleware.RBAC(domain.RoleIndividual))
	me.POST("/onboarding/organization", profileHandler.OnboardOrganization, middleware.RBAC(domain.RoleOrganization))

	// --- Chat (anonymous or signed in) ---
	e.GET("/v1/chat/greeting", chatHandler.Greeting)
	e.POST("/v1/chat", chatHandler.Send, middleware.OptionalAuth(svc.Auth))
	e.GET("/v1/chat/allowance", chatHandler.Allowance, middleware.OptionalAuth(svc.Auth))

	e.GET("/v1/plans", planHandler.List)

	// --- Health, metrics and docs (no auth required) ---
	infrahttp.RegisterHealth(e, opts.HealthChecks...)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
