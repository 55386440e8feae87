package http

import (
	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/infrastructure/http/handlers"
)

// RegisterHealth mounts the liveness and readiness endpoints on e.
func RegisterHealth(e *echo.Echo, checks ...handlers.Check) {
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(checks...)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
}
