package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

// ctxUserID returns the authenticated user injected by the Auth middleware.
func ctxUserID(c echo.Context) (string, error) {
	userID, _ := c.Get("user_id").(string)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return userID, nil
}

// ctxClaims returns the verified token claims injected by the Auth middleware.
func ctxClaims(c echo.Context) (*ports.TokenClaims, error) {
	claims, _ := c.Get("claims").(*ports.TokenClaims)
	if claims == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}

// ctxIdentity returns the identity loaded by the CurrentIdentity middleware,
// or nil when it did not run.
func ctxIdentity(c echo.Context) *domain.Identity {
	identity, _ := c.Get("identity").(*domain.Identity)
	return identity
}

// bindAndValidate decodes the body into req and runs the registered validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
