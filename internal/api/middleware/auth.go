package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

// TokenParser verifies an access token. ports.AuthService satisfies it.
type TokenParser interface {
	ParseToken(ctx context.Context, token string) (*ports.TokenClaims, error)
}

// IdentityLoader fetches the current identity of an account.
type IdentityLoader interface {
	Identity(ctx context.Context, userID string) (*domain.Identity, error)
}

// Auth validates the bearer token and injects its claims into context.
func Auth(parser TokenParser) echo.MiddlewareFunc {
	return bearer(parser, true)
}

// OptionalAuth behaves like Auth when an Authorization header is present
// and lets the request through anonymously otherwise.
func OptionalAuth(parser TokenParser) echo.MiddlewareFunc {
	return bearer(parser, false)
}

func bearer(parser TokenParser, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				if !required {
					return next(c)
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := parser.ParseToken(c.Request().Context(), parts[1])
			if err != nil {
				var authErr *domain.AuthenticationError
				if errors.As(err, &authErr) {
					msg := authErr.Reason
					if msg == "" {
						msg = "invalid token"
					}
					return echo.NewHTTPError(http.StatusUnauthorized, msg)
				}
				return err
			}

			c.Set("claims", claims)
			c.Set("user_id", claims.Subject)
			c.Set("role", string(claims.Role))

			return next(c)
		}
	}
}

// CurrentIdentity loads the caller's identity and replaces the role taken
// from the token with the stored one, so role changes apply immediately.
// Anonymous requests pass through untouched.
func CurrentIdentity(loader IdentityLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get("user_id").(string)
			if userID == "" {
				return next(c)
			}

			identity, err := loader.Identity(c.Request().Context(), userID)
			if errors.Is(err, domain.ErrUserNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "account no longer exists")
			}
			if err != nil {
				return err
			}

			c.Set("identity", identity)
			c.Set("role", string(identity.Role))
			return next(c)
		}
	}
}
