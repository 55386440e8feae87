package middleware

import (
	"fmt"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/core/domain"
)

// RBAC admits callers whose role is one of roles. The role comes from the
// identity loaded by CurrentIdentity when present, else from the token.
func RBAC(roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := callerRole(c)
			if !slices.Contains(roles, role) {
				return fmt.Errorf("%w: requires role %v", domain.ErrForbidden, roles)
			}
			return next(c)
		}
	}
}

func callerRole(c echo.Context) domain.Role {
	if id, ok := c.Get("identity").(*domain.Identity); ok && id != nil {
		return id.Role
	}
	raw, _ := c.Get("role").(string)
	return domain.Role(raw)
}
