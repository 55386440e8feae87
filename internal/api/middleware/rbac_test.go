package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/core/domain"
)

func newRBACContext() echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/v1/me/onboarding/organization", nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestRBAC(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(c echo.Context)
		allowed bool
	}{
		{
			name:    "token role matches",
			setup:   func(c echo.Context) { c.Set("role", "organization") },
			allowed: true,
		},
		{
			name:  "token role differs",
			setup: func(c echo.Context) { c.Set("role", "individual") },
		},
		{
			name: "loaded identity wins over a stale token",
			setup: func(c echo.Context) {
				c.Set("role", "individual")
				c.Set("identity", &domain.Identity{ID: "u1", Role: domain.RoleOrganization})
			},
			allowed: true,
		},
		{
			name: "demoted since the token was issued",
			setup: func(c echo.Context) {
				c.Set("role", "organization")
				c.Set("identity", &domain.Identity{ID: "u1", Role: domain.RoleIndividual})
			},
		},
		{
			name:  "anonymous",
			setup: func(echo.Context) {},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newRBACContext()
			tc.setup(c)

			called := false
			err := RBAC(domain.RoleOrganization)(func(echo.Context) error {
				called = true
				return nil
			})(c)

			if called != tc.allowed {
				t.Fatalf("next called = %v, want %v", called, tc.allowed)
			}
			if tc.allowed && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.allowed && !errors.Is(err, domain.ErrForbidden) {
				t.Fatalf("expected ErrForbidden, got %v", err)
			}
		})
	}
}
