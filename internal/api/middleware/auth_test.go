package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

type stubParser struct {
	tokens map[string]*ports.TokenClaims
	err    error
}

func (p stubParser) ParseToken(_ context.Context, token string) (*ports.TokenClaims, error) {
	if p.err != nil {
		return nil, p.err
	}
	claims, ok := p.tokens[token]
	if !ok {
		return nil, &domain.AuthenticationError{Reason: "invalid or expired token"}
	}
	return claims, nil
}

type stubLoader map[string]*domain.Identity

func (l stubLoader) Identity(_ context.Context, userID string) (*domain.Identity, error) {
	id, ok := l[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return id, nil
}

func validParser() stubParser {
	return stubParser{tokens: map[string]*ports.TokenClaims{
		"good": {TokenID: "jti-1", Subject: "user_1", Role: domain.RoleIndividual, ExpiresAt: time.Now().Add(time.Hour)},
	}}
}

func serve(t *testing.T, mw echo.MiddlewareFunc, header string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := mw(next)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func mustNotCall(t *testing.T) echo.HandlerFunc {
	return func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	called := false
	rec := serve(t, Auth(validParser()), "Bearer good", func(c echo.Context) error {
		called = true
		if c.Get("user_id") != "user_1" {
			t.Fatalf("user_id not set")
		}
		if c.Get("role") != "individual" {
			t.Fatalf("role not set")
		}
		claims, _ := c.Get("claims").(*ports.TokenClaims)
		if claims == nil || claims.TokenID != "jti-1" {
			t.Fatalf("claims not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing header":        "",
		"invalid header format": "Token abc",
		"empty bearer":          "Bearer ",
		"invalid token":         "Bearer not-a-token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, Auth(validParser()), header, mustNotCall(t))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestAuthMiddleware_RevocationStoreDown(t *testing.T) {
	rec := serve(t, Auth(stubParser{err: errors.New("redis down")}), "Bearer good", mustNotCall(t))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	called := false
	rec := serve(t, OptionalAuth(validParser()), "", func(c echo.Context) error {
		called = true
		if c.Get("user_id") != nil {
			t.Fatalf("anonymous request must not carry a user")
		}
		return c.NoContent(http.StatusOK)
	})
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("anonymous request should pass, got %d", rec.Code)
	}

	rec = serve(t, OptionalAuth(validParser()), "Bearer stale", mustNotCall(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("a bad token must still be rejected, got %d", rec.Code)
	}
}

func TestCurrentIdentity_RefreshesRole(t *testing.T) {
	loader := stubLoader{"user_1": {ID: "user_1", Role: domain.RoleOrganization}}
	chain := func(next echo.HandlerFunc) echo.HandlerFunc {
		return Auth(validParser())(CurrentIdentity(loader)(next))
	}

	rec := serve(t, chain, "Bearer good", func(c echo.Context) error {
		if c.Get("role") != "organization" {
			t.Fatalf("role should come from the stored identity, got %v", c.Get("role"))
		}
		if id, _ := c.Get("identity").(*domain.Identity); id == nil || id.ID != "user_1" {
			t.Fatalf("identity not set")
		}
		return c.NoContent(http.StatusOK)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCurrentIdentity_DeletedAccount(t *testing.T) {
	chain := func(next echo.HandlerFunc) echo.HandlerFunc {
		return Auth(validParser())(CurrentIdentity(stubLoader{})(next))
	}
	rec := serve(t, chain, "Bearer good", mustNotCall(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
