package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/service"
	"github.com/aicompanion/companion/internal/infrastructure/db/sqlite"
)

type memoryQuota struct {
	mu   sync.Mutex
	used map[string]int
}

func (q *memoryQuota) Consume(_ context.Context, subject string, limit int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used[subject] >= limit {
		return q.used[subject], domain.ErrChatQuotaExceeded
	}
	q.used[subject]++
	return q.used[subject], nil
}

func (q *memoryQuota) Used(_ context.Context, subject string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used[subject], nil
}

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (r *memoryRevoker) Revoke(_ context.Context, tokenID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = true
	return nil
}

func (r *memoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[tokenID], nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	accounts := sqlite.NewAccountRepository(db)
	auth := service.NewAuthService(accounts, &memoryRevoker{revoked: map[string]bool{}}, nil, "test-secret", time.Hour, log)

	return NewRouter(Services{
		Auth:       auth,
		Chat:       service.NewChatService(&memoryQuota{used: map[string]int{}}, 2, log),
		Onboarding: service.NewOnboardingService(accounts, nil, log),
	}, Options{Registerer: prometheus.NewRegistry()}, log)
}

type call struct {
	method, path, body, token, device string
}

func do(t *testing.T, e *echo.Echo, c call) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	if c.device != "" {
		req.Header.Set("X-Device-ID", c.device)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
	}
	return rec.Code, body
}

func register(t *testing.T, e *echo.Echo, email string) string {
	t.Helper()
	code, body := do(t, e, call{method: http.MethodPost, path: "/auth/register",
		body: `{"email":"` + email + `","password":"secret1","name":"Quinn"}`})
	require.Equal(t, http.StatusCreated, code, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRouter_AccountLifecycle(t *testing.T) {
	e := newTestServer(t)
	token := register(t, e, "quinn@example.com")

	code, body := do(t, e, call{method: http.MethodGet, path: "/v1/me", token: token})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "individual", body["role"])
	require.Equal(t, false, body["onboarding_completed"])

	org := `{"company_name":"Acme","industry":"Retail","size":"small","description":"Shop","goals":["Content creation"]}`
	code, _ = do(t, e, call{method: http.MethodPost, path: "/v1/me/onboarding/organization", body: org, token: token})
	require.Equal(t, http.StatusForbidden, code)

	code, body = do(t, e, call{method: http.MethodPut, path: "/v1/me/role", body: `{"role":"organization"}`, token: token})
	require.Equal(t, http.StatusOK, code, body)

	// The token still says "individual"; the stored role decides.
	code, body = do(t, e, call{method: http.MethodPost, path: "/v1/me/onboarding/organization", body: org, token: token})
	require.Equal(t, http.StatusOK, code, body)
	require.Equal(t, true, body["onboarding_completed"])

	code, _ = do(t, e, call{method: http.MethodPost, path: "/auth/logout", token: token})
	require.Equal(t, http.StatusNoContent, code)

	code, body = do(t, e, call{method: http.MethodGet, path: "/v1/me", token: token})
	require.Equal(t, http.StatusUnauthorized, code)
	require.NotEmpty(t, body["error"])
}

func TestRouter_AuthErrors(t *testing.T) {
	e := newTestServer(t)
	register(t, e, "rae@example.com")

	code, body := do(t, e, call{method: http.MethodPost, path: "/auth/register",
		body: `{"email":"rae@example.com","password":"secret1","name":"Rae"}`})
	require.Equal(t, http.StatusConflict, code)
	require.Contains(t, body["error"], "already exists")

	code, _ = do(t, e, call{method: http.MethodPost, path: "/auth/register",
		body: `{"email":"bad","password":"1","name":""}`})
	require.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, e, call{method: http.MethodPost, path: "/auth/login",
		body: `{"email":"rae@example.com","password":"wrong-password"}`})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Contains(t, body["error"], "invalid email or password")

	code, _ = do(t, e, call{method: http.MethodPost, path: "/auth/login",
		body: `{"email":"rae@example.com","password":"secret1"}`})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, e, call{method: http.MethodGet, path: "/v1/me"})
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_AnonymousChatQuota(t *testing.T) {
	e := newTestServer(t)

	code, body := do(t, e, call{method: http.MethodGet, path: "/v1/chat/greeting"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, domain.Greeting, body["text"])

	for want := 1; want >= 0; want-- {
		code, body = do(t, e, call{method: http.MethodPost, path: "/v1/chat", body: `{"text":"hi"}`, device: "device-9"})
		require.Equal(t, http.StatusOK, code, body)
		require.Equal(t, float64(want), body["remaining"])
	}

	code, body = do(t, e, call{method: http.MethodGet, path: "/v1/chat/allowance", device: "device-9"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(0), body["remaining"])

	code, body = do(t, e, call{method: http.MethodPost, path: "/v1/chat", body: `{"text":"hi"}`, device: "device-9"})
	require.Equal(t, http.StatusTooManyRequests, code)
	require.NotEmpty(t, body["error"])

	code, _ = do(t, e, call{method: http.MethodPost, path: "/v1/chat", body: `{"text":"hi"}`})
	require.Equal(t, http.StatusBadRequest, code)

	token := register(t, e, "sam@example.com")
	for i := 0; i < 3; i++ {
		code, body = do(t, e, call{method: http.MethodPost, path: "/v1/chat", body: `{"text":"hi"}`, token: token, device: "device-9"})
		require.Equal(t, http.StatusOK, code)
		require.NotContains(t, body, "remaining")
	}
}

func TestRouter_PlansHealthAndMetrics(t *testing.T) {
	e := newTestServer(t)

	code, body := do(t, e, call{method: http.MethodGet, path: "/v1/plans"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, domain.DefaultPlanID, body["default_plan_id"])

	code, _ = do(t, e, call{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, e, call{method: http.MethodGet, path: "/health/ready"})
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "companion_")
}
