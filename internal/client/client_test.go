package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aicompanion/companion/internal/api"
	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/service"
	"github.com/aicompanion/companion/internal/core/session"
	"github.com/aicompanion/companion/internal/infrastructure/db/sqlite"
)

type countingQuota struct{ used map[string]int }

func (q *countingQuota) Consume(_ context.Context, subject string, limit int) (int, error) {
	if q.used[subject] >= limit {
		return q.used[subject], domain.ErrChatQuotaExceeded
	}
	q.used[subject]++
	return q.used[subject], nil
}

func (q *countingQuota) Used(_ context.Context, subject string) (int, error) {
	return q.used[subject], nil
}

type setRevoker map[string]bool

func (r setRevoker) Revoke(_ context.Context, id string, _ time.Time) error {
	r[id] = true
	return nil
}

func (r setRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	return r[id], nil
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	accounts := sqlite.NewAccountRepository(db)
	e := api.NewRouter(api.Services{
		Auth:       service.NewAuthService(accounts, setRevoker{}, nil, "test-secret", time.Hour, log),
		Chat:       service.NewChatService(&countingQuota{used: map[string]int{}}, session.DefaultQuota, log),
		Onboarding: service.NewOnboardingService(accounts, nil, log),
	}, api.Options{Registerer: prometheus.NewRegistry()}, log)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SessionLifecycle(t *testing.T) {
	srv := newTestAPI(t)
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	deviceID, err := store.DeviceID()
	require.NoError(t, err)
	c := New(srv.URL, deviceID, srv.Client())

	mgr := session.New(c, store)
	require.NoError(t, mgr.Bootstrap(ctx))
	require.Equal(t, session.StatusSignedOut, mgr.State().Status())

	// Two anonymous turns, then the server refuses a third.
	for i := 0; i < session.DefaultQuota; i++ {
		require.True(t, mgr.RemainingAnonymousChats().Allows())
		reply, err := c.Chat(ctx, "", "hello")
		require.NoError(t, err)
		require.NotNil(t, reply.Remaining)
		require.NoError(t, mgr.IncrementAnonymousChatCount())
	}
	require.False(t, mgr.RemainingAnonymousChats().Allows())
	left, unlimited, err := c.Allowance(ctx, "")
	require.NoError(t, err)
	require.False(t, unlimited)
	require.Zero(t, left)
	_, err = c.Chat(ctx, "", "one more")
	require.ErrorIs(t, err, domain.ErrChatQuotaExceeded)

	identity, err := mgr.Register(ctx, "uma@example.com", "secret1", "Uma")
	require.NoError(t, err)
	require.Equal(t, "Uma", identity.Name)
	require.True(t, mgr.RemainingAnonymousChats().Unlimited)

	token, ok := mgr.AccessToken()
	require.True(t, ok)
	_, unlimited, err = c.Allowance(ctx, token)
	require.NoError(t, err)
	require.True(t, unlimited)

	reply, err := c.Chat(ctx, token, "now signed in")
	require.NoError(t, err)
	require.Nil(t, reply.Remaining)

	// A fresh process restores the session from the file.
	restored := session.New(c, store)
	require.NoError(t, restored.Bootstrap(ctx))
	id, ok := restored.Identity()
	require.True(t, ok)
	require.Equal(t, "uma@example.com", id.Email)

	require.NoError(t, c.Logout(ctx, token))
	restored.Logout(ctx)
	_, found, err := store.Restore(ctx)
	require.NoError(t, err)
	require.False(t, found)

	_, err = c.Resume(ctx, token)
	var authErr *domain.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	// Logging out twice is harmless.
	require.NoError(t, c.Logout(ctx, token))
}

func TestClient_RejectionsAreTyped(t *testing.T) {
	srv := newTestAPI(t)
	ctx := context.Background()
	c := New(srv.URL, "device-1", srv.Client())

	_, err := c.CreateAccount(ctx, "vic@example.com", "secret1", "Vic")
	require.NoError(t, err)

	_, err = c.CreateAccount(ctx, "vic@example.com", "secret1", "Vic")
	var regErr *domain.RegistrationError
	require.ErrorAs(t, err, &regErr)
	require.ErrorIs(t, err, domain.ErrUserExists)
	require.NotEmpty(t, regErr.Reason)

	_, err = c.CreateAccount(ctx, "not-an-email", "1", "")
	require.ErrorAs(t, err, &regErr)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = c.VerifyCredential(ctx, "vic@example.com", "wrong-pass")
	var authErr *domain.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestClient_RoleAndOnboarding(t *testing.T) {
	srv := newTestAPI(t)
	ctx := context.Background()
	c := New(srv.URL, "device-1", srv.Client())

	auth, err := c.CreateAccount(ctx, "wes@example.com", "secret1", "Wes")
	require.NoError(t, err)

	org := domain.OrganizationProfile{
		CompanyName: "Wes Co",
		Industry:    "Consulting",
		Size:        domain.SizeStartup,
		Description: "Advice",
		Goals:       []string{"Data analysis & insights"},
	}
	_, err = c.CompleteOrganization(ctx, auth.Token, org)
	require.ErrorIs(t, err, domain.ErrForbidden)

	identity, err := c.SetRole(ctx, auth.Token, domain.RoleOrganization)
	require.NoError(t, err)
	require.Equal(t, domain.RoleOrganization, identity.Role)

	identity, err = c.CompleteOrganization(ctx, auth.Token, org)
	require.NoError(t, err)
	require.True(t, identity.OnboardingCompleted)

	name := "Wesley"
	identity, err = c.UpdateProfile(ctx, auth.Token, domain.IdentityPatch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Wesley", identity.Name)

	plans, def, err := c.Plans(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, plans)
	require.Equal(t, domain.DefaultPlanID, def)

	greeting, err := c.Greeting(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Greeting, greeting.Text)
}

func TestClient_TransportFailureIsNotARejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(srv.URL, "", srv.Client())

	_, err := c.VerifyCredential(context.Background(), "x@example.com", "pw")
	var authErr *domain.AuthenticationError
	require.False(t, errors.As(err, &authErr))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.Status)

	_, err = c.Resume(context.Background(), "tok")
	require.False(t, errors.As(err, &authErr))
}
