package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aicompanion/companion/internal/api"
	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/service"
	"github.com/aicompanion/companion/internal/infrastructure/db/sqlite"
	"github.com/aicompanion/companion/internal/pkg/config"
)

type mapQuota map[string]int

func (q mapQuota) Consume(_ context.Context, subject string, limit int) (int, error) {
	if q[subject] >= limit {
		return q[subject], domain.ErrChatQuotaExceeded
	}
	q[subject]++
	return q[subject], nil
}

func (q mapQuota) Used(_ context.Context, subject string) (int, error) { return q[subject], nil }

type mapRevoker map[string]bool

func (r mapRevoker) Revoke(_ context.Context, id string, _ time.Time) error {
	r[id] = true
	return nil
}

func (r mapRevoker) IsRevoked(_ context.Context, id string) (bool, error) { return r[id], nil }

func startAPI(t *testing.T) string {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	accounts := sqlite.NewAccountRepository(db)
	e := api.NewRouter(api.Services{
		Auth:       service.NewAuthService(accounts, mapRevoker{}, nil, "test-secret", time.Hour, log),
		Chat:       service.NewChatService(mapQuota{}, 2, log),
		Onboarding: service.NewOnboardingService(accounts, nil, log),
	}, api.Options{Registerer: prometheus.NewRegistry()}, log)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv.URL
}

func runScript(t *testing.T, cfg *config.Config, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, run(context.Background(), cfg, zerolog.Nop(), in, &out))
	return out.String()
}

func TestRun_AnonymousQuotaThenRegister(t *testing.T) {
	cfg := &config.Config{
		APIURL:      startAPI(t),
		SessionFile: filepath.Join(t.TempDir(), "session.json"),
		Quota:       2,
	}

	out := runScript(t, cfg,
		"hi",
		"still there?",
		"one more",
		"/register ana@example.com secret1 Ana Lima",
		"/whoami",
		"/role organization",
		"/onboard",
		// Size and website are left blank.
		"Lima Labs", "Technology", "", "Research tools", "", "Automate workflows",
		"/whoami",
		"/quit",
	)

	require.Contains(t, out, domain.Greeting)
	require.Contains(t, out, "(2 free message(s) left)")
	require.Contains(t, out, "(1 free message(s) left)")
	require.Contains(t, out, "(0 free message(s) left)")
	require.Contains(t, out, "You've used your free messages.")
	require.Contains(t, out, "Welcome, Ana Lima.")
	require.Contains(t, out, "Ana Lima <ana@example.com> role=individual onboarded=false")
	require.Contains(t, out, "Role set to organization.")
	require.Contains(t, out, "Onboarding complete.")
	require.Contains(t, out, "role=organization onboarded=true")

	// The next run resumes the stored session.
	out = runScript(t, cfg, "/whoami", "/logout", "/whoami", "/quit")
	require.Contains(t, out, "Welcome back, Ana Lima.")
	require.Contains(t, out, "Signed out.")
	require.Contains(t, out, "guest, 0 chat(s) used")
}

func TestRun_BadLogin(t *testing.T) {
	cfg := &config.Config{
		APIURL:      startAPI(t),
		SessionFile: filepath.Join(t.TempDir(), "session.json"),
		Quota:       2,
	}

	out := runScript(t, cfg, "/login nobody@example.com wrong", "/whoami", "/quit")
	require.Contains(t, out, "error: sign in failed")
	require.Contains(t, out, "guest, 0 chat(s) used")
}
