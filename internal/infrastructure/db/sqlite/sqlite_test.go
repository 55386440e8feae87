package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aicompanion/companion/internal/core/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newAccount(email string) *domain.Account {
	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	return &domain.Account{
		Identity: domain.Identity{
			Email:     email,
			Name:      "Lee",
			Role:      domain.RoleIndividual,
			CreatedAt: now,
		},
		PasswordHash: "hash",
		UpdatedAt:    now,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestAccountRepository_CreateAndFind(t *testing.T) {
	repo := NewAccountRepository(openTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, newAccount("lee@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	byEmail, err := repo.FindByEmail(ctx, "lee@example.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, byEmail.ID)
	require.Equal(t, domain.RoleIndividual, byEmail.Role)
	require.True(t, byEmail.CreatedAt.Equal(created.CreatedAt))
	require.Nil(t, byEmail.Individual)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "lee@example.com", byID.Email)

	_, err = repo.FindByID(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAccountRepository_DuplicateEmail(t *testing.T) {
	repo := NewAccountRepository(openTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, newAccount("dup@example.com"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newAccount("dup@example.com"))
	require.ErrorIs(t, err, domain.ErrUserExists)
}

func TestAccountRepository_Update(t *testing.T) {
	repo := NewAccountRepository(openTestDB(t))
	ctx := context.Background()

	a, err := repo.Create(ctx, newAccount("a@example.com"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newAccount("b@example.com"))
	require.NoError(t, err)

	a.Role = domain.RoleOrganization
	a.OnboardingCompleted = true
	a.Organization = &domain.OrganizationProfile{
		CompanyName: "Acme",
		Industry:    "Retail",
		Size:        domain.SizeMedium,
		Goals:       []string{"Content creation"},
	}
	require.NoError(t, repo.Update(ctx, a))

	got, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RoleOrganization, got.Role)
	require.True(t, got.OnboardingCompleted)
	require.NotNil(t, got.Organization)
	require.Equal(t, []string{"Content creation"}, got.Organization.Goals)

	a.Email = "b@example.com"
	require.ErrorIs(t, repo.Update(ctx, a), domain.ErrUserExists)

	ghost := newAccount("ghost@example.com")
	ghost.ID = "nope"
	require.ErrorIs(t, repo.Update(ctx, ghost), domain.ErrUserNotFound)
}

func TestAuditRepository_InsertAndList(t *testing.T) {
	repo := NewAuditRepository(openTestDB(t))
	ctx := context.Background()
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.InsertEvent(ctx, &domain.AuthEvent{Kind: domain.EventRegister, UserID: "u1", At: at}))
	require.NoError(t, repo.InsertEvent(ctx, &domain.AuthEvent{Kind: domain.EventLogin, UserID: "u1", At: at.Add(time.Minute)}))
	require.NoError(t, repo.InsertEvent(ctx, &domain.AuthEvent{Kind: domain.EventLoginFailed, Email: "x@example.com", At: at}))

	events, err := repo.EventsFor(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventRegister, events[0].Kind)
	require.Equal(t, domain.EventLogin, events[1].Kind)
	require.True(t, events[1].At.Equal(at.Add(time.Minute)))
}

func TestIsUniqueViolation_IgnoresOtherErrors(t *testing.T) {
	require.False(t, isUniqueViolation(errors.New("boom")))
	require.False(t, isUniqueViolation(nil))
}
