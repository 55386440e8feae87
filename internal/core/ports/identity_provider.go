package ports

import (
	"context"

	"github.com/aicompanion/companion/internal/core/domain"
)

// IdentityProvider is the external authority the session manager consults.
// Calls may be slow and may fail; rejections are reported as
// *domain.AuthenticationError or *domain.RegistrationError.
type IdentityProvider interface {
	VerifyCredential(ctx context.Context, email, credential string) (*domain.Authenticated, error)
	CreateAccount(ctx context.Context, email, credential, displayName string) (*domain.Authenticated, error)
	// Resume exchanges a previously issued token for the identity it belongs to.
	Resume(ctx context.Context, token string) (*domain.Authenticated, error)
}

// SessionStore persists the session token between process runs.
type SessionStore interface {
	Save(ctx context.Context, token string) error
	// Restore returns ok=false when nothing is stored.
	Restore(ctx context.Context) (token string, ok bool, err error)
	Clear(ctx context.Context) error
}
