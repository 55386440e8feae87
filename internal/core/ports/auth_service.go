package ports

import (
	"context"
	"time"

	"github.com/aicompanion/companion/internal/core/domain"
)

// TokenRevoker tracks access tokens that were signed out before expiry.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	TokenID   string
	Subject   string
	Role      domain.Role
	ExpiresAt time.Time
}

// AuthService is the account API exposed over HTTP.
type AuthService interface {
	IdentityProvider

	ParseToken(ctx context.Context, token string) (*TokenClaims, error)
	Logout(ctx context.Context, claims TokenClaims) error

	Identity(ctx context.Context, userID string) (*domain.Identity, error)
	UpdateProfile(ctx context.Context, userID string, patch domain.IdentityPatch) (*domain.Identity, error)
	SetRole(ctx context.Context, userID string, role domain.Role) (*domain.Identity, error)
}
