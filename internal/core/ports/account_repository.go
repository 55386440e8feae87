package ports

import (
	"context"

	"github.com/aicompanion/companion/internal/core/domain"
)

// AccountRepository defines the interface for account persistence.
type AccountRepository interface {
	// Create stores a new account and returns it with its ID assigned.
	// Returns domain.ErrUserExists when the email is already registered.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Update(ctx context.Context, account *domain.Account) error
}

// AuditRepository appends to the authentication audit trail.
type AuditRepository interface {
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}

// AuditSink accepts audit events for asynchronous recording.
type AuditSink interface {
	Record(event domain.AuthEvent)
}

// AuditService persists audit events taken off the queue.
type AuditService interface {
	Process(ctx context.Context, event domain.AuthEvent) error
}
