package ports

import (
	"context"

	"github.com/aicompanion/companion/internal/core/domain"
)

// ChatQuota counts anonymous chat turns per subject (a device ID).
type ChatQuota interface {
	// Consume records one turn if fewer than limit have been used and
	// returns the count after the call. When the limit is already reached
	// it returns domain.ErrChatQuotaExceeded and the count is unchanged.
	Consume(ctx context.Context, subject string, limit int) (int, error)
	// Used returns the turns recorded for subject without consuming one.
	Used(ctx context.Context, subject string) (int, error)
}

// ChatInput is one user turn as received from the transport layer.
type ChatInput struct {
	// UserID is set for authenticated callers.
	UserID string
	// DeviceID identifies anonymous callers.
	DeviceID string
	Text     string
}

// ChatResult is the outcome of one chat turn. Remaining is -1 when the
// caller is not subject to a quota.
type ChatResult struct {
	UserMessage domain.Message
	Reply       domain.Message
	Remaining   int
}

// ChatService answers chat turns.
type ChatService interface {
	Greeting() domain.Message
	Send(ctx context.Context, in ChatInput) (*ChatResult, error)
	// Allowance returns the anonymous turns left to the caller, or -1 for
	// signed-in callers. Text is ignored.
	Allowance(ctx context.Context, in ChatInput) (int, error)
}

// OnboardingService records onboarding answers.
type OnboardingService interface {
	CompleteIndividual(ctx context.Context, userID string, profile domain.IndividualProfile) (*domain.Identity, error)
	CompleteOrganization(ctx context.Context, userID string, profile domain.OrganizationProfile) (*domain.Identity, error)
}
