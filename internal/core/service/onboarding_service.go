package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
	"github.com/aicompanion/companion/internal/pkg/validation"
)

// OnboardingService stores onboarding answers and marks the account as
// onboarded. Submitting again replaces the answers.
type OnboardingService struct {
	repo     ports.AccountRepository
	audit    ports.AuditSink
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

var _ ports.OnboardingService = (*OnboardingService)(nil)

func NewOnboardingService(repo ports.AccountRepository, audit ports.AuditSink, log zerolog.Logger) *OnboardingService {
	return &OnboardingService{
		repo:     repo,
		audit:    audit,
		validate: validation.New(),
		log:      log,
		now:      time.Now,
	}
}

func (s *OnboardingService) CompleteIndividual(ctx context.Context, userID string, profile domain.IndividualProfile) (*domain.Identity, error) {
	if profile.Experience == "" {
		profile.Experience = domain.DefaultExperience
	}
	if err := s.validate.Struct(profile); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, validation.Message(err))
	}
	for _, interest := range profile.Interests {
		if !slices.Contains(domain.Interests, interest) {
			return nil, fmt.Errorf("%w: unknown interest %q", domain.ErrInvalidInput, interest)
		}
	}
	return s.complete(ctx, userID, domain.RoleIndividual, func(a *domain.Account) {
		a.Individual = &profile
	})
}

func (s *OnboardingService) CompleteOrganization(ctx context.Context, userID string, profile domain.OrganizationProfile) (*domain.Identity, error) {
	if profile.Size == "" {
		profile.Size = domain.DefaultCompanySize
	}
	if err := s.validate.Struct(profile); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, validation.Message(err))
	}
	if !slices.Contains(domain.Industries, profile.Industry) {
		return nil, fmt.Errorf("%w: unknown industry %q", domain.ErrInvalidInput, profile.Industry)
	}
	for _, goal := range profile.Goals {
		if !slices.Contains(domain.OrganizationGoals, goal) {
			return nil, fmt.Errorf("%w: unknown goal %q", domain.ErrInvalidInput, goal)
		}
	}
	return s.complete(ctx, userID, domain.RoleOrganization, func(a *domain.Account) {
		a.Organization = &profile
	})
}

func (s *OnboardingService) complete(ctx context.Context, userID string, role domain.Role, apply func(*domain.Account)) (*domain.Identity, error) {
	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Role != role {
		return nil, fmt.Errorf("%w: %s onboarding requires the %s role", domain.ErrForbidden, role, role)
	}

	first := !account.OnboardingCompleted
	apply(account)
	account.OnboardingCompleted = true
	account.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("complete onboarding: %w", err)
	}

	if first {
		s.log.Info().Str("user_id", account.ID).Str("role", string(role)).Msg("onboarding completed")
		if s.audit != nil {
			s.audit.Record(domain.AuthEvent{
				Kind:   domain.EventOnboardingCompleted,
				UserID: account.ID,
				Email:  account.Email,
				At:     account.UpdatedAt,
				Detail: string(role),
			})
		}
	}
	return &account.Identity, nil
}
