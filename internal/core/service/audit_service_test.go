package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aicompanion/companion/internal/core/domain"
)

type stubAuditRepo struct {
	events []domain.AuthEvent
	err    error
}

func (r *stubAuditRepo) InsertEvent(_ context.Context, e *domain.AuthEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, *e)
	return nil
}

func TestAuditService_Process(t *testing.T) {
	repo := &stubAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())

	event := domain.AuthEvent{Kind: domain.EventLogin, UserID: "user_1", At: time.Now()}
	if err := svc.Process(context.Background(), event); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if len(repo.events) != 1 || repo.events[0].UserID != "user_1" {
		t.Fatalf("unexpected stored events: %+v", repo.events)
	}
}

func TestAuditService_Process_Errors(t *testing.T) {
	repo := &stubAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())

	if err := svc.Process(context.Background(), domain.AuthEvent{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing kind, got %v", err)
	}

	repo.err = errors.New("disk full")
	if err := svc.Process(context.Background(), domain.AuthEvent{Kind: domain.EventLogout}); !errors.Is(err, repo.err) {
		t.Fatalf("expected repository error to be wrapped, got %v", err)
	}
}
