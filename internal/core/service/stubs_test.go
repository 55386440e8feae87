package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aicompanion/companion/internal/core/domain"
)

type stubAccountRepo struct {
	accounts map[string]*domain.Account
	nextID   int
	failWith error
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: make(map[string]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return nil, domain.ErrUserExists
		}
	}
	copy := cloneAccount(account)
	if copy.ID == "" {
		r.nextID++
		copy.ID = fmt.Sprintf("user_%d", r.nextID)
	}
	r.accounts[copy.ID] = cloneAccount(copy)
	return cloneAccount(copy), nil
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, a := range r.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) Update(_ context.Context, account *domain.Account) error {
	if r.failWith != nil {
		return r.failWith
	}
	if _, ok := r.accounts[account.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for id, a := range r.accounts {
		if id != account.ID && a.Email == account.Email {
			return domain.ErrUserExists
		}
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

type stubRevoker struct {
	revoked map[string]time.Time
}

func newStubRevoker() *stubRevoker {
	return &stubRevoker{revoked: make(map[string]time.Time)}
}

func (r *stubRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	r.revoked[tokenID] = until
	return nil
}

func (r *stubRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := r.revoked[tokenID]
	return ok, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (s *recordingSink) Record(e domain.AuthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) kinds() []domain.AuthEventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuthEventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}
