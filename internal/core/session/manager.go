// Package session keeps track of who is using the app and how much of the
// anonymous chat allowance is left.
//
// A Manager is created once by the application root and handed to every
// consumer that needs it. Login, Register and Bootstrap talk to an
// ports.IdentityProvider and may block; at most one of them runs at a time.
// Everything else is synchronous.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

// DefaultQuota is the number of chat turns an anonymous visitor gets.
const DefaultQuota = 2

// ErrSuperseded is returned by Login or Register when the session was
// logged out while the call was in flight. The result is discarded.
var ErrSuperseded = errors.New("superseded by a newer session change")

// Option configures a Manager.
type Option func(*Manager)

// WithQuota sets the anonymous chat allowance. Negative values mean zero.
func WithQuota(n int) Option {
	return func(m *Manager) {
		if n < 0 {
			n = 0
		}
		m.quota = n
	}
}

// WithLogger sets the logger used for state transitions and store failures.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// Manager is the single source of truth for the current session.
type Manager struct {
	provider ports.IdentityProvider
	store    ports.SessionStore
	quota    int
	log      zerolog.Logger

	// flight admits one Bootstrap, Login or Register at a time.
	flight *semaphore.Weighted
	// persist orders token writes against token clears.
	persist sync.Mutex

	mu           sync.Mutex
	status       Status
	op           Operation
	identity     domain.Identity
	token        string
	anonChats    int
	bootstrapped bool
	closed       bool
	// epoch increments on every change that invalidates in-flight work.
	epoch uint64

	subs    map[int]func(State)
	nextSub int
	// seq numbers committed changes; delivered is the last one handed to
	// subscribers. notifyMu keeps deliveries in commit order.
	seq       uint64
	notifyMu  sync.Mutex
	delivered uint64
}

// New returns a Manager that is waiting for Bootstrap. store may be nil,
// in which case sessions are never persisted.
func New(provider ports.IdentityProvider, store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		store:    store,
		quota:    DefaultQuota,
		log:      zerolog.Nop(),
		flight:   semaphore.NewWeighted(1),
		status:   StatusAuthenticating,
		op:       OpBootstrap,
		subs:     make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bootstrap restores a persisted session if there is one. It must be
// called once at startup. Failing to restore is not an error: the session
// simply settles in SignedOut.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if !m.flight.TryAcquire(1) {
		return fmt.Errorf("session: bootstrap: %w", domain.ErrOperationInFlight)
	}
	defer m.flight.Release(1)

	m.mu.Lock()
	if err := m.checkOpenLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.bootstrapped {
		err := m.misuseLocked("bootstrap")
		m.mu.Unlock()
		return err
	}
	m.bootstrapped = true
	m.moveLocked(StatusAuthenticating)
	m.op = OpBootstrap
	epoch := m.epoch
	st, seq := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(st, seq)

	auth := m.restore(ctx)

	m.mu.Lock()
	if m.closed || m.epoch != epoch {
		m.mu.Unlock()
		m.log.Debug().Msg("session restore discarded")
		return nil
	}
	if auth != nil {
		m.signInLocked(auth)
	} else {
		m.moveLocked(StatusSignedOut)
		m.op = ""
	}
	st, seq = m.snapshotLocked()
	m.mu.Unlock()
	m.notify(st, seq)
	return nil
}

// restore loads the stored token and resumes it. It returns nil when there
// is no usable session. A token the provider rejects is cleared; a token
// that could not be checked (network failure, cancellation) is kept.
func (m *Manager) restore(ctx context.Context) *domain.Authenticated {
	if m.store == nil {
		return nil
	}
	token, ok, err := m.store.Restore(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("session store restore failed")
		return nil
	}
	if !ok || token == "" {
		return nil
	}

	auth, err := m.provider.Resume(ctx, token)
	if err == nil && auth != nil {
		return auth
	}

	var authErr *domain.AuthenticationError
	if errors.As(err, &authErr) {
		m.log.Info().Err(err).Msg("stored session rejected, clearing")
		m.persist.Lock()
		if clearErr := m.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			m.log.Warn().Err(clearErr).Msg("session store clear failed")
		}
		m.persist.Unlock()
		return nil
	}
	m.log.Warn().Err(err).Msg("stored session could not be verified")
	return nil
}

// Login signs in with an existing account.
func (m *Manager) Login(ctx context.Context, email, credential string) (domain.Identity, error) {
	return m.authenticate(ctx, OpLogin, func(ctx context.Context) (*domain.Authenticated, error) {
		return m.provider.VerifyCredential(ctx, email, credential)
	})
}

// Register creates an account and signs in with it.
func (m *Manager) Register(ctx context.Context, email, credential, displayName string) (domain.Identity, error) {
	return m.authenticate(ctx, OpRegister, func(ctx context.Context) (*domain.Authenticated, error) {
		return m.provider.CreateAccount(ctx, email, credential, displayName)
	})
}

func (m *Manager) authenticate(
	ctx context.Context,
	op Operation,
	call func(context.Context) (*domain.Authenticated, error),
) (domain.Identity, error) {
	if !m.flight.TryAcquire(1) {
		return domain.Identity{}, fmt.Errorf("session: %s: %w", op, domain.ErrOperationInFlight)
	}
	defer m.flight.Release(1)

	m.mu.Lock()
	if err := m.checkOpenLocked(); err != nil {
		m.mu.Unlock()
		return domain.Identity{}, err
	}
	switch m.status {
	case StatusSignedIn:
		err := m.misuseLocked(string(op))
		m.mu.Unlock()
		return domain.Identity{}, err
	case StatusAuthenticating:
		// Only reachable before Bootstrap has run.
		m.mu.Unlock()
		return domain.Identity{}, fmt.Errorf("session: %s: %w", op, domain.ErrOperationInFlight)
	}
	m.moveLocked(StatusAuthenticating)
	m.op = op
	epoch := m.epoch
	st, seq := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(st, seq)

	auth, err := call(ctx)
	if err == nil && auth == nil {
		err = errors.New("identity provider returned no identity")
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.log.Debug().Str("op", string(op)).Msg("session closed, result discarded")
		return domain.Identity{}, domain.ErrSessionClosed
	}
	if m.epoch != epoch {
		m.mu.Unlock()
		m.log.Debug().Str("op", string(op)).Msg("session changed, result discarded")
		return domain.Identity{}, fmt.Errorf("session: %s: %w", op, ErrSuperseded)
	}
	if err != nil {
		m.moveLocked(StatusSignedOut)
		m.op = ""
		st, seq = m.snapshotLocked()
		m.mu.Unlock()
		m.notify(st, seq)
		m.log.Info().Err(err).Str("op", string(op)).Msg("authentication failed")
		return domain.Identity{}, fmt.Errorf("session: %s: %w", op, err)
	}

	mine := m.signInLocked(auth)
	identity := m.identity
	st, seq = m.snapshotLocked()
	m.mu.Unlock()
	m.notify(st, seq)

	m.saveToken(ctx, mine, auth.Token)
	m.log.Info().Str("op", string(op)).Str("user_id", identity.ID).Msg("signed in")
	return identity, nil
}

// signInLocked commits a successful authentication and returns the new epoch.
func (m *Manager) signInLocked(auth *domain.Authenticated) uint64 {
	m.moveLocked(StatusSignedIn)
	m.op = ""
	m.identity = auth.Identity
	m.token = auth.Token
	m.anonChats = 0
	m.epoch++
	return m.epoch
}

func (m *Manager) saveToken(ctx context.Context, epoch uint64, token string) {
	if m.store == nil || token == "" {
		return
	}
	m.persist.Lock()
	defer m.persist.Unlock()

	m.mu.Lock()
	current := !m.closed && m.epoch == epoch
	m.mu.Unlock()
	if !current {
		return
	}
	if err := m.store.Save(context.WithoutCancel(ctx), token); err != nil {
		m.log.Warn().Err(err).Msg("session store save failed")
	}
}

// Logout signs out from any state. An in-flight Login or Register is
// discarded. Clearing the stored token is best effort.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.moveLocked(StatusSignedOut)
	m.op = ""
	m.identity = domain.Identity{}
	m.token = ""
	m.anonChats = 0
	m.epoch++
	st, seq := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(st, seq)

	if m.store == nil {
		return
	}
	m.persist.Lock()
	defer m.persist.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn().Err(err).Msg("session store clear failed")
	}
}

// IncrementAnonymousChatCount records one anonymous chat turn. It is a
// misuse while signed in.
func (m *Manager) IncrementAnonymousChatCount() error {
	m.mu.Lock()
	if err := m.checkOpenLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.status == StatusSignedIn {
		err := m.misuseLocked("increment anonymous chat count")
		m.mu.Unlock()
		return err
	}
	m.anonChats++
	st, seq := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(st, seq)
	return nil
}

// RemainingAnonymousChats returns the anonymous allowance, or an unlimited
// allowance while signed in.
func (m *Manager) RemainingAnonymousChats() Allowance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusSignedIn {
		return Allowance{Unlimited: true}
	}
	return Allowance{Remaining: max(0, m.quota-m.anonChats)}
}

// AnonymousChatCount returns the anonymous turn count. It is a misuse
// while signed in.
func (m *Manager) AnonymousChatCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusSignedIn {
		return 0, m.misuseLocked("read anonymous chat count")
	}
	return m.anonChats, nil
}

// SetRole changes the role of the signed-in identity.
func (m *Manager) SetRole(role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("session: set role %q: %w", role, domain.ErrInvalidRole)
	}
	return m.mutate("set role", func(id *domain.Identity) bool {
		if id.Role == role {
			return false
		}
		id.Role = role
		return true
	})
}

// CompleteOnboarding marks onboarding as done. Calling it again changes
// nothing.
func (m *Manager) CompleteOnboarding() error {
	return m.mutate("complete onboarding", func(id *domain.Identity) bool {
		if id.OnboardingCompleted {
			return false
		}
		id.OnboardingCompleted = true
		return true
	})
}

// UpdateIdentity merges patch into the signed-in identity.
func (m *Manager) UpdateIdentity(patch domain.IdentityPatch) error {
	var applyErr error
	err := m.mutate("update identity", func(id *domain.Identity) bool {
		next, err := id.Apply(patch)
		if err != nil {
			applyErr = err
			return false
		}
		changed := next != *id
		*id = next
		return changed
	})
	if err != nil {
		return err
	}
	if applyErr != nil {
		return fmt.Errorf("session: update identity: %w", applyErr)
	}
	return nil
}

// mutate runs fn against the signed-in identity. fn reports whether it
// changed anything, which decides if subscribers hear about it.
func (m *Manager) mutate(op string, fn func(*domain.Identity) bool) error {
	m.mu.Lock()
	if err := m.checkOpenLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.status != StatusSignedIn {
		err := m.misuseLocked(op)
		m.mu.Unlock()
		return err
	}
	if !fn(&m.identity) {
		m.mu.Unlock()
		return nil
	}
	st, seq := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(st, seq)
	return nil
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Loading reports whether an authentication round-trip is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusAuthenticating
}

// Identity returns the signed-in identity.
func (m *Manager) Identity() (domain.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusSignedIn {
		return domain.Identity{}, false
	}
	return m.identity, true
}

// AccessToken returns the token issued for the signed-in identity.
func (m *Manager) AccessToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusSignedIn || m.token == "" {
		return "", false
	}
	return m.token, true
}

// Subscribe registers fn to receive a snapshot after every change, in the
// order the changes were made. A snapshot overtaken by a newer one is
// skipped. fn runs on the goroutine that made the change; it must not block
// or call back into the Manager's mutating methods.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Close tears the manager down. In-flight results are discarded and every
// later operation fails with domain.ErrSessionClosed. The stored token is
// left alone so the next process can restore it.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.epoch++
	m.subs = nil
}

func (m *Manager) stateLocked() State {
	switch m.status {
	case StatusSignedIn:
		return SignedIn{Identity: m.identity}
	case StatusAuthenticating:
		return Authenticating{Operation: m.op, AnonymousChatCount: m.anonChats}
	default:
		return SignedOut{AnonymousChatCount: m.anonChats}
	}
}

func (m *Manager) moveLocked(next Status) {
	if m.status == next {
		return
	}
	if !m.status.CanTransitionTo(next) {
		m.log.Error().Str("from", string(m.status)).Str("to", string(next)).Msg("illegal session transition")
	}
	m.log.Debug().Str("from", string(m.status)).Str("to", string(next)).Msg("session transition")
	m.status = next
}

func (m *Manager) checkOpenLocked() error {
	if m.closed {
		return domain.ErrSessionClosed
	}
	return nil
}

func (m *Manager) misuseLocked(op string) error {
	return &domain.MisuseError{Op: op, State: string(m.status)}
}

// snapshotLocked records a committed change and returns the state to
// publish with its sequence number.
func (m *Manager) snapshotLocked() (State, uint64) {
	m.seq++
	return m.stateLocked(), m.seq
}

// notify delivers st unless a later change has already been delivered, so
// subscribers never see the session go backwards.
func (m *Manager) notify(st State, seq uint64) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if seq <= m.delivered {
		return
	}
	m.delivered = seq

	m.mu.Lock()
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
