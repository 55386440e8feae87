package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
	"github.com/aicompanion/companion/internal/pkg/validation"
)

const tokenIssuer = "companion"

// accessClaims is the JWT payload. The role is informational; handlers that
// enforce roles load the current account instead of trusting it.
type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type credentials struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"     validate:"required"`
}

// AuthService implements registration, login and account management.
type AuthService struct {
	repo      ports.AccountRepository
	revoker   ports.TokenRevoker
	audit     ports.AuditSink
	jwtSecret []byte
	tokenTTL  time.Duration
	validate  *validator.Validate
	log       zerolog.Logger
	now       func() time.Time
}

// NewAuthService wires the service. revoker and audit may be nil: tokens then
// simply live until they expire and nothing is audited.
func NewAuthService(repo ports.AccountRepository, revoker ports.TokenRevoker, audit ports.AuditSink, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		repo:      repo,
		revoker:   revoker,
		audit:     audit,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		validate:  validation.New(),
		log:       log,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers a new individual account and signs it in.
func (s *AuthService) CreateAccount(ctx context.Context, email, password, name string) (*domain.Authenticated, error) {
	in := credentials{Email: normalizeEmail(email), Password: password, Name: strings.TrimSpace(name)}
	if err := s.validate.Struct(in); err != nil {
		return nil, &domain.RegistrationError{Reason: validation.Message(err), Err: domain.ErrInvalidInput}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	now := s.now().UTC()
	account := &domain.Account{
		Identity: domain.Identity{
			Email:     in.Email,
			Name:      in.Name,
			Role:      domain.RoleIndividual,
			CreatedAt: now,
		},
		PasswordHash: string(hash),
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, account)
	if errors.Is(err, domain.ErrUserExists) {
		s.record(domain.EventRegisterFailed, "", in.Email, "email taken")
		return nil, &domain.RegistrationError{Reason: "an account with this email already exists", Err: domain.ErrUserExists}
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	auth, err := s.issue(created)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", created.ID).Msg("account registered")
	s.record(domain.EventRegister, created.ID, created.Email, "")
	return auth, nil
}

// VerifyCredential checks an email/password pair and issues a token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) VerifyCredential(ctx context.Context, email, password string) (*domain.Authenticated, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, &domain.AuthenticationError{Reason: "email and password are required", Err: domain.ErrInvalidCredentials}
	}

	account, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, s.loginFailed(email, "unknown email")
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, s.loginFailed(email, "wrong password")
	}

	auth, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	s.record(domain.EventLogin, account.ID, account.Email, "")
	return auth, nil
}

func (s *AuthService) loginFailed(email, detail string) error {
	s.log.Debug().Str("email", email).Str("detail", detail).Msg("login rejected")
	s.record(domain.EventLoginFailed, "", email, detail)
	return &domain.AuthenticationError{Reason: "invalid email or password", Err: domain.ErrInvalidCredentials}
}

// Resume exchanges a previously issued token for its current identity.
func (s *AuthService) Resume(ctx context.Context, token string) (*domain.Authenticated, error) {
	claims, err := s.ParseToken(ctx, token)
	if err != nil {
		return nil, err
	}
	account, err := s.repo.FindByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, &domain.AuthenticationError{Reason: "account no longer exists", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	return &domain.Authenticated{Identity: account.Identity, Token: token, ExpiresAt: claims.ExpiresAt}, nil
}

// ParseToken verifies the signature, expiry and revocation status of token.
func (s *AuthService) ParseToken(ctx context.Context, token string) (*ports.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &accessClaims{}, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, &domain.AuthenticationError{Reason: "invalid or expired token", Err: err}
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || claims.Subject == "" || claims.ID == "" {
		return nil, &domain.AuthenticationError{Reason: "malformed token"}
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, &domain.AuthenticationError{Reason: "token has been signed out", Err: domain.ErrTokenRevoked}
		}
	}

	return &ports.TokenClaims{
		TokenID:   claims.ID,
		Subject:   claims.Subject,
		Role:      domain.Role(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the token described by claims until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims ports.TokenClaims) error {
	if s.revoker != nil {
		if err := s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}
	s.record(domain.EventLogout, claims.Subject, "", "")
	return nil
}

func (s *AuthService) Identity(ctx context.Context, userID string) (*domain.Identity, error) {
	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &account.Identity, nil
}

// UpdateProfile merges patch into the stored identity.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, patch domain.IdentityPatch) (*domain.Identity, error) {
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return nil, fmt.Errorf("%w: email must be a valid email", domain.ErrInvalidInput)
		}
		patch.Email = &email
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
		}
		patch.Name = &name
	}

	account, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return &account.Identity, nil
	}

	before := account.Role
	next, err := account.Identity.Apply(patch)
	if err != nil {
		return nil, err
	}
	account.Identity = next
	account.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}
	if account.Role != before {
		s.record(domain.EventRoleChanged, account.ID, account.Email, string(account.Role))
	}
	return &account.Identity, nil
}

// SetRole switches the account between the individual and organization flows.
func (s *AuthService) SetRole(ctx context.Context, userID string, role domain.Role) (*domain.Identity, error) {
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	return s.UpdateProfile(ctx, userID, domain.IdentityPatch{Role: &role})
}

func (s *AuthService) issue(account *domain.Account) (*domain.Authenticated, error) {
	now := s.now()
	expires := now.Add(s.tokenTTL)
	claims := accessClaims{
		Role: string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &domain.Authenticated{
		Identity:  account.Identity,
		Token:     signed,
		ExpiresAt: expires.Truncate(time.Second),
	}, nil
}

func (s *AuthService) record(kind domain.AuthEventKind, userID, email, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(domain.AuthEvent{Kind: kind, UserID: userID, Email: email, At: s.now().UTC(), Detail: detail})
}

var _ ports.AuthService = (*AuthService)(nil)
