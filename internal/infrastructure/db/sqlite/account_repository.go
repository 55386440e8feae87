package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

const accountColumns = `id, email, name, role, avatar, password_hash, onboarding_completed,
	individual, organization, created_at, updated_at`

// AccountRepository implements ports.AccountRepository on SQLite. Onboarding
// profiles are stored as JSON columns.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	created := *account
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	individual, organization, err := encodeProfiles(&created)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, created.Email, created.Name, string(created.Role), created.Avatar,
		created.PasswordHash, created.OnboardingCompleted, individual, organization,
		toMillis(created.CreatedAt), toMillis(created.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return &created, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	individual, organization, err := encodeProfiles(account)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET
		email = ?, name = ?, role = ?, avatar = ?, password_hash = ?, onboarding_completed = ?,
		individual = ?, organization = ?, updated_at = ?
		WHERE id = ?`,
		account.Email, account.Name, string(account.Role), account.Avatar, account.PasswordHash,
		account.OnboardingCompleted, individual, organization, toMillis(account.UpdatedAt),
		account.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *AccountRepository) findOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var (
		a                        domain.Account
		role                     string
		individual, organization sql.NullString
		createdAt, updatedAt     int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.Name, &role, &a.Avatar, &a.PasswordHash, &a.OnboardingCompleted,
		&individual, &organization, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	a.Role = domain.Role(role)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	if individual.Valid {
		a.Individual = &domain.IndividualProfile{}
		if err := json.Unmarshal([]byte(individual.String), a.Individual); err != nil {
			return nil, fmt.Errorf("decode individual profile: %w", err)
		}
	}
	if organization.Valid {
		a.Organization = &domain.OrganizationProfile{}
		if err := json.Unmarshal([]byte(organization.String), a.Organization); err != nil {
			return nil, fmt.Errorf("decode organization profile: %w", err)
		}
	}
	return &a, nil
}

func encodeProfiles(a *domain.Account) (individual, organization sql.NullString, err error) {
	if a.Individual != nil {
		b, err := json.Marshal(a.Individual)
		if err != nil {
			return individual, organization, fmt.Errorf("encode individual profile: %w", err)
		}
		individual = sql.NullString{String: string(b), Valid: true}
	}
	if a.Organization != nil {
		b, err := json.Marshal(a.Organization)
		if err != nil {
			return individual, organization, fmt.Errorf("encode organization profile: %w", err)
		}
		organization = sql.NullString{String: string(b), Valid: true}
	}
	return individual, organization, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
