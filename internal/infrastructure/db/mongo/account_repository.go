package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

const accountCollection = "accounts"

// AccountRepository implements ports.AccountRepository using MongoDB.
type AccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(accountCollection)}
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

type mongoAccount struct {
	ID                  primitive.ObjectID          `bson:"_id,omitempty"`
	Email               string                      `bson:"email"`
	Name                string                      `bson:"name"`
	Role                string                      `bson:"role"`
	Avatar              string                      `bson:"avatar,omitempty"`
	PasswordHash        string                      `bson:"password_hash"`
	OnboardingCompleted bool                        `bson:"onboarding_completed"`
	Individual          *domain.IndividualProfile   `bson:"individual,omitempty"`
	Organization        *domain.OrganizationProfile `bson:"organization,omitempty"`
	CreatedAt           int64                       `bson:"created_at"`
	UpdatedAt           int64                       `bson:"updated_at"`
}

// EnsureIndexes creates the unique email index accounts rely on.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	doc := toMongoAccount(account)
	doc.ID = primitive.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	oid, err := primitive.ObjectIDFromHex(account.ID)
	if err != nil {
		return domain.ErrUserNotFound
	}
	doc := toMongoAccount(account)
	doc.ID = oid

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc mongoAccount
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

func toMongoAccount(a *domain.Account) mongoAccount {
	return mongoAccount{
		Email:               a.Email,
		Name:                a.Name,
		Role:                string(a.Role),
		Avatar:              a.Avatar,
		PasswordHash:        a.PasswordHash,
		OnboardingCompleted: a.OnboardingCompleted,
		Individual:          a.Individual,
		Organization:        a.Organization,
		CreatedAt:           a.CreatedAt.Unix(),
		UpdatedAt:           a.UpdatedAt.Unix(),
	}
}

func (m mongoAccount) toDomain() *domain.Account {
	return &domain.Account{
		Identity: domain.Identity{
			ID:                  m.ID.Hex(),
			Email:               m.Email,
			Name:                m.Name,
			Role:                domain.Role(m.Role),
			Avatar:              m.Avatar,
			CreatedAt:           unixToTime(m.CreatedAt),
			OnboardingCompleted: m.OnboardingCompleted,
		},
		PasswordHash: m.PasswordHash,
		UpdatedAt:    unixToTime(m.UpdatedAt),
		Individual:   m.Individual,
		Organization: m.Organization,
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
