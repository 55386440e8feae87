package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aicompanion/companion/internal/core/domain"
)

func TestMongoAccount_BSONShape(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := toMongoAccount(&domain.Account{
		Identity: domain.Identity{
			Email:     "kim@example.com",
			Name:      "Kim",
			Role:      domain.RoleOrganization,
			CreatedAt: created,
		},
		PasswordHash: "hash",
		Organization: &domain.OrganizationProfile{CompanyName: "Acme", Goals: []string{"Automate workflows"}},
	})
	doc.ID = primitive.NewObjectID()

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["email"] != "kim@example.com" || m["role"] != "organization" {
		t.Fatalf("unexpected document: %v", m)
	}
	if _, ok := m["individual"]; ok {
		t.Fatalf("empty profiles must be omitted: %v", m)
	}
	org, ok := m["organization"].(bson.M)
	if !ok || org["company_name"] != "Acme" {
		t.Fatalf("organization profile not embedded: %v", m["organization"])
	}

	back := doc.toDomain()
	if back.ID != doc.ID.Hex() || !back.CreatedAt.Equal(created) {
		t.Fatalf("unexpected domain account: %+v", back)
	}
	if !back.UpdatedAt.IsZero() {
		t.Fatalf("zero timestamps must stay zero, got %v", back.UpdatedAt)
	}
}
