package domain

import (
	"strings"
	"time"
)

// Role selects the onboarding flow and the affordances available to an identity.
type Role string

const (
	RoleIndividual   Role = "individual"
	RoleOrganization Role = "organization"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleIndividual || r == RoleOrganization
}

// ParseRole accepts the canonical role names plus the legacy "user" alias
// that older mobile builds still send for individual accounts.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleIndividual), "user":
		return RoleIndividual, nil
	case string(RoleOrganization):
		return RoleOrganization, nil
	default:
		return "", ErrInvalidRole
	}
}

// Identity is the signed-in principal.
type Identity struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	Role                Role      `json:"role"`
	Avatar              string    `json:"avatar,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
}

// IdentityPatch carries a partial update. Nil fields are left untouched.
// ID, CreatedAt and OnboardingCompleted are deliberately absent: they only
// change through account creation and onboarding completion.
type IdentityPatch struct {
	Email  *string `json:"email,omitempty"`
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
	Role   *Role   `json:"role,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p IdentityPatch) Empty() bool {
	return p.Email == nil && p.Name == nil && p.Avatar == nil && p.Role == nil
}

// Apply returns a copy of id with the patch merged in.
func (id Identity) Apply(p IdentityPatch) (Identity, error) {
	if p.Role != nil && !p.Role.Valid() {
		return id, ErrInvalidRole
	}
	out := id
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Avatar != nil {
		out.Avatar = *p.Avatar
	}
	if p.Role != nil {
		out.Role = *p.Role
	}
	return out, nil
}

// Authenticated is what an identity provider hands back on a successful
// login, registration or session restore.
type Authenticated struct {
	Identity  Identity  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Account is the stored form of an identity.
type Account struct {
	Identity
	PasswordHash string
	UpdatedAt    time.Time

	Individual   *IndividualProfile
	Organization *OrganizationProfile
}
