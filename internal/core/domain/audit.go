package domain

import "time"

// AuthEventKind classifies an entry in the authentication audit trail.
type AuthEventKind string

const (
	EventRegister            AuthEventKind = "register"
	EventRegisterFailed      AuthEventKind = "register_failed"
	EventLogin               AuthEventKind = "login"
	EventLoginFailed         AuthEventKind = "login_failed"
	EventLogout              AuthEventKind = "logout"
	EventRoleChanged         AuthEventKind = "role_changed"
	EventOnboardingCompleted AuthEventKind = "onboarding_completed"
)

// AuthEvent records something that happened to an account.
type AuthEvent struct {
	Kind   AuthEventKind `json:"kind"    bson:"kind"`
	UserID string        `json:"user_id" bson:"user_id,omitempty"`
	Email  string        `json:"email"   bson:"email,omitempty"`
	At     time.Time     `json:"at"      bson:"at"`
	Detail string        `json:"detail"  bson:"detail,omitempty"`
}

// ShardKey picks the field events are ordered by. Failed attempts carry no
// user ID, so they fall back to the email.
func (e AuthEvent) ShardKey() string {
	if e.UserID != "" {
		return e.UserID
	}
	return e.Email
}
