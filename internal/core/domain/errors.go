package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("access forbidden")
	ErrTokenRevoked       = errors.New("token revoked")

	ErrChatQuotaExceeded = errors.New("anonymous chat quota exceeded")

	ErrOperationInFlight = errors.New("operation already in flight")
	ErrSessionClosed     = errors.New("session closed")
)

// AuthenticationError is returned when a credential is rejected during login
// or when a stored session can no longer be resumed. The user may retry.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RegistrationError is returned when account creation is rejected, for
// example because the email is taken or the input does not validate.
type RegistrationError struct {
	Reason string
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Reason == "" {
		return "registration failed"
	}
	return "registration failed: " + e.Reason
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// MisuseError reports an operation invoked in a state that forbids it. It is
// a contract violation by the calling code, not something to show a user.
type MisuseError struct {
	Op    string
	State string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("%s is not allowed while %s", e.Op, e.State)
}

// IsMisuse reports whether err is, or wraps, a *MisuseError.
func IsMisuse(err error) bool {
	var me *MisuseError
	return errors.As(err, &me)
}
