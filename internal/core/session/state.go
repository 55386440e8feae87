package session

import "github.com/aicompanion/companion/internal/core/domain"

// Status names the three session states.
type Status string

const (
	StatusSignedOut      Status = "signed_out"
	StatusAuthenticating Status = "authenticating"
	StatusSignedIn       Status = "signed_in"
)

// validTransitions defines the session state machine. Logout is the only
// edge that may start from any state, so SignedOut is reachable from all.
var validTransitions = map[Status][]Status{
	StatusSignedOut:      {StatusAuthenticating, StatusSignedOut},
	StatusAuthenticating: {StatusSignedIn, StatusSignedOut},
	StatusSignedIn:       {StatusSignedOut},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Operation is the call that put a session into Authenticating.
type Operation string

const (
	OpBootstrap Operation = "bootstrap"
	OpLogin     Operation = "login"
	OpRegister  Operation = "register"
)

// State is a snapshot of the session. It is one of SignedOut,
// Authenticating or SignedIn; consumers are expected to type-switch.
type State interface {
	Status() Status
}

// SignedOut means nobody is signed in. The anonymous chat count only
// exists in this state and in Authenticating.
type SignedOut struct {
	AnonymousChatCount int
}

// Authenticating means a login, registration or bootstrap is in flight.
type Authenticating struct {
	Operation          Operation
	AnonymousChatCount int
}

// SignedIn carries the current identity.
type SignedIn struct {
	Identity domain.Identity
}

func (SignedOut) Status() Status      { return StatusSignedOut }
func (Authenticating) Status() Status { return StatusAuthenticating }
func (SignedIn) Status() Status       { return StatusSignedIn }

// Allowance is the anonymous chat budget left to the current session.
type Allowance struct {
	Remaining int
	Unlimited bool
}

// Allows reports whether one more chat turn fits in the allowance.
func (a Allowance) Allows() bool {
	return a.Unlimited || a.Remaining > 0
}
