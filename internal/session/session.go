package session

import (
	"context"
	"errors"
	"strings"
)

// Session is the per-call record driven by the IVR controller.
//
// Invariants:
// - exactly one record per CallID; it is created implicitly on first reference.
// - State is authoritative for control flow. Verification is informational.
// - a call that reaches a terminal outcome is deleted, never retained.
type Session struct {
	CallID         string             `json:"call_id"`
	State          State              `json:"state"`
	Verification   VerificationStatus `json:"verification_status"`
	FailedAttempts int                `json:"failed_attempts"`
	LastResponse   string             `json:"last_response,omitempty"`
	Username       string             `json:"username,omitempty"`
}

type State string

const (
	StateAwaitingUsername State = "awaiting_username"
	StateAwaitingPassword State = "awaiting_password"
	StateAnswering        State = "answering"
	StateTerminated       State = "terminated"
)

// Known reports whether s is one of the declared states.
func (s State) Known() bool {
	switch s {
	case StateAwaitingUsername, StateAwaitingPassword, StateAnswering, StateTerminated:
		return true
	default:
		return false
	}
}

type VerificationStatus string

const (
	VerificationNone              VerificationStatus = "none"
	VerificationRequestedUsername VerificationStatus = "requested_username"
	VerificationRequestedPassword VerificationStatus = "requested_password"
	VerificationSuccess           VerificationStatus = "success"
	VerificationFailedRetry       VerificationStatus = "failed_retry"
	VerificationTerminated        VerificationStatus = "terminated"
)

// UnknownCallID is used when the gateway omits the call identifier.
const UnknownCallID = "unknown-call"

var ErrInvalidCallID = errors.New("session: call id required")

// NormalizeCallID trims the id and falls back to UnknownCallID.
func NormalizeCallID(callID string) string {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return UnknownCallID
	}
	return callID
}

// New returns the default record for a call that has not been seen yet.
func New(callID string) Session {
	return Session{
		CallID:       callID,
		State:        StateAwaitingUsername,
		Verification: VerificationNone,
	}
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	State          *State
	Verification   *VerificationStatus
	FailedAttempts *int
	LastResponse   *string
	Username       *string
}

// Apply shallow-merges p into s and returns the result.
func (p Patch) Apply(s Session) Session {
	if p.State != nil {
		s.State = *p.State
	}
	if p.Verification != nil {
		s.Verification = *p.Verification
	}
	if p.FailedAttempts != nil {
		s.FailedAttempts = *p.FailedAttempts
	}
	if p.LastResponse != nil {
		s.LastResponse = *p.LastResponse
	}
	if p.Username != nil {
		s.Username = *p.Username
	}
	return s
}

// Store is the persistence contract for call sessions.
//
// Each method is atomic on its own. Sequences of calls for the same call id
// (read, decide, write) must be serialized by the caller with a Locker.
type Store interface {
	// Get returns the session, creating it with defaults if absent.
	Get(ctx context.Context, callID string) (Session, error)
	// Update merges p into the session (creating it if absent) and returns the result.
	Update(ctx context.Context, callID string, p Patch) (Session, error)
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, callID string) error
	// Lookup reads a session without creating it.
	Lookup(ctx context.Context, callID string) (Session, bool, error)
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T { return &v }
