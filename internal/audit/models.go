package audit

import "time"

// Event is an immutable, append-only record of a security-relevant call event.
//
// Invariants:
// - Events are never updated or deleted.
// - call_id and type are required.
// - raw caller input (PIN attempts) is never stored.
//
// Storage (Postgres): table ivr_audit_events, INSERT-only.
type Event struct {
	ID     string    `json:"id" db:"id"`
	CallID string    `json:"call_id" db:"call_id"`
	Type   EventType `json:"type" db:"type"`

	CallerNumber string `json:"caller_number,omitempty" db:"caller_number"`
	Username     string `json:"username,omitempty" db:"username"`

	// FailedAttempts is the counter value when the event happened.
	FailedAttempts int `json:"failed_attempts" db:"failed_attempts"`

	// Actor fields are only set for operator actions.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventUsernameRejected      EventType = "username_rejected"
	EventPINRejected           EventType = "pin_rejected"
	EventVerificationSucceeded EventType = "verification_succeeded"
	EventVerificationFailed    EventType = "verification_failed"
	EventCallCompleted         EventType = "call_completed"
	EventSessionReset          EventType = "session_reset"
)
