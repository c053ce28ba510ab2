package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records call audit events.
//
// Callers treat audit as best-effort: a failed append is logged, never
// surfaced to the caller on the phone.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogCallEvent records an event raised by the call controller.
func (s *Service) LogCallEvent(ctx context.Context, typ EventType, callID, callerNumber, username string, failedAttempts int) error {
	return s.Append(ctx, Event{
		CallID:         callID,
		Type:           typ,
		CallerNumber:   callerNumber,
		Username:       username,
		FailedAttempts: failedAttempts,
	})
}

// LogSessionReset records an operator forcing a call back to the start.
func (s *Service) LogSessionReset(ctx context.Context, callID, actorUserID, actorRole, ip string) error {
	return s.Append(ctx, Event{
		CallID:      callID,
		Type:        EventSessionReset,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     "session reset by operator",
	})
}
