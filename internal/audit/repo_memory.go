package audit

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// LogRepo writes events to the structured log. Used when no database is configured.
type LogRepo struct {
	Log *slog.Logger
}

func (r LogRepo) Append(ctx context.Context, e Event) error {
	l := r.Log
	if l == nil {
		l = slog.Default()
	}
	attrs := []any{
		"audit_id", e.ID,
		"call_id", e.CallID,
		"type", string(e.Type),
		"failed_attempts", e.FailedAttempts,
	}
	if e.Username != "" {
		attrs = append(attrs, "username", e.Username)
	}
	if e.ActorUserID != "" {
		attrs = append(attrs, "actor_user_id", e.ActorUserID, "actor_role", e.ActorRole)
	}
	l.InfoContext(ctx, "audit", attrs...)
	return nil
}

// ListByCall returns the events for one call in insertion order.
func (r *MemoryRepo) ListByCall(ctx context.Context, callID string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.CallID == callID {
			out = append(out, e)
		}
	}
	return out, nil
}
