package audit

import (
	"context"
	"database/sql"
	"fmt"

	"agri-ivr/pkg/utils"
)

// PostgresRepo appends events to ivr_audit_events.
// Grant the application role INSERT and SELECT only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ivr_audit_events (
	id              UUID PRIMARY KEY,
	call_id         TEXT NOT NULL,
	type            TEXT NOT NULL,
	caller_number   TEXT NOT NULL DEFAULT '',
	username        TEXT NOT NULL DEFAULT '',
	failed_attempts INT NOT NULL DEFAULT 0,
	actor_user_id   TEXT NOT NULL DEFAULT '',
	actor_role      TEXT NOT NULL DEFAULT '',
	ip_address      TEXT NOT NULL DEFAULT '',
	message         TEXT NOT NULL DEFAULT '',
	metadata        TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS ivr_audit_events_call_id_idx ON ivr_audit_events (call_id, created_at)`,
}

// EnsureSchema creates the audit table if it does not exist.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("audit: ensure schema: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO ivr_audit_events
	(id, call_id, type, caller_number, username, failed_attempts, actor_user_id, actor_role, ip_address, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.CallID,
		string(e.Type),
		e.CallerNumber,
		e.Username,
		e.FailedAttempts,
		e.ActorUserID,
		e.ActorRole,
		e.IPAddress,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// ListByCall returns the events for one call in insertion order.
func (r *PostgresRepo) ListByCall(ctx context.Context, callID string) ([]Event, error) {
	const q = `
SELECT id, call_id, type, caller_number, username, failed_attempts, actor_user_id, actor_role, ip_address, message, metadata, created_at
FROM ivr_audit_events
WHERE call_id = $1
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(
			&e.ID,
			&e.CallID,
			&typ,
			&e.CallerNumber,
			&e.Username,
			&e.FailedAttempts,
			&e.ActorUserID,
			&e.ActorRole,
			&e.IPAddress,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
