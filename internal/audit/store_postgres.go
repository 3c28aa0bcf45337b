package audit

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the postgres driver used by sql.Open in cmd/server.
	_ "github.com/lib/pq"
)

// PostgresStore persists audit events to an insert-only table. There is no
// update or delete statement in this file on purpose.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-opened connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const insertEventSQL = `
INSERT INTO audit_events
  (id, event_type, occurred_at, correlation_id, subject_id, tenant_id, resource, action, result, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, insertEventSQL,
		event.ID,
		string(event.Type),
		event.Timestamp,
		nullable(event.CorrelationID),
		nullable(event.SubjectID),
		nullable(event.TenantID),
		nullable(event.Resource),
		nullable(event.Action),
		string(event.Result),
		nullable(event.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
