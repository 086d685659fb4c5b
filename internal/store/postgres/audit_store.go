package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

// execer is the slice of *pgxpool.Pool the audit store needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	db execer
}

// NewAuditStore creates an AuditStore writing through db, usually the
// client's pool.
func NewAuditStore(db execer) *AuditStore {
	return &AuditStore{db: db}
}

// Log appends an audit row. detail is stored as JSONB; a nil detail becomes
// an empty object.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	if detail == nil {
		detail = map[string]any{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}

	const query = `INSERT INTO audit_log (event, detail) VALUES ($1, $2)`
	if _, err := s.db.Exec(ctx, query, event, detailJSON); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

var _ domain.AuditStore = (*AuditStore)(nil)
