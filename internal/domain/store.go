package domain

import "context"

// Audit event names.
const (
	AuditPairOutcome  = "pair_outcome"
	AuditRunCompleted = "run_completed"
	AuditRunArchived  = "run_archived"
)

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
