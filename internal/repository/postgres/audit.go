package postgres

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

// AuditRepository implements audit log persistence.
type AuditRepository struct {
	q sqlx.ExtContext
}

// NewAuditRepository creates a new AuditRepository outside a unit of work.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{q: db}
}

// Create inserts a new audit log entry.
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, actor_id, member_id, action, entity_type, entity_id,
			old_values, new_values, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		log.ID, log.ActorID, log.MemberID, log.Action, log.EntityType, log.EntityID,
		jsonText(log.OldValues), jsonText(log.NewValues), log.Notes, log.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create audit log")
	}
	return nil
}

// ListByEntity returns the trail of one record, oldest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	query := `
		SELECT id, actor_id, member_id, action, entity_type, entity_id,
			COALESCE(old_values, 'null'::jsonb) AS old_values, COALESCE(new_values, 'null'::jsonb) AS new_values,
			notes, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id
	`
	if err := sqlx.SelectContext(ctx, r.q, &logs, query, entityType, entityID); err != nil {
		return nil, errors.Wrap(err, "failed to list audit logs")
	}
	return logs, nil
}

// jsonText passes raw JSON as text; lib/pq would otherwise send bytea.
func jsonText(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
