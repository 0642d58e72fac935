package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"sacco/internal/domain"
	"sacco/internal/store"
)

// AuditEntry describes one state change for the audit trail.
type AuditEntry struct {
	ActorID    *uuid.UUID
	MemberID   *uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	OldValues  interface{}
	NewValues  interface{}
	Notes      string
}

// WriteAudit appends the entry inside the caller's unit of work, so the trail
// commits or rolls back with the change it describes.
func WriteAudit(ctx context.Context, tx store.Tx, e AuditEntry, now time.Time) error {
	log := &domain.AuditLog{
		ID:         uuid.New(),
		ActorID:    e.ActorID,
		MemberID:   e.MemberID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Notes:      e.Notes,
		CreatedAt:  now,
	}
	if e.OldValues != nil {
		b, err := json.Marshal(e.OldValues)
		if err != nil {
			return err
		}
		log.OldValues = b
	}
	if e.NewValues != nil {
		b, err := json.Marshal(e.NewValues)
		if err != nil {
			return err
		}
		log.NewValues = b
	}
	return tx.Audit().Create(ctx, log)
}

func statusChange(from, to string) (map[string]string, map[string]string) {
	return map[string]string{"status": from}, map[string]string{"status": to}
}
