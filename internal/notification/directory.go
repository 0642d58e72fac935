package notification

import (
	"context"

	"github.com/google/uuid"

	"sacco/internal/domain"
	"sacco/internal/store"
)

// StoreDirectory looks up member emails and writes audit rows, each in its
// own unit of work. It runs after the triggering operation has committed.
type StoreDirectory struct {
	store store.Store
}

func NewStoreDirectory(st store.Store) *StoreDirectory {
	return &StoreDirectory{store: st}
}

func (d *StoreDirectory) Email(ctx context.Context, memberID uuid.UUID) (string, error) {
	var email string
	err := d.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.Members().FindByID(ctx, memberID)
		if err != nil {
			return err
		}
		email = m.Email
		return nil
	})
	return email, err
}

func (d *StoreDirectory) Create(ctx context.Context, log *domain.AuditLog) error {
	return d.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Audit().Create(ctx, log)
	})
}
