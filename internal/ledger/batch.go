package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sacco/internal/domain"
	"sacco/internal/store"
)

// BatchRecorder tracks the outcome of a bulk run. Each item is persisted in
// its own unit of work so a failure late in the run keeps earlier results.
type BatchRecorder struct {
	s      *Service
	batch  *domain.TransactionBatch
	errors []string
}

// StartBatch creates a batch in processing state with a BATCH-{ts}-{8} id.
func (s *Service) StartBatch(ctx context.Context, batchType domain.BatchType, description string, createdBy uuid.UUID) (*BatchRecorder, error) {
	now := s.now()
	b := &domain.TransactionBatch{
		ID:          uuid.New(),
		BatchType:   batchType,
		Description: description,
		Status:      domain.BatchStatusProcessing,
		CreatedBy:   createdBy,
		StartedAt:   &now,
		CreatedAt:   now,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return WithUniqueID("generate batch id",
			func() string { return NewBusinessID("BATCH", now, 8) },
			func(id string) error {
				b.BatchID = id
				return tx.Batches().Create(ctx, b)
			})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Batch started", map[string]interface{}{"batch_id": b.BatchID, "batch_type": b.BatchType})
	return &BatchRecorder{s: s, batch: b}, nil
}

// Add records one item. txn is nil when the item failed with itemErr.
func (r *BatchRecorder) Add(ctx context.Context, memberID uuid.UUID, txn *domain.Transaction, itemErr error) error {
	b := *r.batch
	item := &domain.BatchItem{
		ID:             uuid.New(),
		BatchID:        b.ID,
		MemberID:       memberID,
		SequenceNumber: b.TotalTransactions + 1,
		CreatedAt:      r.s.now(),
	}
	b.TotalTransactions++
	if itemErr != nil {
		item.ErrorMessage = itemErr.Error()
		b.FailedTransactions++
	} else if txn != nil {
		item.TransactionID = &txn.ID
		b.SuccessfulTransactions++
		b.TotalAmount = b.TotalAmount.Add(txn.Amount)
	}
	err := r.s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Batches().AddItem(ctx, item); err != nil {
			return err
		}
		return tx.Batches().Update(ctx, &b)
	})
	if err != nil {
		return err
	}
	if itemErr != nil {
		r.errors = append(r.errors, fmt.Sprintf("%s: %v", memberID, itemErr))
	}
	*r.batch = b
	return nil
}

// Finish closes the batch: completed when every item succeeded, otherwise
// partially_completed.
func (r *BatchRecorder) Finish(ctx context.Context) (*domain.TransactionBatch, error) {
	b := *r.batch
	now := r.s.now()
	b.CompletedAt = &now
	b.ErrorLog = strings.Join(r.errors, "\n")
	if b.FailedTransactions == 0 {
		b.Status = domain.BatchStatusCompleted
	} else {
		b.Status = domain.BatchStatusPartiallyCompleted
	}
	err := r.s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Batches().Update(ctx, &b)
	})
	if err != nil {
		return nil, err
	}
	*r.batch = b
	r.s.logger.Info("Batch finished", map[string]interface{}{
		"batch_id":   b.BatchID,
		"status":     b.Status,
		"successful": b.SuccessfulTransactions,
		"failed":     b.FailedTransactions,
		"total":      b.TotalAmount.String(),
		"elapsed_ms": now.Sub(*b.StartedAt).Milliseconds(),
	})
	return &b, nil
}

// Batch returns the current state of the batch.
func (r *BatchRecorder) Batch() *domain.TransactionBatch {
	b := *r.batch
	return &b
}
