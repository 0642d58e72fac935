// Package ledger is the general ledger: every money movement of a member is
// an append-only Transaction, and member balances are always rebuilt from the
// posted history.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/notification"
	"sacco/internal/store"
	"sacco/pkg/cache"
	"sacco/pkg/errors"
	"sacco/pkg/logger"
	"sacco/pkg/money"
	"sacco/pkg/telemetry"
	"sacco/pkg/validator"
)

type Service struct {
	store     store.Store
	cache     cache.Cache
	cacheTTL  time.Duration
	notifier  *notification.Dispatcher
	logger    logger.Logger
	validator *validator.Validator
	now       func() time.Time
}

// NewService creates the ledger. c and notifier may be nil.
func NewService(st store.Store, c cache.Cache, cacheTTL time.Duration, notifier *notification.Dispatcher, log logger.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		store:     st,
		cache:     c,
		cacheTTL:  cacheTTL,
		notifier:  notifier,
		logger:    log,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type RecordRequest struct {
	MemberID    uuid.UUID              `json:"member_id" validate:"required"`
	Type        domain.TransactionType `json:"transaction_type" validate:"required"`
	Amount      decimal.Decimal        `json:"amount" validate:"money"`
	Direction   domain.Direction       `json:"adjustment_direction" validate:"omitempty,oneof=credit debit"`
	Category    string                 `json:"category" validate:"max=50"`
	Description string                 `json:"description"`
	Reference   string                 `json:"reference_number" validate:"max=100"`
}

func (s *Service) validateRecord(req *RecordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if !req.Type.Valid() {
		return errors.NewValidation("transaction_type", fmt.Sprintf("unknown type %q", req.Type))
	}
	if req.Type == domain.TransactionTypeAdjustment && req.Direction == domain.DirectionNeutral {
		return errors.NewValidation("adjustment_direction", "is required for adjustments")
	}
	return nil
}

// Record creates a pending transaction with a generated transaction_id.
func (s *Service) Record(ctx context.Context, req *RecordRequest) (*domain.Transaction, error) {
	if err := s.validateRecord(req); err != nil {
		return nil, err
	}

	var txn *domain.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Members().FindByID(ctx, req.MemberID); err != nil {
			return err
		}
		var err error
		txn, err = s.create(ctx, tx, req, s.now(), nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Transaction recorded", map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"member_id":      txn.MemberID,
		"type":           txn.Type,
		"amount":         txn.Amount.String(),
	})
	return txn, nil
}

func (s *Service) create(ctx context.Context, tx store.Tx, req *RecordRequest, now time.Time, reverses *uuid.UUID) (*domain.Transaction, error) {
	txn := &domain.Transaction{
		ID:                    uuid.New(),
		MemberID:              req.MemberID,
		Type:                  req.Type,
		Category:              req.Category,
		Amount:                money.Round(req.Amount),
		Status:                domain.TransactionStatusPending,
		Description:           req.Description,
		ReferenceNumber:       req.Reference,
		ReversedTransactionID: reverses,
		TransactionDate:       now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if req.Type == domain.TransactionTypeAdjustment {
		txn.AdjustmentDirection = req.Direction
	}
	err := WithUniqueID("generate transaction id",
		func() string { return NewBusinessID(req.Type.Prefix(), now, 6) },
		func(id string) error {
			txn.TransactionID = id
			return tx.Transactions().Create(ctx, txn)
		})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Complete posts a pending transaction. balance_before is derived from the
// member's posted history, never from the cached balance.
func (s *Service) Complete(ctx context.Context, id, adminID uuid.UUID, notes string) (txn *domain.Transaction, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.Complete")
	defer func() { telemetry.EndSpan(span, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := s.lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.completeTx(ctx, tx, t, &adminID, notes, s.now()); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateBalance(ctx, txn.MemberID)
	s.logger.Info("Transaction completed", map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"member_id":      txn.MemberID,
		"old_status":     domain.TransactionStatusPending,
		"new_status":     txn.Status,
		"balance_after":  txn.BalanceAfter.String(),
	})
	s.notifier.Dispatch(txn.MemberID, notification.EventTransactionCompleted, map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount,
		"balance_after":  txn.BalanceAfter,
	})
	return txn, nil
}

// lockPending locks the member and then the transaction, and requires pending.
func (s *Service) lockPending(ctx context.Context, tx store.Tx, id uuid.UUID) (*domain.Transaction, error) {
	return s.lockInStatus(ctx, tx, id, domain.TransactionStatusPending)
}

func (s *Service) lockInStatus(ctx context.Context, tx store.Tx, id uuid.UUID, required domain.TransactionStatus) (*domain.Transaction, error) {
	t, err := tx.Transactions().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Members().LockByID(ctx, t.MemberID); err != nil {
		return nil, err
	}
	t, err = tx.Transactions().LockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != required {
		return nil, errors.NewInvalidState("transaction", t.TransactionID, string(t.Status), string(required))
	}
	return t, nil
}

func (s *Service) completeTx(ctx context.Context, tx store.Tx, t *domain.Transaction, actor *uuid.UUID, notes string, now time.Time) error {
	before, err := DerivedBalance(ctx, tx, t.MemberID)
	if err != nil {
		return err
	}
	t.BalanceBefore = before
	t.BalanceAfter = t.Apply(before)
	t.Status = domain.TransactionStatusCompleted
	t.ProcessedBy = actor
	t.ProcessedAt = &now
	t.ProcessingNotes = notes
	t.UpdatedAt = now
	if err := tx.Transactions().Update(ctx, t); err != nil {
		return err
	}
	if _, err := s.issueReceipt(ctx, tx, t, now); err != nil {
		return err
	}
	memberID := t.MemberID
	old, updated := statusChange(string(domain.TransactionStatusPending), string(t.Status))
	updated["balance_after"] = t.BalanceAfter.String()
	if err := WriteAudit(ctx, tx, AuditEntry{
		ActorID: actor, MemberID: &memberID, Action: "TRANSACTION_COMPLETED",
		EntityType: "transaction", EntityID: t.ID.String(), OldValues: old, NewValues: updated, Notes: notes,
	}, now); err != nil {
		return err
	}
	_, err = s.RecomputeBalanceTx(ctx, tx, t.MemberID, now)
	return err
}

func (s *Service) issueReceipt(ctx context.Context, tx store.Tx, t *domain.Transaction, now time.Time) (*domain.TransactionReceipt, error) {
	r := &domain.TransactionReceipt{
		ID:            uuid.New(),
		TransactionID: t.ID,
		ReceiptData: domain.Metadata{
			"transaction_id":   t.TransactionID,
			"member_id":        t.MemberID.String(),
			"transaction_type": string(t.Type),
			"amount":           money.Format(t.Amount),
			"balance_before":   money.Format(t.BalanceBefore),
			"balance_after":    money.Format(t.BalanceAfter),
			"description":      t.Description,
			"reference_number": t.ReferenceNumber,
			"processed_at":     now.Format(time.RFC3339),
		},
		IssuedAt: now,
	}
	err := WithUniqueID("generate receipt number",
		func() string { return NewBusinessID("RCP", now, 6) },
		func(id string) error {
			r.ReceiptNumber = id
			return tx.Receipts().Create(ctx, r)
		})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Fail moves a pending transaction to failed; the balance is not touched.
func (s *Service) Fail(ctx context.Context, id, adminID uuid.UUID, reason string) (*domain.Transaction, error) {
	return s.close(ctx, id, adminID, reason, domain.TransactionStatusFailed, "TRANSACTION_FAILED")
}

// Cancel withdraws a pending transaction.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*domain.Transaction, error) {
	return s.close(ctx, id, actorID, reason, domain.TransactionStatusCancelled, "TRANSACTION_CANCELLED")
}

func (s *Service) close(ctx context.Context, id, actorID uuid.UUID, reason string, to domain.TransactionStatus, action string) (*domain.Transaction, error) {
	if reason == "" {
		return nil, errors.NewValidation("reason", "is required")
	}
	var txn *domain.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := s.lockPending(ctx, tx, id)
		if err != nil {
			return err
		}
		now := s.now()
		t.Status = to
		t.ProcessedBy = &actorID
		t.ProcessedAt = &now
		t.ProcessingNotes = reason
		t.UpdatedAt = now
		if err := tx.Transactions().Update(ctx, t); err != nil {
			return err
		}
		memberID := t.MemberID
		old, updated := statusChange(string(domain.TransactionStatusPending), string(to))
		if err := WriteAudit(ctx, tx, AuditEntry{
			ActorID: &actorID, MemberID: &memberID, Action: action,
			EntityType: "transaction", EntityID: t.ID.String(), OldValues: old, NewValues: updated, Notes: reason,
		}, now); err != nil {
			return err
		}
		if _, err := s.RecomputeBalanceTx(ctx, tx, t.MemberID, now); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateBalance(ctx, txn.MemberID)
	s.logger.Info("Transaction closed", map[string]interface{}{
		"transaction_id": txn.TransactionID,
		"member_id":      txn.MemberID,
		"old_status":     domain.TransactionStatusPending,
		"new_status":     to,
	})
	return txn, nil
}

// Reverse offsets a completed transaction with a new completed one of the
// inverse type and marks the original reversed. The reversal of a type with no
// natural inverse is an adjustment in the opposite direction.
func (s *Service) Reverse(ctx context.Context, id, adminID uuid.UUID, reason string) (reversal *domain.Transaction, err error) {
	if reason == "" {
		return nil, errors.NewValidation("reason", "is required")
	}
	ctx, span := telemetry.StartSpan(ctx, "ledger.Reverse")
	defer func() { telemetry.EndSpan(span, err) }()

	var original *domain.Transaction
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		orig, err := s.lockInStatus(ctx, tx, id, domain.TransactionStatusCompleted)
		if err != nil {
			return err
		}
		now := s.now()

		ref := orig.ReferenceNumber
		if ref == "" {
			ref = orig.TransactionID
		}
		req := &RecordRequest{
			MemberID:    orig.MemberID,
			Type:        orig.Type.Inverse(),
			Amount:      orig.Amount,
			Category:    orig.Category,
			Description: fmt.Sprintf("Reversal of %s: %s", orig.TransactionID, reason),
			Reference:   "REV-" + ref,
		}
		if req.Type == domain.TransactionTypeAdjustment {
			req.Direction = orig.Effect().Opposite()
		}
		rev, err := s.create(ctx, tx, req, now, &orig.ID)
		if err != nil {
			return err
		}
		if err := s.completeTx(ctx, tx, rev, &adminID, "Reversal: "+reason, now); err != nil {
			return err
		}

		orig.Status = domain.TransactionStatusReversed
		orig.ReversalReason = reason
		orig.UpdatedAt = now
		if err := tx.Transactions().Update(ctx, orig); err != nil {
			return err
		}
		memberID := orig.MemberID
		old, updated := statusChange(string(domain.TransactionStatusCompleted), string(orig.Status))
		updated["reversal_transaction_id"] = rev.TransactionID
		if err := WriteAudit(ctx, tx, AuditEntry{
			ActorID: &adminID, MemberID: &memberID, Action: "TRANSACTION_REVERSED",
			EntityType: "transaction", EntityID: orig.ID.String(), OldValues: old, NewValues: updated, Notes: reason,
		}, now); err != nil {
			return err
		}
		original, reversal = orig, rev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.InvalidateBalance(ctx, original.MemberID)
	s.logger.Info("Transaction reversed", map[string]interface{}{
		"transaction_id": original.TransactionID,
		"reversal_id":    reversal.TransactionID,
		"member_id":      original.MemberID,
		"old_status":     domain.TransactionStatusCompleted,
		"new_status":     original.Status,
	})
	s.notifier.Dispatch(original.MemberID, notification.EventTransactionReversed, map[string]interface{}{
		"transaction_id": original.TransactionID,
		"amount":         original.Amount,
		"reason":         reason,
	})
	return reversal, nil
}

// PostRequest describes a movement another component posts as already completed.
type PostRequest struct {
	MemberID    uuid.UUID
	Type        domain.TransactionType
	Amount      decimal.Decimal
	Direction   domain.Direction
	Category    string
	Description string
	Reference   string
	ActorID     *uuid.UUID
	Notes       string
}

// PostCompletedTx records and completes a transaction inside the caller's
// unit of work. The caller holds the member lock and must have written every
// loan or investment change first, since the balance recompute reads them.
// Call InvalidateBalance after the unit of work commits.
func (s *Service) PostCompletedTx(ctx context.Context, tx store.Tx, req PostRequest) (*domain.Transaction, error) {
	rec := &RecordRequest{
		MemberID:    req.MemberID,
		Type:        req.Type,
		Amount:      req.Amount,
		Direction:   req.Direction,
		Category:    req.Category,
		Description: req.Description,
		Reference:   req.Reference,
	}
	if err := s.validateRecord(rec); err != nil {
		return nil, err
	}
	now := s.now()
	txn, err := s.create(ctx, tx, rec, now, nil)
	if err != nil {
		return nil, err
	}
	if err := s.completeTx(ctx, tx, txn, req.ActorID, req.Notes, now); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		txn, err = tx.Transactions().FindByID(ctx, id)
		return err
	})
	return txn, err
}

func (s *Service) Receipt(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionReceipt, error) {
	var r *domain.TransactionReceipt
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		r, err = tx.Receipts().FindByTransaction(ctx, transactionID)
		return err
	})
	return r, err
}
