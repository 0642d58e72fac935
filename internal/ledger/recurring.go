package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/money"
	"sacco/pkg/telemetry"
)

type RecurringRequest struct {
	MemberID      uuid.UUID              `json:"member_id" validate:"required"`
	Name          string                 `json:"name" validate:"required,max=100"`
	Description   string                 `json:"description"`
	Type          domain.TransactionType `json:"transaction_type" validate:"required"`
	Category      string                 `json:"category" validate:"max=50"`
	Amount        decimal.Decimal        `json:"amount" validate:"money"`
	Frequency     domain.Frequency       `json:"frequency" validate:"required,oneof=daily weekly monthly quarterly annually"`
	StartDate     time.Time              `json:"start_date" validate:"required"`
	EndDate       *time.Time             `json:"end_date,omitempty"`
	MaxExecutions *int                   `json:"max_executions,omitempty" validate:"omitempty,min=1"`
	AutoExecute   bool                   `json:"auto_execute"`
}

// CreateRecurring stores an active template whose first run is on StartDate.
func (s *Service) CreateRecurring(ctx context.Context, req *RecurringRequest, createdBy uuid.UUID) (*domain.RecurringTransaction, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, errors.NewValidation("transaction_type", fmt.Sprintf("unknown type %q", req.Type))
	}
	// Adjustments carry a direction chosen per posting.
	if req.Type == domain.TransactionTypeAdjustment {
		return nil, errors.NewValidation("transaction_type", "adjustments cannot recur")
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, errors.NewValidation("end_date", "must not be before start_date")
	}

	var rt *domain.RecurringTransaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Members().FindByID(ctx, req.MemberID); err != nil {
			return err
		}
		now := s.now()
		rt = &domain.RecurringTransaction{
			ID:                uuid.New(),
			Name:              req.Name,
			Description:       req.Description,
			MemberID:          req.MemberID,
			Type:              req.Type,
			Category:          req.Category,
			Amount:            money.Round(req.Amount),
			Frequency:         req.Frequency,
			StartDate:         req.StartDate.UTC(),
			EndDate:           req.EndDate,
			NextExecutionDate: req.StartDate.UTC(),
			Status:            domain.RecurringStatusActive,
			MaxExecutions:     req.MaxExecutions,
			AutoExecute:       req.AutoExecute,
			CreatedBy:         createdBy,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Recurring().Create(ctx, rt); err != nil {
			return err
		}
		memberID := rt.MemberID
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: &createdBy, MemberID: &memberID, Action: "RECURRING_CREATED",
			EntityType: "recurring_transaction", EntityID: rt.ID.String(),
			NewValues: map[string]string{
				"transaction_type": string(rt.Type),
				"amount":           rt.Amount.String(),
				"frequency":        string(rt.Frequency),
				"auto_execute":     strconv.FormatBool(rt.AutoExecute),
			},
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Recurring transaction created", map[string]interface{}{
		"recurring_id": rt.ID,
		"member_id":    rt.MemberID,
		"type":         rt.Type,
		"amount":       rt.Amount.String(),
		"frequency":    rt.Frequency,
	})
	return rt, nil
}

func (s *Service) PauseRecurring(ctx context.Context, id, actorID uuid.UUID) (*domain.RecurringTransaction, error) {
	return s.moveRecurring(ctx, id, actorID, domain.RecurringStatusPaused, "RECURRING_PAUSED", domain.RecurringStatusActive)
}

func (s *Service) ResumeRecurring(ctx context.Context, id, actorID uuid.UUID) (*domain.RecurringTransaction, error) {
	return s.moveRecurring(ctx, id, actorID, domain.RecurringStatusActive, "RECURRING_RESUMED", domain.RecurringStatusPaused)
}

func (s *Service) CancelRecurring(ctx context.Context, id, actorID uuid.UUID) (*domain.RecurringTransaction, error) {
	return s.moveRecurring(ctx, id, actorID, domain.RecurringStatusCancelled, "RECURRING_CANCELLED",
		domain.RecurringStatusActive, domain.RecurringStatusPaused)
}

func (s *Service) moveRecurring(ctx context.Context, id, actorID uuid.UUID, to domain.RecurringStatus, action string, from ...domain.RecurringStatus) (*domain.RecurringTransaction, error) {
	var (
		rt  *domain.RecurringTransaction
		was domain.RecurringStatus
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rt, err = tx.Recurring().LockByID(ctx, id)
		if err != nil {
			return err
		}
		was = rt.Status
		if !recurringIn(rt.Status, from) {
			names := make([]string, len(from))
			for i, f := range from {
				names[i] = string(f)
			}
			return errors.NewInvalidState("recurring transaction", rt.ID.String(), string(rt.Status), names...)
		}
		now := s.now()
		rt.Status = to
		rt.UpdatedAt = now
		if err := tx.Recurring().Update(ctx, rt); err != nil {
			return err
		}
		memberID := rt.MemberID
		old, updated := statusChange(string(was), string(to))
		return WriteAudit(ctx, tx, AuditEntry{
			ActorID: &actorID, MemberID: &memberID, Action: action,
			EntityType: "recurring_transaction", EntityID: rt.ID.String(), OldValues: old, NewValues: updated,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Recurring transaction status changed", map[string]interface{}{
		"recurring_id": rt.ID,
		"old_status":   was,
		"new_status":   to,
	})
	return rt, nil
}

func recurringIn(status domain.RecurringStatus, set []domain.RecurringStatus) bool {
	for _, s := range set {
		if status == s {
			return true
		}
	}
	return false
}

// ExecuteRecurring runs an active template once, whether or not it is due.
// The transaction is posted when the template auto-executes and left pending
// for an administrator otherwise.
func (s *Service) ExecuteRecurring(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (txn *domain.Transaction, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.ExecuteRecurring")
	defer func() { telemetry.EndSpan(span, err) }()

	var rt *domain.RecurringTransaction
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Recurring().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Members().LockByID(ctx, found.MemberID); err != nil {
			return err
		}
		if rt, err = tx.Recurring().LockByID(ctx, id); err != nil {
			return err
		}
		if rt.Status != domain.RecurringStatusActive {
			return errors.NewInvalidState("recurring transaction", rt.ID.String(), string(rt.Status), string(domain.RecurringStatusActive))
		}
		txn, err = s.executeRecurringTx(ctx, tx, rt, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterRecurring(ctx, rt, txn)
	return txn, nil
}

// ExecuteDueRecurring runs every active template due as of now, one template
// per unit of work. A failing template is logged and skipped; the error only
// reports a failure to list the due templates.
func (s *Service) ExecuteDueRecurring(ctx context.Context, now time.Time) (int, error) {
	var ids []uuid.UUID
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		due, err := tx.Recurring().ListDue(ctx, now)
		if err != nil {
			return err
		}
		for _, rt := range due {
			ids = append(ids, rt.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	executed := 0
	for _, id := range ids {
		var (
			rt  *domain.RecurringTransaction
			txn *domain.Transaction
		)
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			found, err := tx.Recurring().FindByID(ctx, id)
			if err != nil {
				return err
			}
			if _, err := tx.Members().LockByID(ctx, found.MemberID); err != nil {
				return err
			}
			if rt, err = tx.Recurring().LockByID(ctx, id); err != nil {
				return err
			}
			// Paused, cancelled or already run since the listing.
			if !rt.Due(now) {
				rt = nil
				return nil
			}
			txn, err = s.executeRecurringTx(ctx, tx, rt, nil)
			return err
		})
		if err != nil {
			s.logger.Error("Recurring transaction failed", map[string]interface{}{
				"recurring_id": id,
				"error":        err.Error(),
			})
			continue
		}
		if rt != nil {
			executed++
			s.afterRecurring(ctx, rt, txn)
		}
	}
	return executed, nil
}

func (s *Service) executeRecurringTx(ctx context.Context, tx store.Tx, rt *domain.RecurringTransaction, actorID *uuid.UUID) (*domain.Transaction, error) {
	now := s.now()
	req := &RecordRequest{
		MemberID:    rt.MemberID,
		Type:        rt.Type,
		Amount:      rt.Amount,
		Category:    rt.Category,
		Description: "Recurring: " + rt.Description,
		Reference:   fmt.Sprintf("REC-%s-%d", rt.ID.String()[:8], rt.ExecutionCount+1),
	}
	var (
		txn *domain.Transaction
		err error
	)
	if rt.AutoExecute {
		txn, err = s.PostCompletedTx(ctx, tx, PostRequest{
			MemberID:    req.MemberID,
			Type:        req.Type,
			Amount:      req.Amount,
			Category:    req.Category,
			Description: req.Description,
			Reference:   req.Reference,
			ActorID:     actorID,
			Notes:       "recurring " + rt.Name,
		})
	} else {
		if err = s.validateRecord(req); err == nil {
			txn, err = s.create(ctx, tx, req, now, nil)
		}
	}
	if err != nil {
		return nil, err
	}

	from := rt.Status
	rt.Advance(now)
	rt.UpdatedAt = now
	if err := tx.Recurring().Update(ctx, rt); err != nil {
		return nil, err
	}
	memberID := rt.MemberID
	if err := WriteAudit(ctx, tx, AuditEntry{
		ActorID: actorID, MemberID: &memberID, Action: "RECURRING_EXECUTED",
		EntityType: "recurring_transaction", EntityID: rt.ID.String(),
		OldValues: map[string]string{"status": string(from)},
		NewValues: map[string]string{
			"status":              string(rt.Status),
			"transaction_id":      txn.TransactionID,
			"execution_count":     strconv.Itoa(rt.ExecutionCount),
			"next_execution_date": rt.NextExecutionDate.Format("2006-01-02"),
		},
	}, now); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) afterRecurring(ctx context.Context, rt *domain.RecurringTransaction, txn *domain.Transaction) {
	if txn.Status == domain.TransactionStatusCompleted {
		s.InvalidateBalance(ctx, txn.MemberID)
	}
	s.logger.Info("Recurring transaction executed", map[string]interface{}{
		"recurring_id":        rt.ID,
		"transaction_id":      txn.TransactionID,
		"transaction_status":  txn.Status,
		"execution_count":     rt.ExecutionCount,
		"next_execution_date": rt.NextExecutionDate.Format("2006-01-02"),
		"status":              rt.Status,
	})
}

func (s *Service) GetRecurring(ctx context.Context, id uuid.UUID) (*domain.RecurringTransaction, error) {
	var rt *domain.RecurringTransaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rt, err = tx.Recurring().FindByID(ctx, id)
		return err
	})
	return rt, err
}

func (s *Service) ListRecurring(ctx context.Context, memberID uuid.UUID) ([]*domain.RecurringTransaction, error) {
	var out []*domain.RecurringTransaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Recurring().ListByMember(ctx, memberID)
		return err
	})
	return out, err
}
