package loan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/ledger"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/money"
)

type PenaltyRequest struct {
	LoanID      uuid.UUID          `json:"loan_id" validate:"required"`
	AdminID     uuid.UUID          `json:"admin_id" validate:"required"`
	Type        domain.PenaltyType `json:"penalty_type" validate:"required,oneof=late_payment overdue_interest processing_fee other"`
	Amount      decimal.Decimal    `json:"amount" validate:"money"`
	DaysOverdue int                `json:"days_overdue" validate:"min=0"`
	Reason      string             `json:"reason" validate:"required"`
}

// ApplyPenalty charges a penalty to a running loan and refreshes the loan's
// penalty total.
func (s *Service) ApplyPenalty(ctx context.Context, req *PenaltyRequest) (*domain.LoanPenalty, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	var p *domain.LoanPenalty
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		l, err := lockLoan(ctx, tx, req.LoanID)
		if err != nil {
			return err
		}
		if l.Status == domain.LoanStatusPaidOff || l.Status == domain.LoanStatusWrittenOff {
			return errors.NewInvalidState("loan", l.LoanNumber, string(l.Status),
				string(domain.LoanStatusActive), string(domain.LoanStatusOverdue), string(domain.LoanStatusDefaulted))
		}
		now := s.now()
		p = &domain.LoanPenalty{
			ID:          uuid.New(),
			LoanID:      l.ID,
			PenaltyType: req.Type,
			Amount:      money.Round(req.Amount),
			DaysOverdue: req.DaysOverdue,
			Reason:      req.Reason,
			AppliedBy:   req.AdminID,
			AppliedAt:   now,
		}
		if err := tx.Penalties().Create(ctx, p); err != nil {
			return err
		}
		if err := refreshPenaltyTotal(ctx, tx, l, now); err != nil {
			return err
		}
		memberID := l.BorrowerID
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &req.AdminID, MemberID: &memberID, Action: "PENALTY_APPLIED",
			EntityType: "loan_penalty", EntityID: p.ID.String(),
			NewValues: map[string]string{"amount": p.Amount.String(), "penalty_amount": l.PenaltyAmount.String()},
			Notes:     req.Reason,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Penalty applied", map[string]interface{}{
		"penalty_id": p.ID,
		"loan_id":    p.LoanID,
		"type":       p.PenaltyType,
		"amount":     p.Amount.String(),
	})
	return p, nil
}

// WaivePenalty stops a penalty from counting toward the loan's penalty total.
func (s *Service) WaivePenalty(ctx context.Context, penaltyID, adminID uuid.UUID, reason string) (*domain.LoanPenalty, error) {
	if reason == "" {
		return nil, errors.NewValidation("reason", "is required")
	}
	var p *domain.LoanPenalty
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Penalties().FindByID(ctx, penaltyID)
		if err != nil {
			return err
		}
		l, err := lockLoan(ctx, tx, found.LoanID)
		if err != nil {
			return err
		}
		p, err = tx.Penalties().LockByID(ctx, penaltyID)
		if err != nil {
			return err
		}
		if p.IsWaived {
			return errors.NewInvalidState("loan penalty", p.ID.String(), "waived", "unwaived")
		}
		now := s.now()
		p.IsWaived = true
		p.WaivedBy = &adminID
		p.WaivedAt = &now
		p.WaiverReason = reason
		if err := tx.Penalties().Update(ctx, p); err != nil {
			return err
		}
		if err := refreshPenaltyTotal(ctx, tx, l, now); err != nil {
			return err
		}
		memberID := l.BorrowerID
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &adminID, MemberID: &memberID, Action: "PENALTY_WAIVED",
			EntityType: "loan_penalty", EntityID: p.ID.String(),
			OldValues: map[string]bool{"is_waived": false},
			NewValues: map[string]bool{"is_waived": true},
			Notes:     reason,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Penalty waived", map[string]interface{}{
		"penalty_id": p.ID,
		"loan_id":    p.LoanID,
		"amount":     p.Amount.String(),
	})
	return p, nil
}

// refreshPenaltyTotal sets penalty_amount to the sum of unwaived penalties.
func refreshPenaltyTotal(ctx context.Context, tx store.Tx, l *domain.Loan, now time.Time) error {
	total, err := tx.Penalties().SumUnwaived(ctx, l.ID)
	if err != nil {
		return err
	}
	l.PenaltyAmount = total
	l.UpdatedAt = now
	return tx.Loans().Update(ctx, l)
}
