package investment

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

type TargetRequest struct {
	TargetType   domain.TargetType `json:"target_type" validate:"required,oneof=personal sacco_wide"`
	Name         string            `json:"name" validate:"required,max=100"`
	Description  string            `json:"description"`
	TargetAmount decimal.Decimal   `json:"target_amount" validate:"money"`
	PeriodType   domain.PeriodType `json:"period_type" validate:"required,oneof=monthly quarterly annually"`
	MemberID     *uuid.UUID        `json:"member_id,omitempty"`
	StartDate    time.Time         `json:"start_date" validate:"required"`
	EndDate      time.Time         `json:"end_date" validate:"required"`
}

// TargetProgress is a target with its derived progress figures.
type TargetProgress struct {
	*domain.InvestmentTarget
	ProgressPercentage decimal.Decimal `json:"progress_percentage"`
	RemainingAmount    decimal.Decimal `json:"remaining_amount"`
	IsAchieved         bool            `json:"is_achieved"`
}

func progress(t *domain.InvestmentTarget) *TargetProgress {
	return &TargetProgress{
		InvestmentTarget:   t,
		ProgressPercentage: t.ProgressPercentage(),
		RemainingAmount:    t.RemainingAmount(),
		IsAchieved:         t.IsAchieved(),
	}
}

// CreateTarget stores a target with its current amount already summed.
// Personal targets belong to one member; sacco_wide targets to nobody.
func (s *Service) CreateTarget(ctx context.Context, req *TargetRequest, createdBy uuid.UUID) (*TargetProgress, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	switch {
	case req.TargetType == domain.TargetTypePersonal && req.MemberID == nil:
		return nil, errors.NewValidation("member_id", "is required for personal targets")
	case req.TargetType == domain.TargetTypeSaccoWide && req.MemberID != nil:
		return nil, errors.NewValidation("member_id", "must be empty for sacco_wide targets")
	case req.EndDate.Before(req.StartDate):
		return nil, errors.NewValidation("end_date", "must not be before start_date")
	}

	var t *domain.InvestmentTarget
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if req.MemberID != nil {
			if _, err := tx.Members().FindByID(ctx, *req.MemberID); err != nil {
				return err
			}
		}
		now := s.now()
		t = &domain.InvestmentTarget{
			ID:           uuid.New(),
			TargetType:   req.TargetType,
			Name:         req.Name,
			Description:  req.Description,
			TargetAmount: money.Round(req.TargetAmount),
			PeriodType:   req.PeriodType,
			MemberID:     req.MemberID,
			StartDate:    req.StartDate.UTC(),
			EndDate:      req.EndDate.UTC(),
			IsActive:     true,
			CreatedBy:    createdBy,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		current, err := tx.Investments().SumConfirmedBetween(ctx, t.MemberID, t.WindowStart(), t.WindowEnd())
		if err != nil {
			return err
		}
		t.CurrentAmount = current
		if err := tx.Targets().Create(ctx, t); err != nil {
			return err
		}
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &createdBy, MemberID: t.MemberID, Action: "TARGET_CREATED",
			EntityType: "investment_target", EntityID: t.ID.String(),
			NewValues: map[string]string{
				"target_type":   string(t.TargetType),
				"target_amount": t.TargetAmount.String(),
				"start_date":    t.StartDate.Format("2006-01-02"),
				"end_date":      t.EndDate.Format("2006-01-02"),
			},
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Investment target created", map[string]interface{}{
		"target_id":     t.ID,
		"target_type":   t.TargetType,
		"target_amount": t.TargetAmount.String(),
	})
	return progress(t), nil
}

// GetTarget recomputes the target's current amount from confirmed
// investments and persists it when it moved.
func (s *Service) GetTarget(ctx context.Context, id uuid.UUID) (*TargetProgress, error) {
	var t *domain.InvestmentTarget
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		t, err = s.refreshTargetTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return progress(t), nil
}

func (s *Service) refreshTargetTx(ctx context.Context, tx store.Tx, id uuid.UUID) (*domain.InvestmentTarget, error) {
	t, err := tx.Targets().LockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Inactive targets keep the figure they were closed with.
	if !t.IsActive {
		return t, nil
	}
	current, err := tx.Investments().SumConfirmedBetween(ctx, t.MemberID, t.WindowStart(), t.WindowEnd())
	if err != nil {
		return nil, err
	}
	if current.Equal(t.CurrentAmount) {
		return t, nil
	}
	t.CurrentAmount = current
	t.UpdatedAt = s.now()
	if err := tx.Targets().Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTargets returns the member's personal targets and every sacco_wide
// target, each refreshed.
func (s *Service) ListTargets(ctx context.Context, memberID uuid.UUID) ([]*TargetProgress, error) {
	var out []*TargetProgress
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		targets, err := tx.Targets().ListForMember(ctx, memberID)
		if err != nil {
			return err
		}
		out = make([]*TargetProgress, 0, len(targets))
		for _, found := range targets {
			t, err := s.refreshTargetTx(ctx, tx, found.ID)
			if err != nil {
				return err
			}
			out = append(out, progress(t))
		}
		return nil
	})
	return out, err
}

// DeactivateTarget freezes a target at its latest current amount.
func (s *Service) DeactivateTarget(ctx context.Context, id, adminID uuid.UUID) (*TargetProgress, error) {
	var t *domain.InvestmentTarget
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if t, err = s.refreshTargetTx(ctx, tx, id); err != nil {
			return err
		}
		if !t.IsActive {
			return errors.NewInvalidState("investment target", t.ID.String(), "inactive", "active")
		}
		now := s.now()
		t.IsActive = false
		t.UpdatedAt = now
		if err := tx.Targets().Update(ctx, t); err != nil {
			return err
		}
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &adminID, MemberID: t.MemberID, Action: "TARGET_DEACTIVATED",
			EntityType: "investment_target", EntityID: t.ID.String(),
			OldValues: map[string]string{"is_active": "true"},
			NewValues: map[string]string{"is_active": "false", "current_amount": t.CurrentAmount.String()},
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Investment target deactivated", map[string]interface{}{
		"target_id":      t.ID,
		"current_amount": t.CurrentAmount.String(),
	})
	return progress(t), nil
}
