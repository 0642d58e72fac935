// Package investment records member contributions and keeps the per-member
// InvestmentSummary projection that loan eligibility and dividends read.
package investment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/ledger"
	"sacco/internal/notification"
	"sacco/internal/policy"
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
	policy    policy.Source
	ledger    *ledger.Service
	cache     cache.Cache
	cacheTTL  time.Duration
	notifier  *notification.Dispatcher
	logger    logger.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewService(st store.Store, src policy.Source, l *ledger.Service, c cache.Cache, cacheTTL time.Duration, notifier *notification.Dispatcher, log logger.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		store:     st,
		policy:    src,
		ledger:    l,
		cache:     c,
		cacheTTL:  cacheTTL,
		notifier:  notifier,
		logger:    log,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type RecordRequest struct {
	MemberID       uuid.UUID             `json:"member_id" validate:"required"`
	Type           domain.InvestmentType `json:"investment_type" validate:"required,oneof=share_capital monthly_investment special_deposit"`
	Amount         decimal.Decimal       `json:"amount" validate:"money"`
	PaymentMethod  string                `json:"payment_method" validate:"max=50"`
	Reference      string                `json:"reference" validate:"max=100"`
	Notes          string                `json:"notes"`
	InvestmentDate *time.Time            `json:"investment_date,omitempty"`
}

// RecordInvestment creates a pending contribution. Share capital that alone
// exceeds the cap is refused here; the binding cap check happens on confirm.
func (s *Service) RecordInvestment(ctx context.Context, req *RecordRequest) (*domain.Investment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}
	amount := money.Round(req.Amount)
	switch req.Type {
	case domain.InvestmentTypeMonthlyInvestment:
		if amount.LessThan(p.MinimumMonthlyInvestment) {
			return nil, errors.NewValidation("amount",
				fmt.Sprintf("monthly investment must be at least %s", money.Format(p.MinimumMonthlyInvestment)))
		}
	case domain.InvestmentTypeShareCapital:
		if amount.GreaterThan(p.ShareCapitalAmount) {
			return nil, errors.NewLimitExceeded("share_capital_amount", p.ShareCapitalAmount, amount)
		}
	}

	now := s.now()
	inv := &domain.Investment{
		ID:             uuid.New(),
		MemberID:       req.MemberID,
		Type:           req.Type,
		Amount:         amount,
		Status:         domain.InvestmentStatusPending,
		PaymentMethod:  req.PaymentMethod,
		Reference:      req.Reference,
		Notes:          req.Notes,
		InvestmentDate: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.InvestmentDate != nil {
		inv.InvestmentDate = req.InvestmentDate.UTC()
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.Members().FindByID(ctx, req.MemberID)
		if err != nil {
			return err
		}
		if !m.IsApproved() {
			return errors.NewValidation("member_id", "member is not approved")
		}
		return tx.Investments().Create(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Investment recorded", map[string]interface{}{
		"investment_id": inv.ID,
		"member_id":     inv.MemberID,
		"type":          inv.Type,
		"amount":        inv.Amount.String(),
	})
	return inv, nil
}

// ConfirmInvestment moves a pending contribution to confirmed. The share
// capital cap is checked against the confirmed total while the member row is
// locked, so two racing confirmations cannot both pass.
func (s *Service) ConfirmInvestment(ctx context.Context, id, adminID uuid.UUID, notes string) (inv *domain.Investment, err error) {
	ctx, span := telemetry.StartSpan(ctx, "investment.Confirm")
	defer func() { telemetry.EndSpan(span, err) }()

	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Investments().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Members().LockByID(ctx, found.MemberID); err != nil {
			return err
		}
		i, err := tx.Investments().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if i.Status != domain.InvestmentStatusPending {
			return errors.NewInvalidState("investment", i.ID.String(), string(i.Status), string(domain.InvestmentStatusPending))
		}
		if i.Type == domain.InvestmentTypeShareCapital {
			confirmed, err := tx.Investments().SumConfirmed(ctx, i.MemberID, domain.InvestmentTypeShareCapital)
			if err != nil {
				return err
			}
			if attempted := confirmed.Add(i.Amount); attempted.GreaterThan(p.ShareCapitalAmount) {
				return errors.NewLimitExceeded("share_capital_amount", p.ShareCapitalAmount, attempted)
			}
		}

		now := s.now()
		i.Status = domain.InvestmentStatusConfirmed
		i.ConfirmedBy = &adminID
		i.ConfirmedAt = &now
		if notes != "" {
			i.Notes = notes
		}
		i.UpdatedAt = now
		if err := tx.Investments().Update(ctx, i); err != nil {
			return err
		}
		if _, err := s.UpdateSummaryTx(ctx, tx, i.MemberID, p, now); err != nil {
			return err
		}
		if _, err := s.ledger.RecomputeBalanceTx(ctx, tx, i.MemberID, now); err != nil {
			return err
		}
		memberID := i.MemberID
		if err := ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &adminID, MemberID: &memberID, Action: "INVESTMENT_CONFIRMED",
			EntityType: "investment", EntityID: i.ID.String(),
			OldValues: map[string]string{"status": string(domain.InvestmentStatusPending)},
			NewValues: map[string]string{"status": string(i.Status), "amount": i.Amount.String()},
			Notes:     notes,
		}, now); err != nil {
			return err
		}
		inv = i
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx, inv.MemberID)
	s.ledger.InvalidateBalance(ctx, inv.MemberID)
	s.logger.Info("Investment confirmed", map[string]interface{}{
		"investment_id": inv.ID,
		"member_id":     inv.MemberID,
		"old_status":    domain.InvestmentStatusPending,
		"new_status":    inv.Status,
	})
	s.notifier.Dispatch(inv.MemberID, notification.EventInvestmentConfirmed, map[string]interface{}{
		"investment_type": inv.Type,
		"amount":          inv.Amount,
	})
	return inv, nil
}

// RejectInvestment moves a pending contribution to rejected.
func (s *Service) RejectInvestment(ctx context.Context, id, adminID uuid.UUID, reason string) (*domain.Investment, error) {
	if reason == "" {
		return nil, errors.NewValidation("reason", "is required")
	}
	var inv *domain.Investment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Investments().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Members().LockByID(ctx, found.MemberID); err != nil {
			return err
		}
		i, err := tx.Investments().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if i.Status != domain.InvestmentStatusPending {
			return errors.NewInvalidState("investment", i.ID.String(), string(i.Status), string(domain.InvestmentStatusPending))
		}
		now := s.now()
		i.Status = domain.InvestmentStatusRejected
		i.RejectionReason = reason
		i.UpdatedAt = now
		if err := tx.Investments().Update(ctx, i); err != nil {
			return err
		}
		memberID := i.MemberID
		if err := ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &adminID, MemberID: &memberID, Action: "INVESTMENT_REJECTED",
			EntityType: "investment", EntityID: i.ID.String(),
			OldValues: map[string]string{"status": string(domain.InvestmentStatusPending)},
			NewValues: map[string]string{"status": string(i.Status)},
			Notes:     reason,
		}, now); err != nil {
			return err
		}
		inv = i
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Investment rejected", map[string]interface{}{
		"investment_id": inv.ID,
		"member_id":     inv.MemberID,
		"old_status":    domain.InvestmentStatusPending,
		"new_status":    inv.Status,
	})
	s.notifier.Dispatch(inv.MemberID, notification.EventInvestmentRejected, map[string]interface{}{
		"amount": inv.Amount,
		"reason": reason,
	})
	return inv, nil
}
