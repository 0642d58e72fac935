package loan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/ledger"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/money"
)

type GuaranteeRequest struct {
	ApplicationID uuid.UUID       `json:"application_id" validate:"required"`
	GuarantorID   uuid.UUID       `json:"guarantor_id" validate:"required"`
	Amount        decimal.Decimal `json:"guaranteed_amount" validate:"money"`
}

// AddGuarantor records a pending pledge. The running total of pending and
// confirmed pledges is checked under the application lock and may never
// exceed the requested amount.
func (s *Service) AddGuarantor(ctx context.Context, req *GuaranteeRequest) (*domain.LoanGuarantor, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}

	var g *domain.LoanGuarantor
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		app, err := lockApplication(ctx, tx, req.ApplicationID, domain.ApplicationStatusApproved, domain.ApplicationStatusPending)
		if err != nil {
			return err
		}
		if app.Status != domain.ApplicationStatusPending {
			return errors.NewInvalidState("loan application", app.ID.String(), string(app.Status), string(domain.ApplicationStatusPending))
		}
		if req.GuarantorID == app.ApplicantID {
			return errors.NewValidation("guarantor_id", "applicant cannot guarantee their own loan")
		}
		guarantor, err := tx.Members().FindByID(ctx, req.GuarantorID)
		if err != nil {
			return err
		}
		if !guarantor.IsApproved() {
			return errors.NewValidation("guarantor_id", "guarantor is not an approved member")
		}

		amount := money.Round(req.Amount)
		if amount.GreaterThan(app.AmountRequested) {
			return errors.NewLimitExceeded("guaranteed_amount", app.AmountRequested, amount)
		}
		pct := money.Round(amount.Div(app.AmountRequested).Mul(money.Hundred))
		if pct.LessThan(p.MinimumGuarantorPercentage) {
			return errors.NewValidation("guaranteed_amount",
				fmt.Sprintf("must cover at least %s%% of the requested amount", p.MinimumGuarantorPercentage.String()))
		}

		existing, err := tx.Guarantors().ListByApplication(ctx, app.ID)
		if err != nil {
			return err
		}
		total := amount
		for _, e := range existing {
			if e.Status.Counts() {
				total = total.Add(e.GuaranteedAmount)
			}
		}
		if total.GreaterThan(app.AmountRequested) {
			return errors.NewLimitExceeded("guarantee_coverage", app.AmountRequested, total)
		}

		now := s.now()
		g = &domain.LoanGuarantor{
			ID:                   uuid.New(),
			ApplicationID:        app.ID,
			GuarantorID:          req.GuarantorID,
			GuaranteedAmount:     amount,
			GuaranteedPercentage: pct,
			Status:               domain.GuarantorStatusPending,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.Guarantors().Create(ctx, g); err != nil {
			if errors.Is(err, errors.ErrAlreadyExists) {
				return errors.NewValidation("guarantor_id", "member already guarantees this application")
			}
			return err
		}
		guarantorID := g.GuarantorID
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &guarantorID, MemberID: &app.ApplicantID, Action: "GUARANTEE_ADDED",
			EntityType: "loan_guarantor", EntityID: g.ID.String(),
			NewValues: map[string]string{"status": string(g.Status), "guaranteed_amount": g.GuaranteedAmount.String()},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Guarantee added", map[string]interface{}{
		"guarantee_id":   g.ID,
		"application_id": g.ApplicationID,
		"guarantor_id":   g.GuarantorID,
		"amount":         g.GuaranteedAmount.String(),
	})
	return g, nil
}

// RespondGuarantee lets the guarantor accept or decline a pending pledge.
func (s *Service) RespondGuarantee(ctx context.Context, guaranteeID, guarantorID uuid.UUID, accept bool, notes string) (*domain.LoanGuarantor, error) {
	to := domain.GuarantorStatusDeclined
	if accept {
		to = domain.GuarantorStatusConfirmed
	}
	return s.moveGuarantee(ctx, guaranteeID, guarantorID, to, notes, domain.GuarantorStatusPending)
}

// WithdrawGuarantee releases a pledge while the application is still pending.
func (s *Service) WithdrawGuarantee(ctx context.Context, guaranteeID, guarantorID uuid.UUID) (*domain.LoanGuarantor, error) {
	return s.moveGuarantee(ctx, guaranteeID, guarantorID, domain.GuarantorStatusWithdrawn, "",
		domain.GuarantorStatusPending, domain.GuarantorStatusConfirmed)
}

func (s *Service) moveGuarantee(ctx context.Context, guaranteeID, guarantorID uuid.UUID, to domain.GuarantorStatus, notes string, from ...domain.GuarantorStatus) (*domain.LoanGuarantor, error) {
	var (
		g    *domain.LoanGuarantor
		prev domain.GuarantorStatus
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Guarantors().FindByID(ctx, guaranteeID)
		if err != nil {
			return err
		}
		if found.GuarantorID != guarantorID {
			return errors.NotFound(errors.ErrGuarantorNotFound, "loan guarantor", guaranteeID.String())
		}
		app, err := lockApplication(ctx, tx, found.ApplicationID, domain.ApplicationStatusApproved, domain.ApplicationStatusPending)
		if err != nil {
			return err
		}
		if app.Status != domain.ApplicationStatusPending {
			return errors.NewInvalidState("loan application", app.ID.String(), string(app.Status), string(domain.ApplicationStatusPending))
		}
		g, err = tx.Guarantors().LockByID(ctx, guaranteeID)
		if err != nil {
			return err
		}
		allowed := false
		names := make([]string, len(from))
		for i, f := range from {
			names[i] = string(f)
			allowed = allowed || g.Status == f
		}
		if !allowed {
			return errors.NewInvalidState("loan guarantor", g.ID.String(), string(g.Status), names...)
		}

		now := s.now()
		prev = g.Status
		g.Status = to
		if notes != "" {
			g.ResponseNotes = notes
		}
		if prev == domain.GuarantorStatusPending {
			g.RespondedAt = &now
		}
		g.UpdatedAt = now
		if err := tx.Guarantors().Update(ctx, g); err != nil {
			return err
		}
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &guarantorID, MemberID: &app.ApplicantID, Action: "GUARANTEE_" + strings.ToUpper(string(to)),
			EntityType: "loan_guarantor", EntityID: g.ID.String(),
			OldValues: map[string]string{"status": string(prev)},
			NewValues: map[string]string{"status": string(to)},
			Notes:     notes,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Guarantee status changed", map[string]interface{}{
		"guarantee_id":   g.ID,
		"application_id": g.ApplicationID,
		"guarantor_id":   g.GuarantorID,
		"old_status":     prev,
		"new_status":     g.Status,
	})
	return g, nil
}

// Guarantees lists the pledges on an application.
func (s *Service) Guarantees(ctx context.Context, applicationID uuid.UUID) ([]*domain.LoanGuarantor, error) {
	var out []*domain.LoanGuarantor
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Applications().FindByID(ctx, applicationID); err != nil {
			return err
		}
		var err error
		out, err = tx.Guarantors().ListByApplication(ctx, applicationID)
		return err
	})
	return out, err
}
