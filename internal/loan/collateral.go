package loan

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/ledger"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/money"
)

type CollateralRequest struct {
	ApplicationID     uuid.UUID             `json:"application_id" validate:"required"`
	CollateralType    domain.CollateralType `json:"collateral_type" validate:"required,oneof=property vehicle equipment savings shares other"`
	Description       string                `json:"description" validate:"required"`
	EstimatedValue    decimal.Decimal       `json:"estimated_value" validate:"money"`
	OwnershipDocument string                `json:"ownership_document" validate:"max=255"`
	ValuationReport   string                `json:"valuation_report" validate:"max=255"`
}

// AddCollateral pledges an asset against an application that has not yet
// been disbursed, rejected or cancelled.
func (s *Service) AddCollateral(ctx context.Context, req *CollateralRequest, actorID uuid.UUID) (*domain.LoanCollateral, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var c *domain.LoanCollateral
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Applications().FindByID(ctx, req.ApplicationID)
		if err != nil {
			return err
		}
		if _, err := tx.Members().LockByID(ctx, found.ApplicantID); err != nil {
			return err
		}
		app, err := tx.Applications().LockByID(ctx, req.ApplicationID)
		if err != nil {
			return err
		}
		if app.Status != domain.ApplicationStatusPending && app.Status != domain.ApplicationStatusApproved {
			return errors.NewInvalidState("loan application", app.ID.String(), string(app.Status),
				string(domain.ApplicationStatusPending), string(domain.ApplicationStatusApproved))
		}

		now := s.now()
		c = &domain.LoanCollateral{
			ID:                uuid.New(),
			ApplicationID:     app.ID,
			CollateralType:    req.CollateralType,
			Description:       req.Description,
			EstimatedValue:    money.Round(req.EstimatedValue),
			OwnershipDocument: req.OwnershipDocument,
			ValuationReport:   req.ValuationReport,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Collateral().Create(ctx, c); err != nil {
			return err
		}
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &actorID, MemberID: &app.ApplicantID, Action: "COLLATERAL_ADDED",
			EntityType: "loan_collateral", EntityID: c.ID.String(),
			NewValues: map[string]string{
				"application_id":  app.ID.String(),
				"collateral_type": string(c.CollateralType),
				"estimated_value": c.EstimatedValue.String(),
			},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Collateral added", map[string]interface{}{
		"collateral_id":   c.ID,
		"application_id":  c.ApplicationID,
		"collateral_type": c.CollateralType,
		"estimated_value": c.EstimatedValue.String(),
	})
	return c, nil
}

// VerifyCollateral marks a pledge as checked by an administrator. A pledge is
// verified once.
func (s *Service) VerifyCollateral(ctx context.Context, id, adminID uuid.UUID, notes string) (*domain.LoanCollateral, error) {
	var c *domain.LoanCollateral
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if c, err = tx.Collateral().LockByID(ctx, id); err != nil {
			return err
		}
		if c.IsVerified {
			return errors.NewInvalidState("loan collateral", c.ID.String(), "verified", "unverified")
		}
		app, err := tx.Applications().FindByID(ctx, c.ApplicationID)
		if err != nil {
			return err
		}

		now := s.now()
		c.IsVerified = true
		c.VerifiedBy = &adminID
		c.VerificationDate = &now
		c.VerificationNotes = notes
		c.UpdatedAt = now
		if err := tx.Collateral().Update(ctx, c); err != nil {
			return err
		}
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &adminID, MemberID: &app.ApplicantID, Action: "COLLATERAL_VERIFIED",
			EntityType: "loan_collateral", EntityID: c.ID.String(),
			OldValues: map[string]string{"is_verified": "false"},
			NewValues: map[string]string{"is_verified": "true"},
			Notes:     notes,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Collateral verified", map[string]interface{}{
		"collateral_id":  c.ID,
		"application_id": c.ApplicationID,
		"verified_by":    adminID,
	})
	return c, nil
}

func (s *Service) Collateral(ctx context.Context, applicationID uuid.UUID) ([]*domain.LoanCollateral, error) {
	var out []*domain.LoanCollateral
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Applications().FindByID(ctx, applicationID); err != nil {
			return err
		}
		var err error
		out, err = tx.Collateral().ListByApplication(ctx, applicationID)
		return err
	})
	return out, err
}
