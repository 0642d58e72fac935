package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/ledger"
	"sacco/internal/notification"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/money"
	"sacco/pkg/telemetry"
)

type DisburseRequest struct {
	ApplicationID uuid.UUID        `json:"application_id" validate:"required"`
	AdminID       uuid.UUID        `json:"admin_id" validate:"required"`
	Reference     string           `json:"disbursement_reference" validate:"max=100"`
	Cost          *decimal.Decimal `json:"disbursement_cost,omitempty"`
}

// Disburse turns an approved application into an active loan, lays out its
// schedule and credits the principal to the member's ledger, all in one unit
// of work.
func (s *Service) Disburse(ctx context.Context, req *DisburseRequest) (loan *domain.Loan, err error) {
	ctx, span := telemetry.StartSpan(ctx, "loan.Disburse")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Cost != nil && req.Cost.IsNegative() {
		return nil, errors.NewValidation("disbursement_cost", "must not be negative")
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		app, err := lockApplication(ctx, tx, req.ApplicationID, domain.ApplicationStatusDisbursed, domain.ApplicationStatusApproved)
		if err != nil {
			return err
		}
		// Approval checked this too, but another application may have been
		// disbursed since. The member row is locked now.
		open, err := tx.Loans().ListByBorrower(ctx, app.ApplicantID, domain.LoanStatusActive, domain.LoanStatusOverdue)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return &errors.EligibilityError{Violations: []string{"member already has an active or overdue loan " + open[0].LoanNumber}}
		}
		now := s.now()
		l := &domain.Loan{
			ID:                     uuid.New(),
			ApplicationID:          app.ID,
			BorrowerID:             app.ApplicantID,
			PrincipalAmount:        app.AmountApproved,
			InterestRate:           app.InterestRate,
			RepaymentPeriodMonths:  app.RepaymentPeriodMonths,
			MonthlyPayment:         app.MonthlyPayment,
			TotalInterest:          app.TotalInterest,
			TotalAmount:            app.TotalRepayment,
			DisbursementDate:       now,
			DisbursementReference:  req.Reference,
			ExpectedCompletionDate: AddMonths(now, app.RepaymentPeriodMonths),
			NextPaymentDate:        AddMonths(now, 1),
			Status:                 domain.LoanStatusActive,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		l.RecomputeBalance()
		if err := createWithLoanNumber(ctx, tx, l, now); err != nil {
			if errors.Is(err, errors.ErrAlreadyExists) {
				return errors.NewInvalidState("loan application", app.ID.String(), string(domain.ApplicationStatusDisbursed), string(domain.ApplicationStatusApproved))
			}
			return err
		}
		if err := replaceSchedule(ctx, tx, l); err != nil {
			return err
		}

		app.Status = domain.ApplicationStatusDisbursed
		app.DisbursedBy = &req.AdminID
		app.DisbursedAt = &now
		app.DisbursementReference = req.Reference
		if req.Cost != nil {
			app.DisbursementCost = money.Round(*req.Cost)
		}
		app.UpdatedAt = now
		if err := tx.Applications().Update(ctx, app); err != nil {
			return err
		}

		if _, err := s.ledger.PostCompletedTx(ctx, tx, ledger.PostRequest{
			MemberID:    l.BorrowerID,
			Type:        domain.TransactionTypeLoanDisbursement,
			Amount:      l.PrincipalAmount,
			Category:    "loan",
			Description: "Disbursement of loan " + l.LoanNumber,
			Reference:   l.LoanNumber,
			ActorID:     &req.AdminID,
		}); err != nil {
			return err
		}

		memberID := l.BorrowerID
		if err := ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &req.AdminID, MemberID: &memberID, Action: "LOAN_DISBURSED",
			EntityType: "loan", EntityID: l.ID.String(),
			OldValues: map[string]string{"application_status": string(domain.ApplicationStatusApproved)},
			NewValues: map[string]string{
				"application_status": string(app.Status),
				"loan_number":        l.LoanNumber,
				"principal_amount":   l.PrincipalAmount.String(),
			},
		}, now); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.InvalidateBalance(ctx, loan.BorrowerID)
	s.logger.Info("Loan disbursed", map[string]interface{}{
		"loan_id":        loan.ID,
		"loan_number":    loan.LoanNumber,
		"application_id": loan.ApplicationID,
		"member_id":      loan.BorrowerID,
		"old_status":     domain.ApplicationStatusApproved,
		"new_status":     domain.ApplicationStatusDisbursed,
		"principal":      loan.PrincipalAmount.String(),
	})
	s.notifier.Dispatch(loan.BorrowerID, notification.EventLoanDisbursed, map[string]interface{}{
		"loan_number":       loan.LoanNumber,
		"amount":            loan.PrincipalAmount,
		"next_payment_date": loan.NextPaymentDate.Format("2006-01-02"),
	})
	return loan, nil
}

// createWithLoanNumber draws LN-{year}-{seq} numbers from the per-year
// sequence until one is free.
func createWithLoanNumber(ctx context.Context, tx store.Tx, l *domain.Loan, now time.Time) error {
	year := now.Year()
	for attempt := 0; attempt < ledger.MaxIDAttempts; attempt++ {
		seq, err := tx.Loans().NextSequence(ctx, year)
		if err != nil {
			return err
		}
		l.LoanNumber = fmt.Sprintf("LN-%d-%04d", year, seq)
		err = tx.Loans().Create(ctx, l)
		if !errors.Is(err, errors.ErrDuplicateIdentifier) {
			return err
		}
	}
	return &errors.ConcurrencyConflictError{Op: "generate loan number", Err: errors.ErrDuplicateIdentifier}
}

func replaceSchedule(ctx context.Context, tx store.Tx, l *domain.Loan) error {
	if err := tx.Schedules().DeleteByLoan(ctx, l.ID); err != nil {
		return err
	}
	return tx.Schedules().CreateBatch(ctx, GenerateSchedule(l))
}

// RegenerateSchedule rebuilds a loan's schedule from its terms.
func (s *Service) RegenerateSchedule(ctx context.Context, loanID uuid.UUID) ([]*domain.LoanSchedule, error) {
	var rows []*domain.LoanSchedule
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		l, err := lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if err := replaceSchedule(ctx, tx, l); err != nil {
			return err
		}
		rows, err = tx.Schedules().ListByLoan(ctx, l.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loan schedule regenerated", map[string]interface{}{"loan_id": loanID, "rows": len(rows)})
	return rows, nil
}

// lockLoan locks the borrower, then the loan.
func lockLoan(ctx context.Context, tx store.Tx, id uuid.UUID) (*domain.Loan, error) {
	found, err := tx.Loans().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Members().LockByID(ctx, found.BorrowerID); err != nil {
		return nil, err
	}
	return tx.Loans().LockByID(ctx, id)
}
