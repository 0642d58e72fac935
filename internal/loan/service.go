// Package loan implements loan origination: applications, eligibility,
// approval, disbursement, amortization schedules, guarantors and penalties.
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
	"sacco/internal/policy"
	"sacco/internal/store"
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
	notifier  *notification.Dispatcher
	logger    logger.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewService(st store.Store, src policy.Source, l *ledger.Service, notifier *notification.Dispatcher, log logger.Logger) *Service {
	return &Service{
		store:     st,
		policy:    src,
		ledger:    l,
		notifier:  notifier,
		logger:    log,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type ApplyRequest struct {
	MemberID     uuid.UUID       `json:"member_id" validate:"required"`
	LoanTypeID   uuid.UUID       `json:"loan_type_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount_requested" validate:"money"`
	Purpose      string          `json:"purpose" validate:"required,max=500"`
	PeriodMonths int             `json:"repayment_period_months" validate:"min=1"`
}

// Apply files a pending application priced at the loan type's rate.
func (s *Service) Apply(ctx context.Context, req *ApplyRequest) (*domain.LoanApplication, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}

	var app *domain.LoanApplication
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		m, err := tx.Members().FindByID(ctx, req.MemberID)
		if err != nil {
			return err
		}
		if !m.IsApproved() {
			return errors.NewValidation("member_id", "member is not approved")
		}
		lt, err := tx.LoanTypes().FindByID(ctx, req.LoanTypeID)
		if err != nil {
			return err
		}
		if !lt.IsActive {
			return errors.NewValidation("loan_type_id", "loan type is not active")
		}
		if maxPeriod := p.MaximumPeriodFor(lt); req.PeriodMonths > maxPeriod {
			return errors.NewValidation("repayment_period_months", fmt.Sprintf("must be at most %d", maxPeriod))
		}
		amount := money.Round(req.Amount)
		if lt.MaximumAmount.IsPositive() && amount.GreaterThan(lt.MaximumAmount) {
			return errors.NewLimitExceeded("loan_type_maximum_amount", lt.MaximumAmount, amount)
		}

		now := s.now()
		app = &domain.LoanApplication{
			ID:                    uuid.New(),
			ApplicantID:           req.MemberID,
			LoanTypeID:            lt.ID,
			AmountRequested:       amount,
			Purpose:               req.Purpose,
			RepaymentPeriodMonths: req.PeriodMonths,
			InterestRate:          p.EffectiveRate(lt),
			Status:                domain.ApplicationStatusPending,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := tx.Applications().Create(ctx, app); err != nil {
			return err
		}
		memberID := app.ApplicantID
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &memberID, MemberID: &memberID, Action: "LOAN_APPLIED",
			EntityType: "loan_application", EntityID: app.ID.String(),
			NewValues: map[string]string{"status": string(app.Status), "amount_requested": app.AmountRequested.String()},
		}, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loan application submitted", map[string]interface{}{
		"application_id": app.ID,
		"member_id":      app.ApplicantID,
		"amount":         app.AmountRequested.String(),
		"months":         app.RepaymentPeriodMonths,
	})
	return app, nil
}

// CheckEligibility returns every rule the application currently breaks.
// An empty list means the applicant is eligible.
func (s *Service) CheckEligibility(ctx context.Context, applicationID uuid.UUID) ([]string, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}
	var violations []string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		app, err := tx.Applications().FindByID(ctx, applicationID)
		if err != nil {
			return err
		}
		violations, _, err = s.eligibilityTx(ctx, tx, app, p, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return violations, nil
}

// eligibilityTx runs every check without short-circuiting and also returns
// the member's maximum loan amount.
func (s *Service) eligibilityTx(ctx context.Context, tx store.Tx, app *domain.LoanApplication, p policy.Policy, now time.Time) ([]string, decimal.Decimal, error) {
	violations := []string{}

	m, err := tx.Members().FindByID(ctx, app.ApplicantID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	lt, err := tx.LoanTypes().FindByID(ctx, app.LoanTypeID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	required := p.MinimumMembershipFor(lt)
	if months := m.MembershipMonths(now); !m.IsApproved() || months < required {
		violations = append(violations,
			fmt.Sprintf("member must have at least %d months of membership (has %d)", required, months))
	}

	maxLoan := decimal.Zero
	sum, err := tx.Summaries().Get(ctx, app.ApplicantID)
	switch {
	case err == nil:
		maxLoan = sum.MaximumLoanAmount
	case !errors.Is(err, errors.ErrSummaryNotFound):
		return nil, decimal.Zero, err
	}
	if app.AmountRequested.GreaterThan(maxLoan) {
		violations = append(violations,
			fmt.Sprintf("requested amount %s exceeds maximum loan amount %s",
				money.Format(app.AmountRequested), money.Format(maxLoan)))
	}

	open, err := tx.Loans().ListByBorrower(ctx, app.ApplicantID, domain.LoanStatusActive, domain.LoanStatusOverdue)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if len(open) > 0 {
		violations = append(violations, "member already has an active or overdue loan")
	}

	if p.RequiresGuarantor(lt) {
		guarantees, err := tx.Guarantors().ListByApplication(ctx, app.ID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		covered := decimal.Zero
		for _, g := range guarantees {
			if g.Status == domain.GuarantorStatusConfirmed {
				covered = covered.Add(g.GuaranteedAmount)
			}
		}
		if covered.LessThan(app.AmountRequested) {
			violations = append(violations,
				fmt.Sprintf("confirmed guarantees %s do not cover requested amount %s",
					money.Format(covered), money.Format(app.AmountRequested)))
		}
	}
	return violations, maxLoan, nil
}

// lockApplication locks the applicant, then the application, and checks the
// application may move to `to`.
func lockApplication(ctx context.Context, tx store.Tx, id uuid.UUID, to domain.ApplicationStatus, required ...domain.ApplicationStatus) (*domain.LoanApplication, error) {
	found, err := tx.Applications().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Members().LockByID(ctx, found.ApplicantID); err != nil {
		return nil, err
	}
	app, err := tx.Applications().LockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !app.Status.CanTransitionTo(to) {
		names := make([]string, len(required))
		for i, r := range required {
			names[i] = string(r)
		}
		return nil, errors.NewInvalidState("loan application", app.ID.String(), string(app.Status), names...)
	}
	return app, nil
}

type ApproveRequest struct {
	ApplicationID  uuid.UUID        `json:"application_id" validate:"required"`
	AdminID        uuid.UUID        `json:"admin_id" validate:"required"`
	ApprovedAmount *decimal.Decimal `json:"amount_approved,omitempty"`
	InterestRate   *decimal.Decimal `json:"interest_rate,omitempty"`
	Notes          string           `json:"review_notes"`
}

// Approve prices a pending application after checking eligibility. Every
// violation is reported in the EligibilityError.
func (s *Service) Approve(ctx context.Context, req *ApproveRequest) (app *domain.LoanApplication, err error) {
	ctx, span := telemetry.StartSpan(ctx, "loan.Approve")
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := lockApplication(ctx, tx, req.ApplicationID, domain.ApplicationStatusApproved, domain.ApplicationStatusPending)
		if err != nil {
			return err
		}
		now := s.now()
		violations, maxLoan, err := s.eligibilityTx(ctx, tx, a, p, now)
		if err != nil {
			return err
		}
		if len(violations) > 0 {
			return &errors.EligibilityError{Violations: violations}
		}

		lt, err := tx.LoanTypes().FindByID(ctx, a.LoanTypeID)
		if err != nil {
			return err
		}
		amount := a.AmountRequested
		if req.ApprovedAmount != nil {
			amount = money.Round(*req.ApprovedAmount)
		}
		if !amount.IsPositive() {
			return errors.NewValidation("amount_approved", "must be positive")
		}
		if amount.GreaterThan(maxLoan) {
			return errors.NewLimitExceeded("maximum_loan_amount", maxLoan, amount)
		}
		rate := p.EffectiveRate(lt)
		if req.InterestRate != nil {
			rate = *req.InterestRate
		}
		terms, err := ComputeAmortization(amount, rate, a.RepaymentPeriodMonths)
		if err != nil {
			return err
		}

		a.Status = domain.ApplicationStatusApproved
		a.AmountApproved = amount
		a.InterestRate = rate
		a.MonthlyPayment = terms.MonthlyPayment
		a.TotalInterest = terms.TotalInterest
		a.TotalRepayment = terms.TotalRepayment
		a.ReviewedBy = &req.AdminID
		a.ReviewedAt = &now
		a.ReviewNotes = req.Notes
		a.UpdatedAt = now
		if err := tx.Applications().Update(ctx, a); err != nil {
			return err
		}
		memberID := a.ApplicantID
		if err := ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &req.AdminID, MemberID: &memberID, Action: "LOAN_APPROVED",
			EntityType: "loan_application", EntityID: a.ID.String(),
			OldValues: map[string]string{"status": string(domain.ApplicationStatusPending)},
			NewValues: map[string]string{
				"status":          string(a.Status),
				"amount_approved": a.AmountApproved.String(),
				"monthly_payment": a.MonthlyPayment.String(),
			},
			Notes: req.Notes,
		}, now); err != nil {
			return err
		}
		app = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loan application approved", map[string]interface{}{
		"application_id":  app.ID,
		"member_id":       app.ApplicantID,
		"old_status":      domain.ApplicationStatusPending,
		"new_status":      app.Status,
		"amount_approved": app.AmountApproved.String(),
	})
	s.notifier.Dispatch(app.ApplicantID, notification.EventLoanApproved, map[string]interface{}{
		"amount":          app.AmountApproved,
		"monthly_payment": app.MonthlyPayment,
		"months":          app.RepaymentPeriodMonths,
	})
	return app, nil
}

// Reject closes a pending application.
func (s *Service) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*domain.LoanApplication, error) {
	app, from, err := s.close(ctx, id, adminID, reason, domain.ApplicationStatusRejected, "LOAN_REJECTED",
		domain.ApplicationStatusPending)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loan application rejected", map[string]interface{}{
		"application_id": app.ID,
		"member_id":      app.ApplicantID,
		"old_status":     from,
		"new_status":     app.Status,
	})
	s.notifier.Dispatch(app.ApplicantID, notification.EventLoanRejected, map[string]interface{}{"reason": reason})
	return app, nil
}

// Cancel withdraws an application that has not been disbursed.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*domain.LoanApplication, error) {
	app, from, err := s.close(ctx, id, actorID, reason, domain.ApplicationStatusCancelled, "LOAN_CANCELLED",
		domain.ApplicationStatusPending, domain.ApplicationStatusApproved)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loan application cancelled", map[string]interface{}{
		"application_id": app.ID,
		"member_id":      app.ApplicantID,
		"old_status":     from,
		"new_status":     app.Status,
	})
	return app, nil
}

func (s *Service) close(ctx context.Context, id, actorID uuid.UUID, reason string, to domain.ApplicationStatus, action string, required ...domain.ApplicationStatus) (*domain.LoanApplication, domain.ApplicationStatus, error) {
	if reason == "" {
		return nil, "", errors.NewValidation("reason", "is required")
	}
	var (
		app  *domain.LoanApplication
		from domain.ApplicationStatus
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := lockApplication(ctx, tx, id, to, required...)
		if err != nil {
			return err
		}
		now := s.now()
		from = a.Status
		a.Status = to
		a.RejectionReason = reason
		a.ReviewedBy = &actorID
		a.ReviewedAt = &now
		a.UpdatedAt = now
		if err := tx.Applications().Update(ctx, a); err != nil {
			return err
		}
		memberID := a.ApplicantID
		if err := ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &actorID, MemberID: &memberID, Action: action,
			EntityType: "loan_application", EntityID: a.ID.String(),
			OldValues: map[string]string{"status": string(from)},
			NewValues: map[string]string{"status": string(to)},
			Notes:     reason,
		}, now); err != nil {
			return err
		}
		app = a
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return app, from, nil
}

func (s *Service) GetApplication(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	var app *domain.LoanApplication
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		app, err = tx.Applications().FindByID(ctx, id)
		return err
	})
	return app, err
}

func (s *Service) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var l *domain.Loan
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		l, err = tx.Loans().FindByID(ctx, id)
		return err
	})
	return l, err
}

// Schedule returns the stored amortization rows of a loan.
func (s *Service) Schedule(ctx context.Context, loanID uuid.UUID) ([]*domain.LoanSchedule, error) {
	var rows []*domain.LoanSchedule
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Loans().FindByID(ctx, loanID); err != nil {
			return err
		}
		var err error
		rows, err = tx.Schedules().ListByLoan(ctx, loanID)
		return err
	})
	return rows, err
}
