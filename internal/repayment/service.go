// Package repayment confirms loan payments and applies them to the loan they
// pay down.
package repayment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/ledger"
	"sacco/internal/loan"
	"sacco/internal/notification"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/logger"
	"sacco/pkg/money"
	"sacco/pkg/telemetry"
	"sacco/pkg/validator"
)

type Service struct {
	store     store.Store
	ledger    *ledger.Service
	notifier  *notification.Dispatcher
	logger    logger.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewService(st store.Store, l *ledger.Service, notifier *notification.Dispatcher, log logger.Logger) *Service {
	return &Service{
		store:     st,
		ledger:    l,
		notifier:  notifier,
		logger:    log,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type SubmitRequest struct {
	LoanID      uuid.UUID          `json:"loan_id" validate:"required"`
	Amount      decimal.Decimal    `json:"amount" validate:"money"`
	PaymentType domain.PaymentType `json:"payment_type" validate:"omitempty,oneof=regular partial early full penalty"`
	Method      string             `json:"payment_method" validate:"max=50"`
	Reference   string             `json:"transaction_reference" validate:"max=100"`
}

// amountDue is the most a single payment may carry: the larger of the unpaid
// balance and the unpaid part of the schedule, plus any penalty not yet
// settled. Schedule rows are rounded per row, so their sum can exceed the
// loan's total by a few cents.
func amountDue(ctx context.Context, tx store.Tx, l *domain.Loan) (decimal.Decimal, error) {
	rows, err := tx.Schedules().ListByLoan(ctx, l.ID)
	if err != nil {
		return decimal.Zero, err
	}
	due := money.NonNegative(l.BalanceRemaining)
	if len(rows) > 0 {
		scheduled := decimal.Zero
		for _, r := range rows {
			scheduled = scheduled.Add(r.ScheduledPayment)
		}
		if rest := scheduled.Sub(l.AmountPaid.Sub(l.TotalPenaltiesPaid)); rest.GreaterThan(due) {
			due = rest
		}
	}
	return due.Add(l.PendingPenalty()), nil
}

func requireRunning(l *domain.Loan) error {
	if l.Status == domain.LoanStatusPaidOff || l.Status == domain.LoanStatusWrittenOff {
		return errors.NewInvalidState("loan", l.LoanNumber, string(l.Status),
			string(domain.LoanStatusActive), string(domain.LoanStatusOverdue), string(domain.LoanStatusDefaulted))
	}
	return nil
}

// Submit records a pending payment against a running loan.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*domain.LoanPayment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.PaymentType == "" {
		req.PaymentType = domain.PaymentTypeRegular
	}

	var p *domain.LoanPayment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		l, err := tx.Loans().FindByID(ctx, req.LoanID)
		if err != nil {
			return err
		}
		if err := requireRunning(l); err != nil {
			return err
		}
		amount := money.Round(req.Amount)
		due, err := amountDue(ctx, tx, l)
		if err != nil {
			return err
		}
		if amount.GreaterThan(due) {
			return errors.NewLimitExceeded("amount_due", due, amount)
		}
		now := s.now()
		p = &domain.LoanPayment{
			ID:                   uuid.New(),
			LoanID:               l.ID,
			Amount:               amount,
			PaymentType:          req.PaymentType,
			PaymentMethod:        req.Method,
			TransactionReference: req.Reference,
			Status:               domain.PaymentStatusPending,
			PaymentDate:          now,
			UpdatedAt:            now,
		}
		if err := tx.Payments().Create(ctx, p); err != nil {
			return err
		}
		memberID := l.BorrowerID
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &memberID, MemberID: &memberID, Action: "PAYMENT_SUBMITTED",
			EntityType: "loan_payment", EntityID: p.ID.String(),
			NewValues: map[string]string{"status": string(p.Status), "amount": p.Amount.String()},
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loan payment submitted", map[string]interface{}{
		"payment_id": p.ID,
		"loan_id":    p.LoanID,
		"amount":     p.Amount.String(),
		"type":       p.PaymentType,
	})
	return p, nil
}

// lockPayment locks the borrower, the loan and then the payment, and checks
// the payment is still pending.
func lockPayment(ctx context.Context, tx store.Tx, id uuid.UUID) (*domain.LoanPayment, *domain.Loan, error) {
	found, err := tx.Payments().FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	l, err := tx.Loans().FindByID(ctx, found.LoanID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := tx.Members().LockByID(ctx, l.BorrowerID); err != nil {
		return nil, nil, err
	}
	if l, err = tx.Loans().LockByID(ctx, l.ID); err != nil {
		return nil, nil, err
	}
	p, err := tx.Payments().LockByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, nil, errors.NewInvalidState("loan payment", p.ID.String(), string(p.Status), string(domain.PaymentStatusPending))
	}
	return p, l, nil
}

// Confirm allocates a pending payment and applies it to the loan in the same
// unit of work: amount paid, penalties paid, balance, status and next payment
// date move together with the completed loan_payment ledger entry. The whole
// payment counts toward amount_paid, penalty portion included, so the last
// schedule row may leave balance_remaining a few cents below zero.
func (s *Service) Confirm(ctx context.Context, paymentID, adminID uuid.UUID, notes string) (payment *domain.LoanPayment, err error) {
	ctx, span := telemetry.StartSpan(ctx, "repayment.Confirm")
	defer func() { telemetry.EndSpan(span, err) }()

	var (
		l    *domain.Loan
		from domain.LoanStatus
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, locked, err := lockPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		l = locked
		if err := requireRunning(l); err != nil {
			return err
		}
		due, err := amountDue(ctx, tx, l)
		if err != nil {
			return err
		}
		if p.Amount.GreaterThan(due) {
			return errors.NewLimitExceeded("amount_due", due, p.Amount)
		}
		interestPaid, err := tx.Payments().SumConfirmedInterest(ctx, l.ID)
		if err != nil {
			return err
		}

		now := s.now()
		a := Allocate(p.Amount, l, interestPaid)
		p.PenaltyAmount = a.Penalty
		p.InterestAmount = a.Interest
		p.PrincipalAmount = a.Principal
		p.Status = domain.PaymentStatusConfirmed
		p.ConfirmedBy = &adminID
		p.ConfirmedAt = &now
		p.AdminNotes = notes
		p.UpdatedAt = now
		if err := tx.Payments().Update(ctx, p); err != nil {
			return err
		}

		from = l.Status
		l.AmountPaid = l.AmountPaid.Add(p.Amount)
		l.TotalPenaltiesPaid = l.TotalPenaltiesPaid.Add(a.Penalty)
		l.RecomputeBalance()
		paidOn := now
		l.LastPaymentDate = &paidOn
		if loan.UpdateLoanStatus(l, now) != domain.LoanStatusPaidOff {
			l.NextPaymentDate = loan.AddMonths(l.NextPaymentDate, 1)
		}
		l.UpdatedAt = now
		if err := tx.Loans().Update(ctx, l); err != nil {
			return err
		}

		if _, err := s.ledger.PostCompletedTx(ctx, tx, ledger.PostRequest{
			MemberID:    l.BorrowerID,
			Type:        domain.TransactionTypeLoanPayment,
			Amount:      p.Amount,
			Category:    "loan",
			Description: "Repayment of loan " + l.LoanNumber,
			Reference:   l.LoanNumber,
			ActorID:     &adminID,
			Notes:       notes,
		}); err != nil {
			return err
		}

		memberID := l.BorrowerID
		if err := ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &adminID, MemberID: &memberID, Action: "PAYMENT_CONFIRMED",
			EntityType: "loan_payment", EntityID: p.ID.String(),
			OldValues: map[string]string{"status": string(domain.PaymentStatusPending), "loan_status": string(from)},
			NewValues: map[string]string{
				"status":            string(p.Status),
				"loan_status":       string(l.Status),
				"penalty_amount":    a.Penalty.String(),
				"interest_amount":   a.Interest.String(),
				"principal_amount":  a.Principal.String(),
				"balance_remaining": l.BalanceRemaining.String(),
			},
			Notes: notes,
		}, now); err != nil {
			return err
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.InvalidateBalance(ctx, l.BorrowerID)
	s.logger.Info("Loan payment confirmed", map[string]interface{}{
		"payment_id":        payment.ID,
		"loan_id":           l.ID,
		"loan_number":       l.LoanNumber,
		"penalty":           payment.PenaltyAmount.String(),
		"interest":          payment.InterestAmount.String(),
		"principal":         payment.PrincipalAmount.String(),
		"balance_remaining": l.BalanceRemaining.String(),
		"old_status":        from,
		"new_status":        l.Status,
	})
	s.notifier.Dispatch(l.BorrowerID, notification.EventPaymentConfirmed, map[string]interface{}{
		"amount":            payment.Amount,
		"loan_number":       l.LoanNumber,
		"balance_remaining": l.BalanceRemaining,
	})
	if l.Status == domain.LoanStatusPaidOff {
		s.notifier.Dispatch(l.BorrowerID, notification.EventLoanPaidOff, map[string]interface{}{
			"loan_number": l.LoanNumber,
		})
	}
	return payment, nil
}

// Reject closes a pending payment without touching the loan.
func (s *Service) Reject(ctx context.Context, paymentID, adminID uuid.UUID, reason string) (*domain.LoanPayment, error) {
	if reason == "" {
		return nil, errors.NewValidation("reason", "is required")
	}
	var p *domain.LoanPayment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		locked, l, err := lockPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		now := s.now()
		locked.Status = domain.PaymentStatusRejected
		locked.ConfirmedBy = &adminID
		locked.ConfirmedAt = &now
		locked.RejectionReason = reason
		locked.UpdatedAt = now
		if err := tx.Payments().Update(ctx, locked); err != nil {
			return err
		}
		p = locked
		memberID := l.BorrowerID
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &adminID, MemberID: &memberID, Action: "PAYMENT_REJECTED",
			EntityType: "loan_payment", EntityID: p.ID.String(),
			OldValues: map[string]string{"status": string(domain.PaymentStatusPending)},
			NewValues: map[string]string{"status": string(p.Status)},
			Notes:     reason,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loan payment rejected", map[string]interface{}{
		"payment_id": p.ID,
		"loan_id":    p.LoanID,
		"reason":     reason,
	})
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.LoanPayment, error) {
	var p *domain.LoanPayment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		p, err = tx.Payments().FindByID(ctx, id)
		return err
	})
	return p, err
}
