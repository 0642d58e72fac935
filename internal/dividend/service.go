// Package dividend computes and pays the yearly member dividends.
package dividend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/investment"
	"sacco/internal/ledger"
	"sacco/internal/notification"
	"sacco/internal/policy"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/logger"
	"sacco/pkg/money"
	"sacco/pkg/telemetry"
)

type Service struct {
	store    store.Store
	policy   policy.Source
	invest   *investment.Service
	ledger   *ledger.Service
	notifier *notification.Dispatcher
	logger   logger.Logger
	now      func() time.Time
}

func NewService(st store.Store, src policy.Source, inv *investment.Service, l *ledger.Service, notifier *notification.Dispatcher, log logger.Logger) *Service {
	return &Service{
		store:    st,
		policy:   src,
		invest:   inv,
		ledger:   l,
		notifier: notifier,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Report summarises one CalculateForYear run.
type Report struct {
	Year          int               `json:"year"`
	Calculated    int               `json:"calculated"`
	SkippedZero   int               `json:"skipped_zero"`
	SkippedPaid   int               `json:"skipped_paid"`
	Ineligible    int               `json:"ineligible"`
	TotalDividend decimal.Decimal   `json:"total_dividend"`
	Failures      map[string]string `json:"failures,omitempty"`
}

type outcome int

const (
	outcomeCalculated outcome = iota
	outcomeZero
	outcomePaid
	outcomeIneligible
)

func validRate(name string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(money.Hundred) {
		return errors.NewValidation(name, "must be between 0 and 100")
	}
	return nil
}

// CalculateForYear prices the dividend of every approved member holding a
// confirmed investment dated in or before year. Each member is written in its
// own unit of work; rows that were already paid are never touched.
func (s *Service) CalculateForYear(ctx context.Context, year int, shareRate, monthlyRate decimal.Decimal, adminID uuid.UUID) (report *Report, err error) {
	ctx, span := telemetry.StartSpan(ctx, "dividend.CalculateForYear")
	defer func() { telemetry.EndSpan(span, err) }()

	if year < 1900 || year > 9999 {
		return nil, errors.NewValidation("year", "is out of range")
	}
	if err := validRate("share_capital_rate", shareRate); err != nil {
		return nil, err
	}
	if err := validRate("monthly_investment_rate", monthlyRate); err != nil {
		return nil, err
	}
	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	var members []uuid.UUID
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		members, err = tx.Investments().MembersWithConfirmedBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		return nil, err
	}

	report = &Report{Year: year, TotalDividend: decimal.Zero}
	for _, memberID := range members {
		var d *domain.DividendPayment
		var result outcome
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			d, result, err = s.calculateMember(ctx, tx, memberID, year, shareRate, monthlyRate, adminID, p)
			return err
		})
		if err != nil {
			if report.Failures == nil {
				report.Failures = map[string]string{}
			}
			report.Failures[memberID.String()] = err.Error()
			s.logger.Error("Dividend calculation failed", map[string]interface{}{
				"year":      year,
				"member_id": memberID,
				"error":     err,
			})
			continue
		}
		switch result {
		case outcomeCalculated:
			report.Calculated++
			report.TotalDividend = report.TotalDividend.Add(d.TotalDividend)
		case outcomeZero:
			report.SkippedZero++
		case outcomePaid:
			report.SkippedPaid++
		case outcomeIneligible:
			report.Ineligible++
		}
	}

	s.logger.Info("Dividends calculated", map[string]interface{}{
		"year":         year,
		"calculated":   report.Calculated,
		"skipped_zero": report.SkippedZero,
		"skipped_paid": report.SkippedPaid,
		"ineligible":   report.Ineligible,
		"failed":       len(report.Failures),
		"total":        report.TotalDividend.String(),
	})
	return report, nil
}

func (s *Service) calculateMember(ctx context.Context, tx store.Tx, memberID uuid.UUID, year int, shareRate, monthlyRate decimal.Decimal, adminID uuid.UUID, p policy.Policy) (*domain.DividendPayment, outcome, error) {
	m, err := tx.Members().LockByID(ctx, memberID)
	if err != nil {
		return nil, 0, err
	}
	if !m.IsApproved() {
		return nil, outcomeIneligible, nil
	}

	existing, err := tx.Dividends().LockByYearMember(ctx, year, memberID)
	switch {
	case err == nil && existing.IsPaid:
		return existing, outcomePaid, nil
	case err != nil && !errors.Is(err, errors.ErrDividendNotFound):
		return nil, 0, err
	}

	now := s.now()
	sum, err := tx.Summaries().Get(ctx, memberID)
	if errors.Is(err, errors.ErrSummaryNotFound) {
		sum, err = s.invest.UpdateSummaryTx(ctx, tx, memberID, p, now)
	}
	if err != nil {
		return nil, 0, err
	}

	shareDividend := money.Round(sum.TotalShareCapital.Mul(shareRate).Div(money.Hundred))
	monthlyDividend := money.Round(sum.TotalMonthlyInvestments.Mul(monthlyRate).Div(money.Hundred))
	total := shareDividend.Add(monthlyDividend)
	// A zero result still clears an earlier unpaid row for the year.
	if total.IsZero() && existing == nil {
		return nil, outcomeZero, nil
	}

	d := &domain.DividendPayment{
		ID:                        uuid.New(),
		Year:                      year,
		MemberID:                  memberID,
		ShareCapitalAmount:        sum.TotalShareCapital,
		MonthlyInvestmentAmount:   sum.TotalMonthlyInvestments,
		TotalEligibleAmount:       sum.TotalShareCapital.Add(sum.TotalMonthlyInvestments),
		ShareCapitalRate:          shareRate,
		MonthlyInvestmentRate:     monthlyRate,
		ShareCapitalDividend:      shareDividend,
		MonthlyInvestmentDividend: monthlyDividend,
		TotalDividend:             total,
		CalculatedBy:              &adminID,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if err := tx.Dividends().Upsert(ctx, d); err != nil {
		return nil, 0, err
	}
	action := "DIVIDEND_CALCULATED"
	if existing != nil {
		action = "DIVIDEND_RECALCULATED"
	}
	if err := ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
		ActorID: &adminID, MemberID: &memberID, Action: action,
		EntityType: "dividend_payment", EntityID: d.ID.String(),
		NewValues: map[string]string{
			"year":           fmt.Sprint(year),
			"total_dividend": total.String(),
		},
	}, now); err != nil {
		return nil, 0, err
	}
	if total.IsZero() {
		return d, outcomeZero, nil
	}
	return d, outcomeCalculated, nil
}

// PayDividends credits every unpaid, non-zero dividend of the year to the
// member's ledger. Each payout commits on its own; the returned batch records
// which ones failed.
func (s *Service) PayDividends(ctx context.Context, year int, adminID uuid.UUID) (batch *domain.TransactionBatch, err error) {
	ctx, span := telemetry.StartSpan(ctx, "dividend.PayDividends")
	defer func() { telemetry.EndSpan(span, err) }()

	var rows []*domain.DividendPayment
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rows, err = tx.Dividends().ListByYear(ctx, year)
		return err
	})
	if err != nil {
		return nil, err
	}

	rec, err := s.ledger.StartBatch(ctx, domain.BatchTypeDividendPayment, fmt.Sprintf("Dividends for %d", year), adminID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.IsPaid || !row.TotalDividend.IsPositive() {
			continue
		}
		txn, paid, err := s.payOne(ctx, row.ID, adminID)
		if txn == nil && err == nil {
			continue
		}
		if addErr := rec.Add(ctx, row.MemberID, txn, err); addErr != nil {
			return rec.Batch(), addErr
		}
		if err != nil {
			s.logger.Error("Dividend payout failed", map[string]interface{}{
				"year":      year,
				"member_id": row.MemberID,
				"error":     err,
			})
			continue
		}
		s.ledger.InvalidateBalance(ctx, paid.MemberID)
		s.notifier.Dispatch(paid.MemberID, notification.EventDividendPaid, map[string]interface{}{
			"amount": paid.TotalDividend,
			"year":   year,
		})
	}
	return rec.Finish(ctx)
}

// payOne returns a nil transaction and nil error when the row was paid by
// someone else in the meantime.
func (s *Service) payOne(ctx context.Context, id, adminID uuid.UUID) (*domain.Transaction, *domain.DividendPayment, error) {
	var (
		txn *domain.Transaction
		d   *domain.DividendPayment
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Dividends().LockByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Members().LockByID(ctx, found.MemberID); err != nil {
			return err
		}
		if d, err = tx.Dividends().LockByID(ctx, id); err != nil {
			return err
		}
		if d.IsPaid {
			return nil
		}
		txn, err = s.ledger.PostCompletedTx(ctx, tx, ledger.PostRequest{
			MemberID:    d.MemberID,
			Type:        domain.TransactionTypeDividendPayment,
			Amount:      d.TotalDividend,
			Category:    "dividend",
			Description: fmt.Sprintf("Dividend for %d", d.Year),
			Reference:   fmt.Sprintf("DIV-%d", d.Year),
			ActorID:     &adminID,
		})
		if err != nil {
			return err
		}
		now := s.now()
		d.IsPaid = true
		d.PaymentDate = &now
		d.PaymentReference = txn.TransactionID
		d.PaidBy = &adminID
		d.UpdatedAt = now
		if err := tx.Dividends().Update(ctx, d); err != nil {
			return err
		}
		memberID := d.MemberID
		return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
			ActorID: &adminID, MemberID: &memberID, Action: "DIVIDEND_PAID",
			EntityType: "dividend_payment", EntityID: d.ID.String(),
			OldValues: map[string]bool{"is_paid": false},
			NewValues: map[string]interface{}{"is_paid": true, "payment_reference": d.PaymentReference},
		}, now)
	})
	if err != nil {
		return nil, nil, err
	}
	return txn, d, nil
}

// ForYear lists the dividend rows of a year.
func (s *Service) ForYear(ctx context.Context, year int) ([]*domain.DividendPayment, error) {
	var rows []*domain.DividendPayment
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rows, err = tx.Dividends().ListByYear(ctx, year)
		return err
	})
	return rows, err
}
