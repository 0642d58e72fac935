package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/store"
)

// LoanDrift is a loan whose stored balance disagrees with total - paid.
type LoanDrift struct {
	LoanID   string          `json:"loan_id"`
	Number   string          `json:"loan_number"`
	Stored   decimal.Decimal `json:"stored_balance"`
	Expected decimal.Decimal `json:"expected_balance"`
}

// ReconcileReport lists the invariant violations found by Reconcile.
type ReconcileReport struct {
	GeneratedAt      time.Time               `json:"generated_at"`
	Members          int                     `json:"members"`
	TotalBalance     decimal.Decimal         `json:"total_balance"`
	NegativeBalances []*domain.MemberBalance `json:"negative_balances"`
	LoanDrift        []LoanDrift             `json:"loan_drift"`
	StalePending     []*domain.Transaction   `json:"stale_pending"`
}

// Clean reports whether no violation was found.
func (r *ReconcileReport) Clean() bool {
	return len(r.NegativeBalances) == 0 && len(r.LoanDrift) == 0 && len(r.StalePending) == 0
}

// Reconcile reads balances, loans and pending transactions in one unit of
// work. Pending transactions created before staleBefore are reported.
func (s *Service) Reconcile(ctx context.Context, staleBefore time.Time) (*ReconcileReport, error) {
	report := &ReconcileReport{GeneratedAt: s.now().UTC(), TotalBalance: decimal.Zero}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		balances, err := tx.Balances().List(ctx)
		if err != nil {
			return err
		}
		report.Members = len(balances)
		for _, b := range balances {
			report.TotalBalance = report.TotalBalance.Add(b.CurrentBalance)
			if b.CurrentBalance.IsNegative() || b.AvailableBalance.IsNegative() {
				report.NegativeBalances = append(report.NegativeBalances, b)
			}
		}

		loans, err := tx.Loans().ListByStatus(ctx)
		if err != nil {
			return err
		}
		for _, l := range loans {
			expected := l.TotalAmount.Sub(l.AmountPaid)
			if !l.BalanceRemaining.Equal(expected) {
				report.LoanDrift = append(report.LoanDrift, LoanDrift{
					LoanID:   l.ID.String(),
					Number:   l.LoanNumber,
					Stored:   l.BalanceRemaining,
					Expected: expected,
				})
			}
		}

		report.StalePending, err = tx.Transactions().ListPendingBefore(ctx, staleBefore)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !report.Clean() {
		s.logger.Warn("Reconciliation found discrepancies", map[string]interface{}{
			"negative_balances": len(report.NegativeBalances),
			"loan_drift":        len(report.LoanDrift),
			"stale_pending":     len(report.StalePending),
		})
	}
	return report, nil
}
