package loan

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sacco/internal/domain"
	"sacco/internal/ledger"
	"sacco/internal/store"
	"sacco/pkg/errors"
)

// DefaultAfterDays is how long a loan may stay overdue before it defaults.
const DefaultAfterDays = 90

// UpdateLoanStatus derives the status of a running loan from its balance and
// next payment date, and stamps the completion date the first time the loan
// is paid off. Written-off loans are left alone.
func UpdateLoanStatus(l *domain.Loan, now time.Time) domain.LoanStatus {
	if l.Status == domain.LoanStatusWrittenOff {
		return l.Status
	}
	if !l.BalanceRemaining.IsPositive() {
		l.Status = domain.LoanStatusPaidOff
		if l.ActualCompletionDate == nil {
			done := now
			l.ActualCompletionDate = &done
		}
		return l.Status
	}
	switch days := l.DaysOverdue(now); {
	case days > DefaultAfterDays:
		l.Status = domain.LoanStatusDefaulted
	case days > 0:
		l.Status = domain.LoanStatusOverdue
	default:
		l.Status = domain.LoanStatusActive
	}
	return l.Status
}

// RefreshStatuses re-evaluates every active or overdue loan as of now, one
// loan per unit of work. It returns how many loans changed status.
func (s *Service) RefreshStatuses(ctx context.Context, now time.Time) (int, error) {
	var ids []uuid.UUID
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		loans, err := tx.Loans().ListByStatus(ctx, domain.LoanStatusActive, domain.LoanStatusOverdue)
		if err != nil {
			return err
		}
		for _, l := range loans {
			ids = append(ids, l.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, id := range ids {
		var (
			l    *domain.Loan
			from domain.LoanStatus
		)
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			l, err = lockLoan(ctx, tx, id)
			if err != nil {
				return err
			}
			from = l.Status
			if UpdateLoanStatus(l, now) == from {
				return nil
			}
			l.UpdatedAt = now
			if err := tx.Loans().Update(ctx, l); err != nil {
				return err
			}
			if _, err := s.ledger.RecomputeBalanceTx(ctx, tx, l.BorrowerID, now); err != nil {
				return err
			}
			memberID := l.BorrowerID
			return ledger.WriteAudit(ctx, tx, ledger.AuditEntry{
				MemberID: &memberID, Action: "LOAN_STATUS_CHANGED",
				EntityType: "loan", EntityID: l.ID.String(),
				OldValues: map[string]string{"status": string(from)},
				NewValues: map[string]string{"status": string(l.Status)},
			}, now)
		})
		if err != nil {
			return changed, errors.Wrap(err, "refresh status of loan "+id.String())
		}
		if l.Status != from {
			changed++
			s.ledger.InvalidateBalance(ctx, l.BorrowerID)
			s.logger.Info("Loan status changed", map[string]interface{}{
				"loan_id":     l.ID,
				"loan_number": l.LoanNumber,
				"member_id":   l.BorrowerID,
				"old_status":  from,
				"new_status":  l.Status,
			})
		}
	}
	return changed, nil
}
