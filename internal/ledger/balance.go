package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/store"
	"sacco/pkg/cache"
	"sacco/pkg/errors"
)

// posted reports whether t moved money. A reversed transaction stays posted:
// its effect is cancelled by the completed reversal that references it.
func posted(t *domain.Transaction) bool {
	return t.Status == domain.TransactionStatusCompleted || t.Status == domain.TransactionStatusReversed
}

// DerivedBalance is credits minus debits over the member's posted history.
func DerivedBalance(ctx context.Context, tx store.Tx, memberID uuid.UUID) (decimal.Decimal, error) {
	txns, err := tx.Transactions().ListByMember(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, t := range txns {
		if posted(t) {
			balance = t.Apply(balance)
		}
	}
	return balance, nil
}

// RecomputeBalanceTx rebuilds the MemberBalance projection from transactions,
// confirmed investments and open loans.
func (s *Service) RecomputeBalanceTx(ctx context.Context, tx store.Tx, memberID uuid.UUID, now time.Time) (*domain.MemberBalance, error) {
	txns, err := tx.Transactions().ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	b := &domain.MemberBalance{MemberID: memberID, UpdatedAt: now}
	for _, t := range txns {
		switch {
		case posted(t):
			b.CurrentBalance = t.Apply(b.CurrentBalance)
			if b.LastTransactionDate == nil || t.TransactionDate.After(*b.LastTransactionDate) {
				d := t.TransactionDate
				b.LastTransactionDate = &d
			}
		case t.Status == domain.TransactionStatusPending && t.Type == domain.TransactionTypeDeposit:
			b.PendingDeposits = b.PendingDeposits.Add(t.Amount)
		case t.Status == domain.TransactionStatusPending && t.Type == domain.TransactionTypeWithdrawal:
			b.PendingWithdrawals = b.PendingWithdrawals.Add(t.Amount)
		}
	}
	b.AvailableBalance = b.CurrentBalance.Sub(b.PendingWithdrawals)

	invs := tx.Investments()
	if b.ShareCapitalBalance, err = invs.SumConfirmed(ctx, memberID, domain.InvestmentTypeShareCapital); err != nil {
		return nil, err
	}
	monthly, err := invs.SumConfirmed(ctx, memberID, domain.InvestmentTypeMonthlyInvestment)
	if err != nil {
		return nil, err
	}
	special, err := invs.SumConfirmed(ctx, memberID, domain.InvestmentTypeSpecialDeposit)
	if err != nil {
		return nil, err
	}
	b.SavingsBalance = monthly.Add(special)

	loans, err := tx.Loans().ListByBorrower(ctx, memberID, domain.LoanStatusActive, domain.LoanStatusOverdue)
	if err != nil {
		return nil, err
	}
	for _, l := range loans {
		b.LoanBalance = b.LoanBalance.Add(l.BalanceRemaining)
	}

	if err := tx.Balances().Upsert(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// RecomputeMemberBalance rebuilds one member's balance in its own unit of work.
func (s *Service) RecomputeMemberBalance(ctx context.Context, memberID uuid.UUID) (*domain.MemberBalance, error) {
	var b *domain.MemberBalance
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Members().LockByID(ctx, memberID); err != nil {
			return err
		}
		var err error
		b, err = s.RecomputeBalanceTx(ctx, tx, memberID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateBalance(ctx, memberID)
	return b, nil
}

// GetBalance reads through the cache; a member without a projection row gets
// one built on first read.
func (s *Service) GetBalance(ctx context.Context, memberID uuid.UUID) (*domain.MemberBalance, error) {
	var cached domain.MemberBalance
	if err := s.cache.Get(ctx, cache.BalanceKey(memberID.String()), &cached); err == nil {
		return &cached, nil
	}

	var b *domain.MemberBalance
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		b, err = tx.Balances().Get(ctx, memberID)
		if errors.Is(err, errors.ErrBalanceNotFound) {
			if _, err := tx.Members().LockByID(ctx, memberID); err != nil {
				return err
			}
			b, err = s.RecomputeBalanceTx(ctx, tx, memberID, s.now())
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.BalanceKey(memberID.String()), b, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache member balance", map[string]interface{}{"member_id": memberID, "error": err})
	}
	return b, nil
}

// InvalidateBalance drops cached balances after a commit.
func (s *Service) InvalidateBalance(ctx context.Context, memberIDs ...uuid.UUID) {
	for _, id := range memberIDs {
		if err := s.cache.Delete(ctx, cache.BalanceKey(id.String())); err != nil {
			s.logger.Warn("Failed to invalidate cached balance", map[string]interface{}{"member_id": id, "error": err})
		}
	}
}

// Rebuild recomputes every member balance, one member per unit of work.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	var members []*domain.Member
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		members, err = tx.Members().List(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	for i, m := range members {
		if _, err := s.RecomputeMemberBalance(ctx, m.ID); err != nil {
			return i, errors.Wrap(err, "rebuild balance for member "+m.ID.String())
		}
	}
	s.logger.Info("Member balances rebuilt", map[string]interface{}{"members": len(members)})
	return len(members), nil
}
