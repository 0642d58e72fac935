package investment

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"sacco/internal/domain"
	"sacco/internal/policy"
	"sacco/internal/store"
	"sacco/pkg/cache"
	"sacco/pkg/errors"
)

// UpdateSummaryTx rebuilds the member's summary from confirmed investments.
// Rankings are left to RankMembers.
func (s *Service) UpdateSummaryTx(ctx context.Context, tx store.Tx, memberID uuid.UUID, p policy.Policy, now time.Time) (*domain.InvestmentSummary, error) {
	invs, err := tx.Investments().ListByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	sum := &domain.InvestmentSummary{MemberID: memberID, UpdatedAt: now}
	for _, inv := range invs {
		if inv.Status != domain.InvestmentStatusConfirmed {
			continue
		}
		switch inv.Type {
		case domain.InvestmentTypeShareCapital:
			sum.TotalShareCapital = sum.TotalShareCapital.Add(inv.Amount)
		case domain.InvestmentTypeMonthlyInvestment:
			sum.TotalMonthlyInvestments = sum.TotalMonthlyInvestments.Add(inv.Amount)
		case domain.InvestmentTypeSpecialDeposit:
			sum.TotalSpecialDeposits = sum.TotalSpecialDeposits.Add(inv.Amount)
		}
		d := inv.InvestmentDate
		if sum.FirstInvestmentDate == nil || d.Before(*sum.FirstInvestmentDate) {
			sum.FirstInvestmentDate = &d
		}
		if sum.LastInvestmentDate == nil || d.After(*sum.LastInvestmentDate) {
			sum.LastInvestmentDate = &d
		}
		sum.InvestmentCount++
	}
	sum.TotalInvestments = sum.TotalShareCapital.Add(sum.TotalMonthlyInvestments).Add(sum.TotalSpecialDeposits)
	sum.LoanEligibleAmount = sum.TotalShareCapital.Add(sum.TotalMonthlyInvestments)
	sum.MaximumLoanAmount = p.MaximumLoanFor(sum.LoanEligibleAmount)

	if err := tx.Summaries().Upsert(ctx, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// UpdateSummary recomputes one member's summary in its own unit of work.
func (s *Service) UpdateSummary(ctx context.Context, memberID uuid.UUID) (*domain.InvestmentSummary, error) {
	p, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}
	var sum *domain.InvestmentSummary
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Members().LockByID(ctx, memberID); err != nil {
			return err
		}
		var err error
		sum, err = s.UpdateSummaryTx(ctx, tx, memberID, p, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx, memberID)
	return sum, nil
}

// GetSummary reads through the cache. A member without a summary row gets
// one built on first read.
func (s *Service) GetSummary(ctx context.Context, memberID uuid.UUID) (*domain.InvestmentSummary, error) {
	var cached domain.InvestmentSummary
	if err := s.cache.Get(ctx, cache.SummaryKey(memberID.String()), &cached); err == nil {
		return &cached, nil
	}

	var sum *domain.InvestmentSummary
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		sum, err = tx.Summaries().Get(ctx, memberID)
		return err
	})
	if errors.Is(err, errors.ErrSummaryNotFound) {
		sum, err = s.UpdateSummary(ctx, memberID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.SummaryKey(memberID.String()), sum, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache investment summary", map[string]interface{}{"member_id": memberID, "error": err})
	}
	return sum, nil
}

func (s *Service) invalidateSummary(ctx context.Context, memberIDs ...uuid.UUID) {
	for _, id := range memberIDs {
		if err := s.cache.Delete(ctx, cache.SummaryKey(id.String())); err != nil {
			s.logger.Warn("Failed to invalidate cached summary", map[string]interface{}{"member_id": id, "error": err})
		}
	}
}

// RankMembers assigns positions 1..N by total investments and, separately,
// by share capital. Members with a zero total are unranked. Ties are broken
// by member id.
func (s *Service) RankMembers(ctx context.Context) (int, error) {
	var ranked []uuid.UUID
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		sums, err := tx.Summaries().List(ctx)
		if err != nil {
			return err
		}
		byTotal := rank(sums, func(s *domain.InvestmentSummary) bool { return s.TotalInvestments.IsPositive() },
			func(a, b *domain.InvestmentSummary) int { return a.TotalInvestments.Cmp(b.TotalInvestments) })
		byShare := rank(sums, func(s *domain.InvestmentSummary) bool { return s.TotalShareCapital.IsPositive() },
			func(a, b *domain.InvestmentSummary) int { return a.TotalShareCapital.Cmp(b.TotalShareCapital) })

		for _, sum := range sums {
			if err := tx.Summaries().SetRankings(ctx, sum.MemberID, byTotal[sum.MemberID], byShare[sum.MemberID]); err != nil {
				return err
			}
			ranked = append(ranked, sum.MemberID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.invalidateSummary(ctx, ranked...)
	s.logger.Info("Members ranked", map[string]interface{}{"summaries": len(ranked)})
	return len(ranked), nil
}

// rank orders the included summaries descending by cmp and returns each
// member's 1-based position.
func rank(sums []*domain.InvestmentSummary, include func(*domain.InvestmentSummary) bool, cmp func(a, b *domain.InvestmentSummary) int) map[uuid.UUID]*int {
	var eligible []*domain.InvestmentSummary
	for _, s := range sums {
		if include(s) {
			eligible = append(eligible, s)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if c := cmp(eligible[i], eligible[j]); c != 0 {
			return c > 0
		}
		return eligible[i].MemberID.String() < eligible[j].MemberID.String()
	})
	out := make(map[uuid.UUID]*int, len(eligible))
	for i, s := range eligible {
		pos := i + 1
		out[s.MemberID] = &pos
	}
	return out
}

// Rebuild recomputes every member's summary, then re-ranks.
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
		if _, err := s.UpdateSummary(ctx, m.ID); err != nil {
			return i, errors.Wrap(err, "rebuild summary for member "+m.ID.String())
		}
	}
	if _, err := s.RankMembers(ctx); err != nil {
		return len(members), err
	}
	return len(members), nil
}
