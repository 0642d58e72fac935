package investment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/internal/ledger"
	"sacco/internal/policy"
	"sacco/internal/repository/memory"
	"sacco/internal/store"
	"sacco/pkg/errors"
	"sacco/pkg/logger"
)

type fixture struct {
	svc    *Service
	ledger *ledger.Service
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	log := logger.NewNop()
	l := ledger.NewService(st, nil, time.Minute, nil, log)
	svc := NewService(st, policy.Static(policy.Default()), l, nil, time.Minute, nil, log)
	return &fixture{svc: svc, ledger: l, store: st}
}

func (f *fixture) member(t *testing.T) uuid.UUID {
	t.Helper()
	approved := time.Now().UTC().AddDate(-1, 0, 0)
	id := uuid.New()
	f.store.AddMember(domain.Member{ID: id, Status: domain.MemberStatusApproved, DateApproved: &approved})
	return id
}

func (f *fixture) confirmed(t *testing.T, memberID uuid.UUID, typ domain.InvestmentType, amount string) *domain.Investment {
	t.Helper()
	ctx := context.Background()
	inv, err := f.svc.RecordInvestment(ctx, &RecordRequest{MemberID: memberID, Type: typ, Amount: decimal.RequireFromString(amount)})
	require.NoError(t, err)
	inv, err = f.svc.ConfirmInvestment(ctx, inv.ID, uuid.New(), "")
	require.NoError(t, err)
	return inv
}

func TestRecordInvestmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)

	pendingID := uuid.New()
	f.store.AddMember(domain.Member{ID: pendingID, Status: domain.MemberStatusPending})

	tests := []struct {
		name  string
		req   *RecordRequest
		check func(error) bool
	}{
		{"zero amount", &RecordRequest{MemberID: memberID, Type: domain.InvestmentTypeSpecialDeposit, Amount: decimal.Zero}, errors.IsValidation},
		{"negative amount", &RecordRequest{MemberID: memberID, Type: domain.InvestmentTypeSpecialDeposit, Amount: decimal.NewFromInt(-5)}, errors.IsValidation},
		{"bad type", &RecordRequest{MemberID: memberID, Type: "bond", Amount: decimal.NewFromInt(500)}, errors.IsValidation},
		{"monthly below minimum", &RecordRequest{MemberID: memberID, Type: domain.InvestmentTypeMonthlyInvestment, Amount: decimal.NewFromInt(99)}, errors.IsValidation},
		{"member not approved", &RecordRequest{MemberID: pendingID, Type: domain.InvestmentTypeSpecialDeposit, Amount: decimal.NewFromInt(500)}, errors.IsValidation},
		{"share capital above cap", &RecordRequest{MemberID: memberID, Type: domain.InvestmentTypeShareCapital, Amount: decimal.NewFromInt(5001)}, errors.IsLimitExceeded},
		{"unknown member", &RecordRequest{MemberID: uuid.New(), Type: domain.InvestmentTypeSpecialDeposit, Amount: decimal.NewFromInt(500)}, errors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordInvestment(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestConfirmInvestmentUpdatesSummaryAndBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)

	f.confirmed(t, memberID, domain.InvestmentTypeShareCapital, "2000")
	f.confirmed(t, memberID, domain.InvestmentTypeMonthlyInvestment, "500")
	f.confirmed(t, memberID, domain.InvestmentTypeSpecialDeposit, "300")

	sum, err := f.svc.GetSummary(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, sum.TotalShareCapital.Equal(decimal.NewFromInt(2000)))
	assert.True(t, sum.TotalInvestments.Equal(decimal.NewFromInt(2800)))
	assert.True(t, sum.LoanEligibleAmount.Equal(decimal.NewFromInt(2500)))
	assert.True(t, sum.MaximumLoanAmount.Equal(decimal.NewFromInt(7500)))
	assert.Equal(t, 3, sum.InvestmentCount)
	require.NotNil(t, sum.FirstInvestmentDate)

	bal, err := f.ledger.GetBalance(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, bal.ShareCapitalBalance.Equal(decimal.NewFromInt(2000)))
	assert.True(t, bal.SavingsBalance.Equal(decimal.NewFromInt(800)))
}

func TestConfirmInvestmentStateGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)

	inv := f.confirmed(t, memberID, domain.InvestmentTypeSpecialDeposit, "250")
	_, err := f.svc.ConfirmInvestment(ctx, inv.ID, uuid.New(), "")
	var stateErr *errors.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "confirmed", stateErr.Current)

	_, err = f.svc.RejectInvestment(ctx, inv.ID, uuid.New(), "wrong amount")
	assert.True(t, errors.IsInvalidState(err))

	pending, err := f.svc.RecordInvestment(ctx, &RecordRequest{MemberID: memberID, Type: domain.InvestmentTypeSpecialDeposit, Amount: decimal.NewFromInt(40)})
	require.NoError(t, err)
	_, err = f.svc.RejectInvestment(ctx, pending.ID, uuid.New(), "")
	assert.True(t, errors.IsValidation(err))
	rejected, err := f.svc.RejectInvestment(ctx, pending.ID, uuid.New(), "cheque bounced")
	require.NoError(t, err)
	assert.Equal(t, domain.InvestmentStatusRejected, rejected.Status)

	_, err = f.svc.ConfirmInvestment(ctx, pending.ID, uuid.New(), "")
	assert.True(t, errors.IsInvalidState(err))

	_, err = f.svc.ConfirmInvestment(ctx, uuid.New(), uuid.New(), "")
	assert.ErrorIs(t, err, errors.ErrInvestmentNotFound)
}

func TestShareCapitalCapOnConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)

	f.confirmed(t, memberID, domain.InvestmentTypeShareCapital, "4000")
	over, err := f.svc.RecordInvestment(ctx, &RecordRequest{MemberID: memberID, Type: domain.InvestmentTypeShareCapital, Amount: decimal.NewFromInt(1500)})
	require.NoError(t, err)

	_, err = f.svc.ConfirmInvestment(ctx, over.ID, uuid.New(), "")
	var limitErr *errors.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.True(t, limitErr.Limit.Equal(decimal.NewFromInt(5000)))
	assert.True(t, limitErr.Attempted.Equal(decimal.NewFromInt(5500)))

	var still *domain.Investment
	require.NoError(t, f.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		still, err = tx.Investments().FindByID(ctx, over.ID)
		return err
	}))
	assert.Equal(t, domain.InvestmentStatusPending, still.Status)

	f.confirmed(t, memberID, domain.InvestmentTypeShareCapital, "1000")
}

func TestConcurrentShareCapitalConfirmations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)

	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		inv, err := f.svc.RecordInvestment(ctx, &RecordRequest{MemberID: memberID, Type: domain.InvestmentTypeShareCapital, Amount: decimal.NewFromInt(3000)})
		require.NoError(t, err)
		ids = append(ids, inv.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.svc.ConfirmInvestment(ctx, id, uuid.New(), "")
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.IsLimitExceeded(err), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	sum, err := f.svc.UpdateSummary(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, sum.TotalShareCapital.LessThanOrEqual(decimal.NewFromInt(5000)))
}

func TestRankMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b, c, d := f.member(t), f.member(t), f.member(t), f.member(t)
	f.confirmed(t, a, domain.InvestmentTypeSpecialDeposit, "900")
	f.confirmed(t, b, domain.InvestmentTypeShareCapital, "1200")
	f.confirmed(t, c, domain.InvestmentTypeShareCapital, "500")
	f.confirmed(t, c, domain.InvestmentTypeSpecialDeposit, "700")
	_, err := f.svc.UpdateSummary(ctx, d)
	require.NoError(t, err)

	n, err := f.svc.RankMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	get := func(id uuid.UUID) *domain.InvestmentSummary {
		sum, err := f.svc.GetSummary(ctx, id)
		require.NoError(t, err)
		return sum
	}

	// b and c tie on total 1200; the lower member id ranks first.
	first, second := b, c
	if c.String() < b.String() {
		first, second = c, b
	}
	require.NotNil(t, get(first).RankingByTotal)
	assert.Equal(t, 1, *get(first).RankingByTotal)
	assert.Equal(t, 2, *get(second).RankingByTotal)
	assert.Equal(t, 3, *get(a).RankingByTotal)
	assert.Nil(t, get(d).RankingByTotal)

	assert.Equal(t, 1, *get(b).RankingByShareCapital)
	assert.Equal(t, 2, *get(c).RankingByShareCapital)
	assert.Nil(t, get(a).RankingByShareCapital)
}

func TestRebuildRecomputesFromInvestments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)
	f.confirmed(t, memberID, domain.InvestmentTypeMonthlyInvestment, "400")

	require.NoError(t, f.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Summaries().Upsert(ctx, &domain.InvestmentSummary{MemberID: memberID, TotalInvestments: decimal.NewFromInt(99999)})
	}))

	n, err := f.svc.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sum, err := f.svc.GetSummary(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, sum.TotalInvestments.Equal(decimal.NewFromInt(400)))
	require.NotNil(t, sum.RankingByTotal)
	assert.Equal(t, 1, *sum.RankingByTotal)
}
