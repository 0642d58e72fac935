package dividend

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/internal/investment"
	"sacco/internal/ledger"
	"sacco/internal/policy"
	"sacco/internal/repository/memory"
	"sacco/pkg/errors"
	"sacco/pkg/logger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc    *Service
	invest *investment.Service
	ledger *ledger.Service
	store  *memory.Store
	admin  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	log := logger.NewNop()
	src := policy.Static(policy.Default())
	l := ledger.NewService(st, nil, time.Minute, nil, log)
	inv := investment.NewService(st, src, l, nil, time.Minute, nil, log)
	return &fixture{
		svc:    NewService(st, src, inv, l, nil, log),
		invest: inv,
		ledger: l,
		store:  st,
		admin:  uuid.New(),
	}
}

func (f *fixture) member(t *testing.T) uuid.UUID {
	t.Helper()
	approved := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	f.store.AddMember(domain.Member{ID: id, Status: domain.MemberStatusApproved, DateApproved: &approved})
	return id
}

func (f *fixture) invested(t *testing.T, memberID uuid.UUID, typ domain.InvestmentType, amount string, on time.Time) {
	t.Helper()
	ctx := context.Background()
	inv, err := f.invest.RecordInvestment(ctx, &investment.RecordRequest{
		MemberID: memberID, Type: typ, Amount: dec(amount), InvestmentDate: &on,
	})
	require.NoError(t, err)
	_, err = f.invest.ConfirmInvestment(ctx, inv.ID, f.admin, "")
	require.NoError(t, err)
}

func (f *fixture) row(t *testing.T, year int, memberID uuid.UUID) *domain.DividendPayment {
	t.Helper()
	rows, err := f.svc.ForYear(context.Background(), year)
	require.NoError(t, err)
	for _, r := range rows {
		if r.MemberID == memberID {
			return r
		}
	}
	return nil
}

var mid2023 = time.Date(2023, 6, 30, 12, 0, 0, 0, time.UTC)

func TestCalculateForYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saver := f.member(t)
	f.invested(t, saver, domain.InvestmentTypeShareCapital, "5000", mid2023)
	f.invested(t, saver, domain.InvestmentTypeMonthlyInvestment, "1200", mid2023)

	odd := f.member(t)
	f.invested(t, odd, domain.InvestmentTypeShareCapital, "1234.57", mid2023)

	latecomer := f.member(t)
	f.invested(t, latecomer, domain.InvestmentTypeShareCapital, "5000", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	depositor := f.member(t)
	f.invested(t, depositor, domain.InvestmentTypeSpecialDeposit, "900", mid2023)

	report, err := f.svc.CalculateForYear(ctx, 2023, dec("10"), dec("5"), f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Calculated)
	assert.Equal(t, 1, report.SkippedZero, "special deposits earn nothing")
	assert.Empty(t, report.Failures)

	row := f.row(t, 2023, saver)
	require.NotNil(t, row)
	assert.True(t, row.ShareCapitalDividend.Equal(dec("500")))
	assert.True(t, row.MonthlyInvestmentDividend.Equal(dec("60")))
	assert.True(t, row.TotalDividend.Equal(dec("560")))
	assert.True(t, row.TotalEligibleAmount.Equal(dec("6200")))
	assert.False(t, row.IsPaid)

	// 1234.57 x 10% = 123.457, rounded half up.
	assert.True(t, f.row(t, 2023, odd).TotalDividend.Equal(dec("123.46")))
	assert.Nil(t, f.row(t, 2023, latecomer))
	assert.Nil(t, f.row(t, 2023, depositor))
	assert.True(t, report.TotalDividend.Equal(dec("683.46")))
}

func TestCalculateForYearOverwritesUnpaidRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)
	f.invested(t, memberID, domain.InvestmentTypeShareCapital, "5000", mid2023)
	f.invested(t, memberID, domain.InvestmentTypeMonthlyInvestment, "1200", mid2023)

	_, err := f.svc.CalculateForYear(ctx, 2023, dec("10"), dec("5"), f.admin)
	require.NoError(t, err)
	first := f.row(t, 2023, memberID)

	_, err = f.svc.CalculateForYear(ctx, 2023, dec("8"), dec("4"), f.admin)
	require.NoError(t, err)
	second := f.row(t, 2023, memberID)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.TotalDividend.Equal(dec("448")), "recalculation replaces, got %s", second.TotalDividend)
	assert.True(t, second.ShareCapitalRate.Equal(dec("8")))

	rows, err := f.svc.ForYear(ctx, 2023)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	report, err := f.svc.CalculateForYear(ctx, 2023, decimal.Zero, decimal.Zero, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedZero)
	assert.True(t, f.row(t, 2023, memberID).TotalDividend.IsZero(), "a zero rerun clears the earlier figure")
}

func TestCalculateForYearSkipsIneligibleMembers(t *testing.T) {
	f := newFixture(t)
	memberID := f.member(t)
	f.invested(t, memberID, domain.InvestmentTypeShareCapital, "5000", mid2023)
	f.store.AddMember(domain.Member{ID: memberID, Status: domain.MemberStatusSuspended})

	report, err := f.svc.CalculateForYear(context.Background(), 2023, dec("10"), dec("5"), f.admin)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ineligible)
	assert.Zero(t, report.Calculated)
}

func TestCalculateForYearValidatesRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, tt := range []struct{ share, monthly string }{
		{"-1", "5"},
		{"10", "100.01"},
	} {
		_, err := f.svc.CalculateForYear(ctx, 2023, dec(tt.share), dec(tt.monthly), f.admin)
		assert.True(t, errors.IsValidation(err), "%s / %s", tt.share, tt.monthly)
	}
	_, err := f.svc.CalculateForYear(ctx, 2023, dec("100"), dec("0"), f.admin)
	assert.NoError(t, err)
}

func TestPayDividends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)
	f.invested(t, memberID, domain.InvestmentTypeShareCapital, "5000", mid2023)
	f.invested(t, memberID, domain.InvestmentTypeMonthlyInvestment, "1200", mid2023)
	_, err := f.svc.CalculateForYear(ctx, 2023, dec("10"), dec("5"), f.admin)
	require.NoError(t, err)

	batch, err := f.svc.PayDividends(ctx, 2023, f.admin)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, batch.Status)
	assert.Equal(t, domain.BatchTypeDividendPayment, batch.BatchType)
	assert.Equal(t, 1, batch.SuccessfulTransactions)
	assert.True(t, batch.TotalAmount.Equal(dec("560")))

	row := f.row(t, 2023, memberID)
	assert.True(t, row.IsPaid)
	require.NotNil(t, row.PaymentDate)
	assert.True(t, strings.HasPrefix(row.PaymentReference, "DIV-"), row.PaymentReference)

	bal, err := f.ledger.GetBalance(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, bal.CurrentBalance.Equal(dec("560")))

	// Paid rows are frozen.
	report, err := f.svc.CalculateForYear(ctx, 2023, dec("20"), dec("20"), f.admin)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedPaid)
	assert.True(t, f.row(t, 2023, memberID).TotalDividend.Equal(dec("560")))

	again, err := f.svc.PayDividends(ctx, 2023, f.admin)
	require.NoError(t, err)
	assert.Zero(t, again.TotalTransactions)
	bal, err = f.ledger.GetBalance(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, bal.CurrentBalance.Equal(dec("560")), "no double payout")
}
