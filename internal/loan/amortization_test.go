package loan

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeAmortization(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		months    int
		payment   string
		total     string
		interest  string
	}{
		{"reference loan", "10000", "12", 12, "888.49", "10661.88", "661.88"},
		{"zero rate divides evenly", "1200", "0", 12, "100", "1200", "0"},
		{"zero rate rounds half up", "2000", "0", 3, "666.67", "2000.01", "0.01"},
		{"single month", "5000", "12", 1, "5050", "5050", "50"},
		{"zero rate rounds down below half", "1000", "0", 4, "250", "1000", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeAmortization(dec(tt.principal), dec(tt.rate), tt.months)
			require.NoError(t, err)
			assert.True(t, got.MonthlyPayment.Equal(dec(tt.payment)), "payment %s", got.MonthlyPayment)
			assert.True(t, got.TotalRepayment.Equal(dec(tt.total)), "total %s", got.TotalRepayment)
			assert.True(t, got.TotalInterest.Equal(dec(tt.interest)), "interest %s", got.TotalInterest)
		})
	}
}

func TestComputeAmortizationRejectsBadInput(t *testing.T) {
	_, err := ComputeAmortization(decimal.Zero, dec("12"), 12)
	assert.True(t, errors.IsValidation(err))
	_, err = ComputeAmortization(dec("100"), dec("12"), 0)
	assert.True(t, errors.IsValidation(err))
	_, err = ComputeAmortization(dec("100"), dec("-1"), 12)
	assert.True(t, errors.IsValidation(err))
}

func scheduledLoan(t *testing.T, principal, rate decimal.Decimal, months int, disbursed time.Time) *domain.Loan {
	t.Helper()
	terms, err := ComputeAmortization(principal, rate, months)
	require.NoError(t, err)
	return &domain.Loan{
		ID:                    uuid.New(),
		PrincipalAmount:       principal,
		InterestRate:          rate,
		RepaymentPeriodMonths: months,
		MonthlyPayment:        terms.MonthlyPayment,
		TotalInterest:         terms.TotalInterest,
		TotalAmount:           terms.TotalRepayment,
		DisbursementDate:      disbursed,
	}
}

func TestGenerateScheduleReferenceLoan(t *testing.T) {
	disbursed := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	l := scheduledLoan(t, dec("10000"), dec("12"), 12, disbursed)

	rows := GenerateSchedule(l)
	require.Len(t, rows, 12)

	first := rows[0]
	assert.Equal(t, 1, first.PaymentNumber)
	assert.True(t, first.InterestPortion.Equal(dec("100")))
	assert.True(t, first.PrincipalPortion.Equal(dec("788.49")))
	assert.True(t, first.EndingBalance.Equal(dec("9211.51")))
	assert.Equal(t, time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC), first.DueDate)

	principal := decimal.Zero
	for i, r := range rows {
		assert.Equal(t, i+1, r.PaymentNumber)
		assert.Equal(t, AddMonths(disbursed, i+1), r.DueDate)
		if i > 0 {
			assert.True(t, r.BeginningBalance.Equal(rows[i-1].EndingBalance))
		}
		principal = principal.Add(r.PrincipalPortion)
	}
	assert.True(t, principal.Equal(l.PrincipalAmount))
	assert.True(t, rows[11].EndingBalance.IsZero())
}

func TestGenerateScheduleAlwaysEndsAtZero(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	disbursed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		principal := decimal.New(int64(rng.Intn(10_000_000)+100), -2)
		rate := decimal.New(int64(rng.Intn(3600)), -2)
		months := rng.Intn(72) + 1
		l := scheduledLoan(t, principal, rate, months, disbursed)

		rows := GenerateSchedule(l)
		require.Len(t, rows, months)
		last := rows[len(rows)-1]
		require.True(t, last.EndingBalance.IsZero(),
			"principal %s rate %s months %d ends at %s", principal, rate, months, last.EndingBalance)
		for _, r := range rows {
			require.False(t, r.EndingBalance.IsNegative())
			require.True(t, r.ScheduledPayment.Equal(r.InterestPortion.Add(r.PrincipalPortion)))
		}
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		from time.Time
		n    int
		want time.Time
	}{
		{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 1, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), 1, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), 3, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC), 12, time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 2, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AddMonths(tt.from, tt.n), "%s + %d", tt.from.Format("2006-01-02"), tt.n)
	}
}

func TestUpdateLoanStatus(t *testing.T) {
	due := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		status  domain.LoanStatus
		balance string
		now     time.Time
		want    domain.LoanStatus
	}{
		{"current", domain.LoanStatusActive, "500", due, domain.LoanStatusActive},
		{"one day late", domain.LoanStatusActive, "500", due.AddDate(0, 0, 1), domain.LoanStatusOverdue},
		{"ninety days late", domain.LoanStatusOverdue, "500", due.AddDate(0, 0, 90), domain.LoanStatusOverdue},
		{"ninety one days late", domain.LoanStatusOverdue, "500", due.AddDate(0, 0, 91), domain.LoanStatusDefaulted},
		{"caught up", domain.LoanStatusOverdue, "500", due.AddDate(0, 0, -3), domain.LoanStatusActive},
		{"paid off", domain.LoanStatusOverdue, "0", due.AddDate(0, 0, 40), domain.LoanStatusPaidOff},
		{"written off stays", domain.LoanStatusWrittenOff, "500", due.AddDate(0, 0, 200), domain.LoanStatusWrittenOff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &domain.Loan{Status: tt.status, BalanceRemaining: dec(tt.balance), NextPaymentDate: due}
			assert.Equal(t, tt.want, UpdateLoanStatus(l, tt.now))
			assert.Equal(t, tt.want, l.Status)
			if tt.want == domain.LoanStatusPaidOff {
				require.NotNil(t, l.ActualCompletionDate)
				frozen := *l.ActualCompletionDate
				UpdateLoanStatus(l, tt.now.AddDate(0, 1, 0))
				assert.Equal(t, frozen, *l.ActualCompletionDate)
			}
		})
	}
}
