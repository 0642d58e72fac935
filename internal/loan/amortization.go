package loan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/pkg/errors"
	"sacco/pkg/money"
)

// Amortization holds the fixed-installment terms of a loan.
type Amortization struct {
	MonthlyRate    decimal.Decimal `json:"monthly_rate"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalRepayment decimal.Decimal `json:"total_repayment"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
}

// MonthlyRate converts an annual percentage rate to a monthly fraction.
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return annualRatePct.Div(money.Hundred).Div(money.Twelve)
}

// ComputeAmortization prices a loan with the standard annuity formula
//
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)
//
// or P / n when the rate is zero. The payment is rounded half-up to cents and
// the totals are derived from the rounded payment.
func ComputeAmortization(principal, annualRatePct decimal.Decimal, months int) (Amortization, error) {
	if !principal.IsPositive() {
		return Amortization{}, errors.NewValidation("principal", "must be positive")
	}
	if months < 1 {
		return Amortization{}, errors.NewValidation("months", "must be at least 1")
	}
	if annualRatePct.IsNegative() || annualRatePct.GreaterThan(money.Hundred) {
		return Amortization{}, errors.NewValidation("interest_rate", "must be between 0 and 100")
	}

	n := decimal.NewFromInt(int64(months))
	r := MonthlyRate(annualRatePct)
	var payment decimal.Decimal
	if r.IsZero() {
		payment = principal.Div(n)
	} else {
		growth := compound(decimal.NewFromInt(1).Add(r), months)
		payment = principal.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	}
	payment = money.Round(payment)
	total := payment.Mul(n)
	return Amortization{
		MonthlyRate:    r,
		MonthlyPayment: payment,
		TotalRepayment: total,
		TotalInterest:  total.Sub(principal),
	}, nil
}

// compound returns base^n, rounded at every step to keep the scale bounded
// on long terms.
func compound(base decimal.Decimal, n int) decimal.Decimal {
	out := decimal.NewFromInt(1)
	for i := 0; i < n; i++ {
		out = out.Mul(base).Round(compoundPlaces)
	}
	return out
}

const compoundPlaces = 24

// GenerateSchedule lays out one row per month. The last row takes whatever
// principal is left, so its ending balance is exactly zero.
func GenerateSchedule(l *domain.Loan) []*domain.LoanSchedule {
	r := MonthlyRate(l.InterestRate)
	balance := l.PrincipalAmount
	rows := make([]*domain.LoanSchedule, 0, l.RepaymentPeriodMonths)
	for k := 1; k <= l.RepaymentPeriodMonths; k++ {
		interest := money.Round(balance.Mul(r))
		principal := l.MonthlyPayment.Sub(interest)
		if k == l.RepaymentPeriodMonths || principal.GreaterThan(balance) {
			principal = balance
		}
		if principal.IsNegative() {
			principal = decimal.Zero
		}
		rows = append(rows, &domain.LoanSchedule{
			ID:               uuid.New(),
			LoanID:           l.ID,
			PaymentNumber:    k,
			DueDate:          AddMonths(l.DisbursementDate, k),
			ScheduledPayment: interest.Add(principal),
			PrincipalPortion: principal,
			InterestPortion:  interest,
			BeginningBalance: balance,
			EndingBalance:    balance.Sub(principal),
			CreatedAt:        l.DisbursementDate,
		})
		balance = balance.Sub(principal)
	}
	return rows
}

// AddMonths moves t forward by n calendar months, clamping to the last day
// of the target month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	return domain.AddMonths(t, n)
}
