package repayment

import (
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/pkg/money"
)

// Allocation splits a payment into its penalty, interest and principal parts.
type Allocation struct {
	Penalty   decimal.Decimal `json:"penalty_amount"`
	Interest  decimal.Decimal `json:"interest_amount"`
	Principal decimal.Decimal `json:"principal_amount"`
}

// Total is the amount that was allocated.
func (a Allocation) Total() decimal.Decimal {
	return a.Penalty.Add(a.Interest).Add(a.Principal)
}

// Allocate applies amount to the loan's unpaid penalties first, then to the
// interest not yet covered by confirmed payments, then to principal.
// interestPaid is the interest already allocated by earlier confirmed payments.
func Allocate(amount decimal.Decimal, l *domain.Loan, interestPaid decimal.Decimal) Allocation {
	remaining := money.NonNegative(money.Round(amount))
	var a Allocation

	a.Penalty = money.Min(l.PendingPenalty(), remaining)
	remaining = remaining.Sub(a.Penalty)

	interestDue := money.NonNegative(l.TotalInterest.Sub(interestPaid))
	a.Interest = money.Min(interestDue, remaining)
	remaining = remaining.Sub(a.Interest)

	a.Principal = remaining
	return a
}
