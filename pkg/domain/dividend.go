package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DividendPayment is unique per (year, member) and recalculated by upsert until paid.
type DividendPayment struct {
	ID                        uuid.UUID       `json:"id" db:"id"`
	Year                      int             `json:"year" db:"year"`
	MemberID                  uuid.UUID       `json:"member_id" db:"member_id"`
	ShareCapitalAmount        decimal.Decimal `json:"share_capital_amount" db:"share_capital_amount"`
	MonthlyInvestmentAmount   decimal.Decimal `json:"monthly_investment_amount" db:"monthly_investment_amount"`
	TotalEligibleAmount       decimal.Decimal `json:"total_eligible_amount" db:"total_eligible_amount"`
	ShareCapitalRate          decimal.Decimal `json:"share_capital_rate" db:"share_capital_rate"`
	MonthlyInvestmentRate     decimal.Decimal `json:"monthly_investment_rate" db:"monthly_investment_rate"`
	ShareCapitalDividend      decimal.Decimal `json:"share_capital_dividend" db:"share_capital_dividend"`
	MonthlyInvestmentDividend decimal.Decimal `json:"monthly_investment_dividend" db:"monthly_investment_dividend"`
	TotalDividend             decimal.Decimal `json:"total_dividend" db:"total_dividend"`
	IsPaid                    bool            `json:"is_paid" db:"is_paid"`
	PaymentDate               *time.Time      `json:"payment_date,omitempty" db:"payment_date"`
	PaymentReference          string          `json:"payment_reference" db:"payment_reference"`
	CalculatedBy              *uuid.UUID      `json:"calculated_by,omitempty" db:"calculated_by"`
	PaidBy                    *uuid.UUID      `json:"paid_by,omitempty" db:"paid_by"`
	CreatedAt                 time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at" db:"updated_at"`
}
