package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvestmentType string

const (
	InvestmentTypeShareCapital      InvestmentType = "share_capital"
	InvestmentTypeMonthlyInvestment InvestmentType = "monthly_investment"
	InvestmentTypeSpecialDeposit    InvestmentType = "special_deposit"
)

// Valid reports whether t is a known investment type.
func (t InvestmentType) Valid() bool {
	switch t {
	case InvestmentTypeShareCapital, InvestmentTypeMonthlyInvestment, InvestmentTypeSpecialDeposit:
		return true
	}
	return false
}

type InvestmentStatus string

const (
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusConfirmed InvestmentStatus = "confirmed"
	InvestmentStatusRejected  InvestmentStatus = "rejected"
)

// Investment is a single member contribution.
type Investment struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	MemberID        uuid.UUID        `json:"member_id" db:"member_id"`
	Type            InvestmentType   `json:"investment_type" db:"investment_type"`
	Amount          decimal.Decimal  `json:"amount" db:"amount"`
	Status          InvestmentStatus `json:"status" db:"status"`
	PaymentMethod   string           `json:"payment_method" db:"payment_method"`
	Reference       string           `json:"reference" db:"reference"`
	Notes           string           `json:"notes" db:"notes"`
	InvestmentDate  time.Time        `json:"investment_date" db:"investment_date"`
	ConfirmedBy     *uuid.UUID       `json:"confirmed_by,omitempty" db:"confirmed_by"`
	ConfirmedAt     *time.Time       `json:"confirmed_at,omitempty" db:"confirmed_at"`
	RejectionReason string           `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// InvestmentSummary is a projection of a member's confirmed investments.
// It is always rebuilt from Investment rows and never edited in place.
type InvestmentSummary struct {
	MemberID                uuid.UUID       `json:"member_id" db:"member_id"`
	TotalShareCapital       decimal.Decimal `json:"total_share_capital" db:"total_share_capital"`
	TotalMonthlyInvestments decimal.Decimal `json:"total_monthly_investments" db:"total_monthly_investments"`
	TotalSpecialDeposits    decimal.Decimal `json:"total_special_deposits" db:"total_special_deposits"`
	TotalInvestments        decimal.Decimal `json:"total_investments" db:"total_investments"`
	LoanEligibleAmount      decimal.Decimal `json:"loan_eligible_amount" db:"loan_eligible_amount"`
	MaximumLoanAmount       decimal.Decimal `json:"maximum_loan_amount" db:"maximum_loan_amount"`
	FirstInvestmentDate     *time.Time      `json:"first_investment_date,omitempty" db:"first_investment_date"`
	LastInvestmentDate      *time.Time      `json:"last_investment_date,omitempty" db:"last_investment_date"`
	InvestmentCount         int             `json:"investment_count" db:"investment_count"`
	RankingByTotal          *int            `json:"ranking_by_total,omitempty" db:"ranking_by_total"`
	RankingByShareCapital   *int            `json:"ranking_by_share_capital,omitempty" db:"ranking_by_share_capital"`
	UpdatedAt               time.Time       `json:"updated_at" db:"updated_at"`
}

type TargetType string

const (
	TargetTypePersonal  TargetType = "personal"
	TargetTypeSaccoWide TargetType = "sacco_wide"
)

type PeriodType string

const (
	PeriodTypeMonthly   PeriodType = "monthly"
	PeriodTypeQuarterly PeriodType = "quarterly"
	PeriodTypeAnnually  PeriodType = "annually"
)

// InvestmentTarget is a savings goal for one member or for the whole SACCO.
// CurrentAmount is the sum of confirmed investments dated inside the target
// window, refreshed from Investment rows.
type InvestmentTarget struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	TargetType    TargetType      `json:"target_type" db:"target_type"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	TargetAmount  decimal.Decimal `json:"target_amount" db:"target_amount"`
	PeriodType    PeriodType      `json:"period_type" db:"period_type"`
	MemberID      *uuid.UUID      `json:"member_id,omitempty" db:"member_id"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	EndDate       time.Time       `json:"end_date" db:"end_date"`
	CurrentAmount decimal.Decimal `json:"current_amount" db:"current_amount"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	CreatedBy     uuid.UUID       `json:"created_by" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

var hundred = decimal.NewFromInt(100)

// ProgressPercentage is current/target as a percentage, capped at 100.
func (t *InvestmentTarget) ProgressPercentage() decimal.Decimal {
	if !t.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	pct := t.CurrentAmount.Div(t.TargetAmount).Mul(hundred).Round(2)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

func (t *InvestmentTarget) RemainingAmount() decimal.Decimal {
	rest := t.TargetAmount.Sub(t.CurrentAmount)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

func (t *InvestmentTarget) IsAchieved() bool {
	return t.CurrentAmount.GreaterThanOrEqual(t.TargetAmount)
}

// WindowEnd is the first instant after the target's last day.
func (t *InvestmentTarget) WindowEnd() time.Time {
	return truncateDay(t.EndDate).AddDate(0, 0, 1)
}

// WindowStart is the start of the target's first day.
func (t *InvestmentTarget) WindowStart() time.Time {
	return truncateDay(t.StartDate)
}
