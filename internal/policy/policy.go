// Package policy holds the SACCO limits every ledger operation is checked
// against.
//
// A Policy is an immutable value. Services read it once from a Source at the
// start of an operation and use that copy until the operation returns, so an
// administrator editing the settings row mid-operation never produces a mixed
// view.
package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/store"
	"sacco/pkg/config"
	"sacco/pkg/errors"
	"sacco/pkg/money"
)

type Policy struct {
	MinimumMembershipMonths    int             `json:"minimum_membership_months"`
	ShareCapitalAmount         decimal.Decimal `json:"share_capital_amount"`
	LoanMultiplier             decimal.Decimal `json:"loan_multiplier"`
	DefaultLoanInterestRate    decimal.Decimal `json:"default_loan_interest_rate"`
	MaximumLoanPeriodMonths    int             `json:"maximum_loan_period_months"`
	RequireGuarantors          bool            `json:"require_guarantors"`
	MinimumGuarantorPercentage decimal.Decimal `json:"minimum_guarantor_percentage"`
	MinimumMonthlyInvestment   decimal.Decimal `json:"minimum_monthly_investment"`
}

// Default mirrors the defaults of a freshly created settings row.
func Default() Policy {
	return Policy{
		MinimumMembershipMonths:    3,
		ShareCapitalAmount:         decimal.NewFromInt(5000),
		LoanMultiplier:             decimal.NewFromInt(3),
		DefaultLoanInterestRate:    decimal.NewFromInt(12),
		MaximumLoanPeriodMonths:    12,
		RequireGuarantors:          true,
		MinimumGuarantorPercentage: decimal.NewFromInt(25),
		MinimumMonthlyInvestment:   decimal.NewFromInt(100),
	}
}

func FromConfig(c config.PolicyConfig) Policy {
	return Policy{
		MinimumMembershipMonths:    c.MinimumMembershipMonths,
		ShareCapitalAmount:         c.ShareCapitalAmount,
		LoanMultiplier:             c.LoanMultiplier,
		DefaultLoanInterestRate:    c.DefaultLoanInterestRate,
		MaximumLoanPeriodMonths:    c.MaximumLoanPeriodMonths,
		RequireGuarantors:          c.RequireGuarantors,
		MinimumGuarantorPercentage: c.MinimumGuarantorPercentage,
		MinimumMonthlyInvestment:   c.MinimumMonthlyInvestment,
	}
}

func FromSettings(s *domain.SaccoSettings) Policy {
	return Policy{
		MinimumMembershipMonths:    s.MinimumMembershipMonths,
		ShareCapitalAmount:         s.ShareCapitalAmount,
		LoanMultiplier:             s.LoanMultiplier,
		DefaultLoanInterestRate:    s.DefaultLoanInterestRate,
		MaximumLoanPeriodMonths:    s.MaximumLoanPeriodMonths,
		RequireGuarantors:          s.RequireGuarantors,
		MinimumGuarantorPercentage: s.MinimumGuarantorPercentage,
		MinimumMonthlyInvestment:   s.MinimumMonthlyInvestment,
	}
}

// Validate reports every out-of-range field at once.
func (p Policy) Validate() error {
	var invalid []string
	if p.MinimumMembershipMonths < 0 {
		invalid = append(invalid, "minimum_membership_months")
	}
	if !p.ShareCapitalAmount.IsPositive() {
		invalid = append(invalid, "share_capital_amount")
	}
	if !p.LoanMultiplier.IsPositive() {
		invalid = append(invalid, "loan_multiplier")
	}
	if p.DefaultLoanInterestRate.IsNegative() || p.DefaultLoanInterestRate.GreaterThan(money.Hundred) {
		invalid = append(invalid, "default_loan_interest_rate")
	}
	if p.MaximumLoanPeriodMonths < 1 {
		invalid = append(invalid, "maximum_loan_period_months")
	}
	if p.MinimumGuarantorPercentage.IsNegative() || p.MinimumGuarantorPercentage.GreaterThan(money.Hundred) {
		invalid = append(invalid, "minimum_guarantor_percentage")
	}
	if p.MinimumMonthlyInvestment.IsNegative() {
		invalid = append(invalid, "minimum_monthly_investment")
	}
	if len(invalid) > 0 {
		return errors.NewValidation(invalid[0], fmt.Sprintf("out of range (%s)", strings.Join(invalid, ", ")))
	}
	return nil
}

// MaximumLoanFor is loan_eligible_amount x loan_multiplier, rounded.
func (p Policy) MaximumLoanFor(loanEligible decimal.Decimal) decimal.Decimal {
	return money.Round(loanEligible.Mul(p.LoanMultiplier))
}

// EffectiveRate prefers the loan type's rate and falls back to the default.
func (p Policy) EffectiveRate(lt *domain.LoanType) decimal.Decimal {
	if lt != nil && lt.InterestRate.IsPositive() {
		return lt.InterestRate
	}
	return p.DefaultLoanInterestRate
}

// MinimumMembershipFor is the stricter of the policy and loan type minimums.
func (p Policy) MinimumMembershipFor(lt *domain.LoanType) int {
	if lt != nil && lt.MinimumMembershipMonths > p.MinimumMembershipMonths {
		return lt.MinimumMembershipMonths
	}
	return p.MinimumMembershipMonths
}

// MaximumPeriodFor is the shorter of the policy and loan type maximum terms.
func (p Policy) MaximumPeriodFor(lt *domain.LoanType) int {
	if lt != nil && lt.MaximumPeriodMonths > 0 && lt.MaximumPeriodMonths < p.MaximumLoanPeriodMonths {
		return lt.MaximumPeriodMonths
	}
	return p.MaximumLoanPeriodMonths
}

// RequiresGuarantor applies the global switch on top of the loan type flag.
func (p Policy) RequiresGuarantor(lt *domain.LoanType) bool {
	return p.RequireGuarantors && lt != nil && lt.RequiresGuarantor
}

// Source supplies the policy in force.
type Source interface {
	Current(ctx context.Context) (Policy, error)
}

// Static always returns the same policy.
type Static Policy

func (s Static) Current(context.Context) (Policy, error) {
	return Policy(s), nil
}

// SettingsSource reads the sacco_settings row in its own unit of work and
// falls back to Base when no row exists. Never call Current from inside
// another unit of work.
type SettingsSource struct {
	Store store.Store
	Base  Policy
}

func NewSettingsSource(st store.Store, base Policy) *SettingsSource {
	return &SettingsSource{Store: st, Base: base}
}

func (s *SettingsSource) Current(ctx context.Context) (Policy, error) {
	p := s.Base
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		settings, err := tx.Settings().Get(ctx)
		if errors.Is(err, errors.ErrSettingsNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		p = FromSettings(settings)
		return nil
	})
	if err != nil {
		return Policy{}, errors.Wrap(err, "load sacco settings")
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
