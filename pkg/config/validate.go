// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidateCore ensures critical configuration is present.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" || c.JWT.Secret == "change-this-secret" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Email.Enabled && strings.TrimSpace(c.Email.SMTPFrom) == "" {
		missing = append(missing, "SMTP_FROM")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return c.ValidatePolicy()
}

// ValidatePolicy rejects policy values no SACCO could run with.
func (c *Config) ValidatePolicy() error {
	if c.policyErr != nil {
		return c.policyErr
	}
	var invalid []string
	p := c.Policy
	if p.MinimumMembershipMonths < 0 {
		invalid = append(invalid, "SACCO_MINIMUM_MEMBERSHIP_MONTHS")
	}
	if !p.ShareCapitalAmount.IsPositive() {
		invalid = append(invalid, "SACCO_SHARE_CAPITAL_AMOUNT")
	}
	if !p.LoanMultiplier.IsPositive() {
		invalid = append(invalid, "SACCO_LOAN_MULTIPLIER")
	}
	if p.DefaultLoanInterestRate.IsNegative() {
		invalid = append(invalid, "SACCO_DEFAULT_LOAN_INTEREST_RATE")
	}
	if p.MaximumLoanPeriodMonths < 1 {
		invalid = append(invalid, "SACCO_MAXIMUM_LOAN_PERIOD_MONTHS")
	}
	if p.MinimumGuarantorPercentage.IsNegative() || p.MinimumGuarantorPercentage.GreaterThan(hundred) {
		invalid = append(invalid, "SACCO_MINIMUM_GUARANTOR_PERCENTAGE")
	}
	if p.MinimumMonthlyInvestment.IsNegative() {
		invalid = append(invalid, "SACCO_MINIMUM_MONTHLY_INVESTMENT")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid policy configuration: %s", strings.Join(invalid, ", "))
	}
	return nil
}
