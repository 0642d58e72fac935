package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPolicyDefaults(t *testing.T) {
	p, err := LoadPolicy()
	require.NoError(t, err)

	assert.Equal(t, 3, p.MinimumMembershipMonths)
	assert.True(t, p.ShareCapitalAmount.Equal(decimal.NewFromInt(5000)))
	assert.True(t, p.LoanMultiplier.Equal(decimal.NewFromInt(3)))
	assert.True(t, p.DefaultLoanInterestRate.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 12, p.MaximumLoanPeriodMonths)
	assert.True(t, p.RequireGuarantors)
	assert.True(t, p.MinimumGuarantorPercentage.Equal(decimal.NewFromInt(25)))
	assert.True(t, p.MinimumMonthlyInvestment.Equal(decimal.NewFromInt(100)))
}

func TestLoadPolicyOverrides(t *testing.T) {
	t.Setenv("SACCO_SHARE_CAPITAL_AMOUNT", "7500.50")
	t.Setenv("SACCO_REQUIRE_GUARANTORS", "false")

	p, err := LoadPolicy()
	require.NoError(t, err)
	assert.Equal(t, "7500.5", p.ShareCapitalAmount.String())
	assert.False(t, p.RequireGuarantors)
}

func TestLoadPolicyRejectsGarbage(t *testing.T) {
	t.Setenv("SACCO_LOAN_MULTIPLIER", "three")

	_, err := LoadPolicy()
	assert.Error(t, err)
}

func TestValidateCore(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sacco")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := Load()
	require.NoError(t, cfg.ValidateCore())

	cfg.JWT.Secret = "change-this-secret"
	assert.ErrorContains(t, cfg.ValidateCore(), "JWT_SECRET")

	cfg.JWT.Secret = "s3cret"
	cfg.Policy.LoanMultiplier = decimal.Zero
	assert.ErrorContains(t, cfg.ValidateCore(), "SACCO_LOAN_MULTIPLIER")
}
