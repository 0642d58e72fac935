package policy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/internal/repository/memory"
	"sacco/pkg/config"
	"sacco/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Equal(t, 3, p.MinimumMembershipMonths)
	assert.True(t, p.ShareCapitalAmount.Equal(decimal.NewFromInt(5000)))
}

func TestValidate_ReportsBadFields(t *testing.T) {
	p := Default()
	p.LoanMultiplier = decimal.Zero
	p.MaximumLoanPeriodMonths = 0

	err := p.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "loan_multiplier")
	assert.Contains(t, err.Error(), "maximum_loan_period_months")
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.PolicyConfig{
		MinimumMembershipMonths: 6,
		ShareCapitalAmount:      decimal.NewFromInt(10000),
		LoanMultiplier:          decimal.NewFromInt(2),
		MaximumLoanPeriodMonths: 24,
	})
	assert.Equal(t, 6, p.MinimumMembershipMonths)
	assert.Equal(t, 24, p.MaximumLoanPeriodMonths)
	assert.True(t, p.LoanMultiplier.Equal(decimal.NewFromInt(2)))
}

func TestHelpers(t *testing.T) {
	p := Default()
	lt := &domain.LoanType{
		InterestRate:            decimal.NewFromInt(15),
		MinimumMembershipMonths: 6,
		MaximumPeriodMonths:     24,
		RequiresGuarantor:       true,
	}

	assert.True(t, p.MaximumLoanFor(decimal.RequireFromString("1000.50")).Equal(decimal.RequireFromString("3001.50")))
	assert.True(t, p.EffectiveRate(lt).Equal(decimal.NewFromInt(15)))
	assert.True(t, p.EffectiveRate(&domain.LoanType{}).Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 6, p.MinimumMembershipFor(lt))
	assert.Equal(t, 12, p.MaximumPeriodFor(lt))
	assert.True(t, p.RequiresGuarantor(lt))

	p.RequireGuarantors = false
	assert.False(t, p.RequiresGuarantor(lt))
}

func TestSettingsSource(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	src := NewSettingsSource(st, Default())

	p, err := src.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	st.PutSettings(domain.SaccoSettings{
		ID:                         uuid.New(),
		MinimumMembershipMonths:    1,
		ShareCapitalAmount:         decimal.NewFromInt(8000),
		LoanMultiplier:             decimal.NewFromInt(4),
		DefaultLoanInterestRate:    decimal.NewFromInt(10),
		MaximumLoanPeriodMonths:    36,
		MinimumGuarantorPercentage: decimal.NewFromInt(10),
		MinimumMonthlyInvestment:   decimal.NewFromInt(50),
		UpdatedAt:                  time.Now(),
	})

	p, err = src.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 36, p.MaximumLoanPeriodMonths)
	assert.True(t, p.ShareCapitalAmount.Equal(decimal.NewFromInt(8000)))
}

func TestStatic(t *testing.T) {
	p, err := Static(Default()).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}
