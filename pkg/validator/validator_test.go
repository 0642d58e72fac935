package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sacco/pkg/errors"
)

type amountRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
	Kind   string          `json:"kind" validate:"required,oneof=a b"`
}

func TestMoneyTag(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(amountRequest{Amount: decimal.RequireFromString("10.50"), Kind: "a"}))

	for _, bad := range []string{"0", "-5", "10.505"} {
		err := v.Validate(amountRequest{Amount: decimal.RequireFromString(bad), Kind: "a"})
		require.Error(t, err, bad)

		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "amount", verr.Field)
	}
}

func TestValidateStructuredUsesJSONNames(t *testing.T) {
	v := New()

	errs := v.ValidateStructured(amountRequest{Amount: decimal.NewFromInt(1)})
	require.Len(t, errs, 1)
	assert.Equal(t, "is required", errs["kind"])
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", Sanitize("  <b>hi</b> "))
}
