package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundKeepsSentinel(t *testing.T) {
	err := Wrap(NotFound(ErrLoanNotFound, "loan", "abc"), "confirm payment")

	assert.True(t, IsNotFound(err))
	assert.True(t, stderrors.Is(err, ErrLoanNotFound))
	assert.False(t, stderrors.Is(err, ErrMemberNotFound))
	assert.Contains(t, err.Error(), "abc")
}

func TestInvalidStateNamesCurrentState(t *testing.T) {
	err := NewInvalidState("investment", "42", "confirmed", "pending")

	var target *InvalidStateError
	require.True(t, stderrors.As(err, &target))
	assert.Equal(t, "confirmed", target.Current)
	assert.Equal(t, "investment 42 is confirmed, requires pending", err.Error())
}

func TestLimitExceededCarriesValues(t *testing.T) {
	err := fmt.Errorf("confirm: %w", NewLimitExceeded("share capital", decimal.NewFromInt(5000), decimal.NewFromInt(5500)))

	var target *LimitExceededError
	require.True(t, stderrors.As(err, &target))
	assert.True(t, target.Limit.Equal(decimal.NewFromInt(5000)))
	assert.True(t, target.Attempted.Equal(decimal.NewFromInt(5500)))
	assert.Contains(t, err.Error(), "limit 5000.00, attempted 5500.00")
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
	}{
		{"validation", NewValidation("amount", "must be positive"), IsValidation},
		{"eligibility", &EligibilityError{Violations: []string{"a", "b"}}, IsEligibility},
		{"conflict", &ConcurrencyConflictError{Op: "confirm"}, IsConflict},
		{"state", NewInvalidState("loan", "1", "paid_off", "active"), IsInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.pred(Wrap(tt.err, "outer")))
			assert.False(t, tt.pred(ErrDuplicateIdentifier))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "nothing"))
}
