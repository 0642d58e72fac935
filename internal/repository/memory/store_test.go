package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/internal/store"
	"sacco/pkg/errors"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	memberID := uuid.New()
	inv := &domain.Investment{
		ID:       uuid.New(),
		MemberID: memberID,
		Type:     domain.InvestmentTypeShareCapital,
		Amount:   decimal.NewFromInt(100),
		Status:   domain.InvestmentStatusPending,
	}

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.Investments().Create(ctx, inv))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Investments().FindByID(ctx, inv.ID)
		return err
	})
	assert.True(t, errors.IsNotFound(err))
	assert.ErrorIs(t, err, errors.ErrInvestmentNotFound)
}

func TestTransactionIDIsUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		first := &domain.Transaction{ID: uuid.New(), TransactionID: "DEP-20240101000000-ABCDEF", CreatedAt: now}
		require.NoError(t, tx.Transactions().Create(ctx, first))

		dup := &domain.Transaction{ID: uuid.New(), TransactionID: first.TransactionID, CreatedAt: now}
		assert.ErrorIs(t, tx.Transactions().Create(ctx, dup), errors.ErrDuplicateIdentifier)
		return nil
	})
	require.NoError(t, err)
}

func TestLoanSequenceIsPerYear(t *testing.T) {
	s := New()
	ctx := context.Background()

	var got []int
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, year := range []int{2024, 2024, 2025, 2024} {
			n, err := tx.Loans().NextSequence(ctx, year)
			if err != nil {
				return err
			}
			got = append(got, n)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1, 3}, got)
}

func TestDividendUpsertOverwritesUnpaidRow(t *testing.T) {
	s := New()
	ctx := context.Background()
	memberID := uuid.New()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		first := &domain.DividendPayment{ID: uuid.New(), Year: 2024, MemberID: memberID, TotalDividend: decimal.NewFromInt(10)}
		require.NoError(t, tx.Dividends().Upsert(ctx, first))

		second := &domain.DividendPayment{ID: uuid.New(), Year: 2024, MemberID: memberID, TotalDividend: decimal.NewFromInt(20)}
		require.NoError(t, tx.Dividends().Upsert(ctx, second))
		assert.Equal(t, first.ID, second.ID)

		rows, err := tx.Dividends().ListByYear(ctx, 2024)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].TotalDividend.Equal(decimal.NewFromInt(20)))
		return nil
	})
	require.NoError(t, err)
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(context.Context, store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
