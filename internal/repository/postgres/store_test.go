package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/internal/store"
	"sacco/pkg/errors"
)

// openTestStore connects to DATABASE_URL and applies the migrations. The
// tests are skipped when no database is reachable.
func openTestStore(t *testing.T) (*Store, *sqlx.DB) {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		t.Skip("Skipping integration test: database not available")
	}
	t.Cleanup(func() { db.Close() })

	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithDatabaseInstance("file://../../../migrations", "postgres", driver)
	require.NoError(t, err)
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err)
	}
	return NewStore(db, 2*time.Second), db
}

func seedMember(t *testing.T, db *sqlx.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	approved := time.Now().UTC().AddDate(-1, 0, 0)
	_, err := db.Exec(`INSERT INTO members (id, member_number, first_name, last_name, status, date_approved)
		VALUES ($1, $2, 'Test', 'Member', 'approved', $3)`, id, "M-"+id.String()[:8], approved)
	require.NoError(t, err)
	return id
}

func TestStore_DuplicateTransactionIDKeepsUnitOfWork(t *testing.T) {
	s, db := openTestStore(t)
	ctx := context.Background()
	memberID := seedMember(t, db)
	now := time.Now().UTC()
	businessID := "DEP-" + now.Format("20060102150405") + "-" + uuid.NewString()[:6]

	newTxn := func() *domain.Transaction {
		return &domain.Transaction{
			ID: uuid.New(), TransactionID: businessID, MemberID: memberID,
			Type: domain.TransactionTypeDeposit, Amount: decimal.NewFromInt(100),
			Status: domain.TransactionStatusPending, TransactionDate: now, CreatedAt: now, UpdatedAt: now,
		}
	}

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.Transactions().Create(ctx, newTxn()))
		dup := newTxn()
		err := tx.Transactions().Create(ctx, dup)
		assert.ErrorIs(t, err, errors.ErrDuplicateIdentifier)

		dup.TransactionID = businessID + "X"
		return tx.Transactions().Create(ctx, dup)
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM transactions WHERE member_id = $1`, memberID))
	assert.Equal(t, 2, count)
}

func TestStore_RollbackOnError(t *testing.T) {
	s, db := openTestStore(t)
	ctx := context.Background()
	memberID := seedMember(t, db)
	now := time.Now().UTC()

	sentinel := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inv := &domain.Investment{
			ID: uuid.New(), MemberID: memberID, Type: domain.InvestmentTypeShareCapital,
			Amount: decimal.NewFromInt(5000), Status: domain.InvestmentStatusPending,
			InvestmentDate: now, CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, tx.Investments().Create(ctx, inv))
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM investments WHERE member_id = $1`, memberID))
	assert.Zero(t, count)
}

func TestStore_NextSequenceIsMonotonic(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	year := 3000 + int(time.Now().UnixNano()%1000)

	var first, second int
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		first, err = tx.Loans().NextSequence(ctx, year)
		return err
	}))
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		second, err = tx.Loans().NextSequence(ctx, year)
		return err
	}))
	assert.Equal(t, first+1, second)
}

func TestStore_DividendUpsertRefusesPaidRow(t *testing.T) {
	s, db := openTestStore(t)
	ctx := context.Background()
	memberID := seedMember(t, db)
	now := time.Now().UTC()

	row := &domain.DividendPayment{
		ID: uuid.New(), Year: 2024, MemberID: memberID,
		ShareCapitalAmount: decimal.NewFromInt(5000), TotalEligibleAmount: decimal.NewFromInt(5000),
		ShareCapitalRate: decimal.NewFromInt(10), ShareCapitalDividend: decimal.NewFromInt(500),
		TotalDividend: decimal.NewFromInt(500), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Dividends().Upsert(ctx, row)
	}))

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.Dividends().LockByYearMember(ctx, 2024, memberID)
		if err != nil {
			return err
		}
		d.IsPaid = true
		d.PaymentDate = &now
		return tx.Dividends().Update(ctx, d)
	}))

	again := *row
	again.ID = uuid.New()
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Dividends().Upsert(ctx, &again)
	})
	assert.True(t, errors.IsInvalidState(err))
}
