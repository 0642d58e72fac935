package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"sacco/internal/store"
	apperrors "sacco/pkg/errors"
)

// Store implements store.Store on Postgres. Units of work run at read
// committed; the critical sections take row locks with SELECT ... FOR UPDATE.
type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewStore creates a new Store. A lock wait longer than lockTimeout fails the
// unit of work with a ConcurrencyConflictError.
func NewStore(db *sqlx.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translate(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
			_ = sqlTx.Rollback()
			return translate(err, "set lock timeout")
		}
	}

	if err := fn(ctx, &tx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return translate(err, "commit transaction")
	}
	return nil
}

type tx struct {
	q sqlx.ExtContext
}

func (t *tx) Members() store.MemberRepository           { return &MemberRepository{q: t.q} }
func (t *tx) Settings() store.SettingsRepository        { return &SettingsRepository{q: t.q} }
func (t *tx) Investments() store.InvestmentRepository   { return &InvestmentRepository{q: t.q} }
func (t *tx) Summaries() store.SummaryRepository        { return &SummaryRepository{q: t.q} }
func (t *tx) LoanTypes() store.LoanTypeRepository       { return &LoanTypeRepository{q: t.q} }
func (t *tx) Applications() store.ApplicationRepository { return &ApplicationRepository{q: t.q} }
func (t *tx) Guarantors() store.GuarantorRepository     { return &GuarantorRepository{q: t.q} }
func (t *tx) Loans() store.LoanRepository               { return &LoanRepository{q: t.q} }
func (t *tx) Schedules() store.ScheduleRepository       { return &ScheduleRepository{q: t.q} }
func (t *tx) Payments() store.PaymentRepository         { return &PaymentRepository{q: t.q} }
func (t *tx) Penalties() store.PenaltyRepository        { return &PenaltyRepository{q: t.q} }
func (t *tx) Transactions() store.TransactionRepository { return &TransactionRepository{q: t.q} }
func (t *tx) Balances() store.BalanceRepository         { return &BalanceRepository{q: t.q} }
func (t *tx) Receipts() store.ReceiptRepository         { return &ReceiptRepository{q: t.q} }
func (t *tx) Fees() store.FeeRepository                 { return &FeeRepository{q: t.q} }
func (t *tx) Batches() store.BatchRepository            { return &BatchRepository{q: t.q} }
func (t *tx) Dividends() store.DividendRepository       { return &DividendRepository{q: t.q} }
func (t *tx) Recurring() store.RecurringRepository      { return &RecurringRepository{q: t.q} }
func (t *tx) Targets() store.TargetRepository           { return &TargetRepository{q: t.q} }
func (t *tx) Collateral() store.CollateralRepository    { return &CollateralRepository{q: t.q} }
func (t *tx) Audit() store.AuditRepository              { return &AuditRepository{q: t.q} }

// translate maps driver errors onto the error taxonomy.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return &apperrors.ConcurrencyConflictError{Op: op, Err: err}
		case "23505": // unique_violation
			return apperrors.Wrap(apperrors.ErrAlreadyExists, op+": "+pqErr.Constraint)
		}
	}
	return apperrors.Wrap(err, op)
}

// getOne runs a single-row query and maps sql.ErrNoRows to a NotFoundError.
func getOne(ctx context.Context, q sqlx.QueryerContext, dest interface{}, notFound error, entity, id, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(notFound, entity, id)
	}
	return translate(err, "get "+entity)
}

// insertOnce executes an INSERT ... ON CONFLICT DO NOTHING and returns
// conflictErr when no row was written.
func insertOnce(ctx context.Context, q sqlx.ExtContext, arg interface{}, conflictErr error, op, query string) error {
	res, err := sqlx.NamedExecContext(ctx, q, query, arg)
	if err != nil {
		return translate(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, op)
	}
	if n == 0 {
		return conflictErr
	}
	return nil
}

// updateOne executes a named UPDATE that must touch exactly one row.
func updateOne(ctx context.Context, q sqlx.ExtContext, arg interface{}, notFound error, entity, id, query string) error {
	res, err := sqlx.NamedExecContext(ctx, q, query, arg)
	if err != nil {
		return translate(err, "update "+entity)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "update "+entity)
	}
	if n == 0 {
		return apperrors.NotFound(notFound, entity, id)
	}
	return nil
}
