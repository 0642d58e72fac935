package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

const transactionColumns = `id, transaction_id, member_id, transaction_type, category, amount, adjustment_direction,
	status, balance_before, balance_after, description, reference_number, reversed_transaction_id,
	reversal_reason, processed_by, processed_at, processing_notes, transaction_date, created_at, updated_at`

// TransactionRepository persists the append-only transaction ledger.
type TransactionRepository struct {
	q sqlx.ExtContext
}

// Create inserts the row. A colliding transaction_id is reported as
// ErrDuplicateIdentifier and leaves the surrounding transaction usable so the
// caller can retry with a fresh identifier.
func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (
			:id, :transaction_id, :member_id, :transaction_type, :category, :amount, :adjustment_direction,
			:status, :balance_before, :balance_after, :description, :reference_number, :reversed_transaction_id,
			:reversal_reason, :processed_by, :processed_at, :processing_notes, :transaction_date, :created_at, :updated_at
		)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	return insertOnce(ctx, r.q, t, errors.ErrDuplicateIdentifier, "create transaction", query)
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var t domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if err := getOne(ctx, r.q, &t, errors.ErrTransactionNotFound, "transaction", id.String(), query, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var t domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &t, errors.ErrTransactionNotFound, "transaction", id.String(), query, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update rewrites only the mutable lifecycle columns; amount and type are immutable.
func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	query := `
		UPDATE transactions SET
			status = :status, balance_before = :balance_before, balance_after = :balance_after,
			reversal_reason = :reversal_reason, processed_by = :processed_by, processed_at = :processed_at,
			processing_notes = :processing_notes, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, t, errors.ErrTransactionNotFound, "transaction", t.ID.String(), query)
}

func (r *TransactionRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE member_id = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, memberID); err != nil {
		return nil, translate(err, "list member transactions")
	}
	return out, nil
}

func (r *TransactionRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE status = 'pending' AND created_at < $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, cutoff); err != nil {
		return nil, translate(err, "list pending transactions")
	}
	return out, nil
}

const balanceColumns = `member_id, current_balance, available_balance, share_capital_balance, savings_balance,
	loan_balance, pending_deposits, pending_withdrawals, last_transaction_date, updated_at`

// BalanceRepository persists the member balance projection.
type BalanceRepository struct {
	q sqlx.ExtContext
}

func (r *BalanceRepository) Get(ctx context.Context, memberID uuid.UUID) (*domain.MemberBalance, error) {
	var b domain.MemberBalance
	query := `SELECT ` + balanceColumns + ` FROM member_balances WHERE member_id = $1`
	if err := getOne(ctx, r.q, &b, errors.ErrBalanceNotFound, "member balance", memberID.String(), query, memberID); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BalanceRepository) Upsert(ctx context.Context, b *domain.MemberBalance) error {
	query := `
		INSERT INTO member_balances (` + balanceColumns + `)
		VALUES (
			:member_id, :current_balance, :available_balance, :share_capital_balance, :savings_balance,
			:loan_balance, :pending_deposits, :pending_withdrawals, :last_transaction_date, :updated_at
		)
		ON CONFLICT (member_id) DO UPDATE SET
			current_balance = EXCLUDED.current_balance,
			available_balance = EXCLUDED.available_balance,
			share_capital_balance = EXCLUDED.share_capital_balance,
			savings_balance = EXCLUDED.savings_balance,
			loan_balance = EXCLUDED.loan_balance,
			pending_deposits = EXCLUDED.pending_deposits,
			pending_withdrawals = EXCLUDED.pending_withdrawals,
			last_transaction_date = EXCLUDED.last_transaction_date,
			updated_at = EXCLUDED.updated_at
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, b)
	return translate(err, "upsert member balance")
}

func (r *BalanceRepository) List(ctx context.Context) ([]*domain.MemberBalance, error) {
	var out []*domain.MemberBalance
	query := `SELECT ` + balanceColumns + ` FROM member_balances ORDER BY member_id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query); err != nil {
		return nil, translate(err, "list member balances")
	}
	return out, nil
}

type ReceiptRepository struct {
	q sqlx.ExtContext
}

func (r *ReceiptRepository) Create(ctx context.Context, rc *domain.TransactionReceipt) error {
	query := `
		INSERT INTO transaction_receipts (id, transaction_id, receipt_number, receipt_data, issued_at)
		VALUES (:id, :transaction_id, :receipt_number, :receipt_data, :issued_at)
		ON CONFLICT (receipt_number) DO NOTHING
	`
	return insertOnce(ctx, r.q, rc, errors.ErrDuplicateIdentifier, "create receipt", query)
}

func (r *ReceiptRepository) FindByTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionReceipt, error) {
	var rc domain.TransactionReceipt
	query := `SELECT id, transaction_id, receipt_number, receipt_data, issued_at FROM transaction_receipts WHERE transaction_id = $1`
	if err := getOne(ctx, r.q, &rc, errors.ErrTransactionNotFound, "receipt", transactionID.String(), query, transactionID); err != nil {
		return nil, err
	}
	return &rc, nil
}

type FeeRepository struct {
	q sqlx.ExtContext
}

func (r *FeeRepository) FindActiveByType(ctx context.Context, feeType string) (*domain.TransactionFee, error) {
	var f domain.TransactionFee
	query := `
		SELECT id, fee_type, description, calculation_method, fixed_amount, percentage_rate,
			minimum_fee, maximum_fee, is_active
		FROM transaction_fees
		WHERE fee_type = $1 AND is_active
		ORDER BY id
		LIMIT 1
	`
	if err := getOne(ctx, r.q, &f, errors.ErrFeeNotFound, "transaction fee", feeType, query, feeType); err != nil {
		return nil, err
	}
	return &f, nil
}

const batchColumns = `id, batch_id, batch_type, description, total_transactions, successful_transactions,
	failed_transactions, total_amount, status, created_by, error_log, started_at, completed_at, created_at`

type BatchRepository struct {
	q sqlx.ExtContext
}

func (r *BatchRepository) Create(ctx context.Context, b *domain.TransactionBatch) error {
	query := `
		INSERT INTO transaction_batches (` + batchColumns + `)
		VALUES (
			:id, :batch_id, :batch_type, :description, :total_transactions, :successful_transactions,
			:failed_transactions, :total_amount, :status, :created_by, :error_log, :started_at, :completed_at, :created_at
		)
		ON CONFLICT (batch_id) DO NOTHING
	`
	return insertOnce(ctx, r.q, b, errors.ErrDuplicateIdentifier, "create batch", query)
}

func (r *BatchRepository) Update(ctx context.Context, b *domain.TransactionBatch) error {
	query := `
		UPDATE transaction_batches SET
			total_transactions = :total_transactions, successful_transactions = :successful_transactions,
			failed_transactions = :failed_transactions, total_amount = :total_amount, status = :status,
			error_log = :error_log, started_at = :started_at, completed_at = :completed_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, b, errors.ErrBatchNotFound, "batch", b.ID.String(), query)
}

func (r *BatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.TransactionBatch, error) {
	var b domain.TransactionBatch
	query := `SELECT ` + batchColumns + ` FROM transaction_batches WHERE id = $1`
	if err := getOne(ctx, r.q, &b, errors.ErrBatchNotFound, "batch", id.String(), query, id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BatchRepository) AddItem(ctx context.Context, item *domain.BatchItem) error {
	query := `
		INSERT INTO batch_items (id, batch_id, transaction_id, member_id, sequence_number, error_message, created_at)
		VALUES (:id, :batch_id, :transaction_id, :member_id, :sequence_number, :error_message, :created_at)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, item)
	return translate(err, "add batch item")
}

func (r *BatchRepository) ListItems(ctx context.Context, batchID uuid.UUID) ([]*domain.BatchItem, error) {
	var out []*domain.BatchItem
	query := `
		SELECT id, batch_id, transaction_id, member_id, sequence_number, error_message, created_at
		FROM batch_items WHERE batch_id = $1 ORDER BY sequence_number
	`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, batchID); err != nil {
		return nil, translate(err, "list batch items")
	}
	return out, nil
}

const recurringColumns = `id, name, description, member_id, transaction_type, category, amount, frequency,
	start_date, end_date, next_execution_date, last_execution_date, status, execution_count,
	max_executions, auto_execute, created_by, created_at, updated_at`

// RecurringRepository persists recurring transaction templates.
type RecurringRepository struct {
	q sqlx.ExtContext
}

func (r *RecurringRepository) Create(ctx context.Context, rt *domain.RecurringTransaction) error {
	query := `
		INSERT INTO recurring_transactions (` + recurringColumns + `)
		VALUES (
			:id, :name, :description, :member_id, :transaction_type, :category, :amount, :frequency,
			:start_date, :end_date, :next_execution_date, :last_execution_date, :status, :execution_count,
			:max_executions, :auto_execute, :created_by, :created_at, :updated_at
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, rt)
	return translate(err, "create recurring transaction")
}

func (r *RecurringRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTransaction, error) {
	var rt domain.RecurringTransaction
	query := `SELECT ` + recurringColumns + ` FROM recurring_transactions WHERE id = $1`
	if err := getOne(ctx, r.q, &rt, errors.ErrRecurringNotFound, "recurring transaction", id.String(), query, id); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *RecurringRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTransaction, error) {
	var rt domain.RecurringTransaction
	query := `SELECT ` + recurringColumns + ` FROM recurring_transactions WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &rt, errors.ErrRecurringNotFound, "recurring transaction", id.String(), query, id); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *RecurringRepository) Update(ctx context.Context, rt *domain.RecurringTransaction) error {
	query := `
		UPDATE recurring_transactions SET
			next_execution_date = :next_execution_date, last_execution_date = :last_execution_date,
			status = :status, execution_count = :execution_count, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, rt, errors.ErrRecurringNotFound, "recurring transaction", rt.ID.String(), query)
}

func (r *RecurringRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.RecurringTransaction, error) {
	var out []*domain.RecurringTransaction
	query := `SELECT ` + recurringColumns + ` FROM recurring_transactions WHERE member_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, memberID); err != nil {
		return nil, translate(err, "list recurring transactions")
	}
	return out, nil
}

func (r *RecurringRepository) ListDue(ctx context.Context, asOf time.Time) ([]*domain.RecurringTransaction, error) {
	var out []*domain.RecurringTransaction
	query := `
		SELECT ` + recurringColumns + ` FROM recurring_transactions
		WHERE status = 'active' AND next_execution_date::date <= $1::date
		ORDER BY next_execution_date, id
	`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, asOf.UTC()); err != nil {
		return nil, translate(err, "list due recurring transactions")
	}
	return out, nil
}
