package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

const dividendColumns = `id, year, member_id, share_capital_amount, monthly_investment_amount, total_eligible_amount,
	share_capital_rate, monthly_investment_rate, share_capital_dividend, monthly_investment_dividend,
	total_dividend, is_paid, payment_date, payment_reference, calculated_by, paid_by, created_at, updated_at`

// DividendRepository persists dividend_payments, one row per (year, member).
type DividendRepository struct {
	q sqlx.ExtContext
}

// Upsert overwrites an unpaid row for the same year and member. A paid row is
// never touched; the call then fails with an InvalidStateError.
func (r *DividendRepository) Upsert(ctx context.Context, d *domain.DividendPayment) error {
	query := `
		INSERT INTO dividend_payments (` + dividendColumns + `)
		VALUES (
			:id, :year, :member_id, :share_capital_amount, :monthly_investment_amount, :total_eligible_amount,
			:share_capital_rate, :monthly_investment_rate, :share_capital_dividend, :monthly_investment_dividend,
			:total_dividend, :is_paid, :payment_date, :payment_reference, :calculated_by, :paid_by, :created_at, :updated_at
		)
		ON CONFLICT (year, member_id) DO UPDATE SET
			share_capital_amount = EXCLUDED.share_capital_amount,
			monthly_investment_amount = EXCLUDED.monthly_investment_amount,
			total_eligible_amount = EXCLUDED.total_eligible_amount,
			share_capital_rate = EXCLUDED.share_capital_rate,
			monthly_investment_rate = EXCLUDED.monthly_investment_rate,
			share_capital_dividend = EXCLUDED.share_capital_dividend,
			monthly_investment_dividend = EXCLUDED.monthly_investment_dividend,
			total_dividend = EXCLUDED.total_dividend,
			calculated_by = EXCLUDED.calculated_by,
			updated_at = EXCLUDED.updated_at
		WHERE NOT dividend_payments.is_paid
		RETURNING id, created_at
	`
	rows, err := sqlx.NamedQueryContext(ctx, r.q, query, d)
	if err != nil {
		return translate(err, "upsert dividend payment")
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return translate(err, "upsert dividend payment")
		}
		return errors.NewInvalidState("dividend payment", d.MemberID.String(), "paid", "unpaid")
	}
	if err := rows.Scan(&d.ID, &d.CreatedAt); err != nil {
		return translate(err, "upsert dividend payment")
	}
	return nil
}

func (r *DividendRepository) LockByYearMember(ctx context.Context, year int, memberID uuid.UUID) (*domain.DividendPayment, error) {
	var d domain.DividendPayment
	query := `SELECT ` + dividendColumns + ` FROM dividend_payments WHERE year = $1 AND member_id = $2 FOR UPDATE`
	err := sqlx.GetContext(ctx, r.q, &d, query, year, memberID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound(errors.ErrDividendNotFound, "dividend payment", memberID.String())
	}
	if err != nil {
		return nil, translate(err, "lock dividend payment")
	}
	return &d, nil
}

func (r *DividendRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.DividendPayment, error) {
	var d domain.DividendPayment
	query := `SELECT ` + dividendColumns + ` FROM dividend_payments WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &d, errors.ErrDividendNotFound, "dividend payment", id.String(), query, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DividendRepository) Update(ctx context.Context, d *domain.DividendPayment) error {
	query := `
		UPDATE dividend_payments SET
			is_paid = :is_paid, payment_date = :payment_date, payment_reference = :payment_reference,
			paid_by = :paid_by, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, d, errors.ErrDividendNotFound, "dividend payment", d.ID.String(), query)
}

func (r *DividendRepository) ListByYear(ctx context.Context, year int) ([]*domain.DividendPayment, error) {
	var out []*domain.DividendPayment
	query := `SELECT ` + dividendColumns + ` FROM dividend_payments WHERE year = $1 ORDER BY member_id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, year); err != nil {
		return nil, translate(err, "list dividend payments")
	}
	return out, nil
}
