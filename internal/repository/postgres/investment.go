package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

const investmentColumns = `id, member_id, investment_type, amount, status, payment_method, reference, notes,
	investment_date, confirmed_by, confirmed_at, rejection_reason, created_at, updated_at`

// InvestmentRepository implements investment persistence.
type InvestmentRepository struct {
	q sqlx.ExtContext
}

func (r *InvestmentRepository) Create(ctx context.Context, inv *domain.Investment) error {
	query := `
		INSERT INTO investments (` + investmentColumns + `)
		VALUES (
			:id, :member_id, :investment_type, :amount, :status, :payment_method, :reference, :notes,
			:investment_date, :confirmed_by, :confirmed_at, :rejection_reason, :created_at, :updated_at
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, inv)
	return translate(err, "create investment")
}

func (r *InvestmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	var inv domain.Investment
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`
	if err := getOne(ctx, r.q, &inv, errors.ErrInvestmentNotFound, "investment", id.String(), query, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvestmentRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	var inv domain.Investment
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &inv, errors.ErrInvestmentNotFound, "investment", id.String(), query, id); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvestmentRepository) Update(ctx context.Context, inv *domain.Investment) error {
	query := `
		UPDATE investments SET
			status = :status, notes = :notes, confirmed_by = :confirmed_by, confirmed_at = :confirmed_at,
			rejection_reason = :rejection_reason, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, inv, errors.ErrInvestmentNotFound, "investment", inv.ID.String(), query)
}

func (r *InvestmentRepository) ListByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.Investment, error) {
	var out []*domain.Investment
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE member_id = $1 ORDER BY investment_date, id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, memberID); err != nil {
		return nil, translate(err, "list investments")
	}
	return out, nil
}

func (r *InvestmentRepository) SumConfirmed(ctx context.Context, memberID uuid.UUID, t domain.InvestmentType) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `
		SELECT COALESCE(SUM(amount), 0) FROM investments
		WHERE member_id = $1 AND investment_type = $2 AND status = 'confirmed'
	`
	if err := sqlx.GetContext(ctx, r.q, &total, query, memberID, t); err != nil {
		return decimal.Zero, translate(err, "sum confirmed investments")
	}
	return total, nil
}

func (r *InvestmentRepository) MembersWithConfirmedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT DISTINCT member_id FROM investments
		WHERE status = 'confirmed' AND investment_date < $1
		ORDER BY member_id
	`
	if err := sqlx.SelectContext(ctx, r.q, &ids, query, cutoff); err != nil {
		return nil, translate(err, "list invested members")
	}
	return ids, nil
}

func (r *InvestmentRepository) SumConfirmedBetween(ctx context.Context, memberID *uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `
		SELECT COALESCE(SUM(amount), 0) FROM investments
		WHERE status = 'confirmed' AND investment_date >= $1 AND investment_date < $2
			AND ($3::uuid IS NULL OR member_id = $3)
	`
	if err := sqlx.GetContext(ctx, r.q, &total, query, from, to, memberID); err != nil {
		return decimal.Zero, translate(err, "sum investments in window")
	}
	return total, nil
}

const summaryColumns = `member_id, total_share_capital, total_monthly_investments, total_special_deposits,
	total_investments, loan_eligible_amount, maximum_loan_amount, first_investment_date,
	last_investment_date, investment_count, ranking_by_total, ranking_by_share_capital, updated_at`

// SummaryRepository persists the per-member investment projection.
type SummaryRepository struct {
	q sqlx.ExtContext
}

func (r *SummaryRepository) Get(ctx context.Context, memberID uuid.UUID) (*domain.InvestmentSummary, error) {
	var s domain.InvestmentSummary
	query := `SELECT ` + summaryColumns + ` FROM investment_summaries WHERE member_id = $1`
	if err := getOne(ctx, r.q, &s, errors.ErrSummaryNotFound, "investment summary", memberID.String(), query, memberID); err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert rewrites the totals. Rankings are owned by SetRankings and kept.
func (r *SummaryRepository) Upsert(ctx context.Context, s *domain.InvestmentSummary) error {
	query := `
		INSERT INTO investment_summaries (` + summaryColumns + `)
		VALUES (
			:member_id, :total_share_capital, :total_monthly_investments, :total_special_deposits,
			:total_investments, :loan_eligible_amount, :maximum_loan_amount, :first_investment_date,
			:last_investment_date, :investment_count, :ranking_by_total, :ranking_by_share_capital, :updated_at
		)
		ON CONFLICT (member_id) DO UPDATE SET
			total_share_capital = EXCLUDED.total_share_capital,
			total_monthly_investments = EXCLUDED.total_monthly_investments,
			total_special_deposits = EXCLUDED.total_special_deposits,
			total_investments = EXCLUDED.total_investments,
			loan_eligible_amount = EXCLUDED.loan_eligible_amount,
			maximum_loan_amount = EXCLUDED.maximum_loan_amount,
			first_investment_date = EXCLUDED.first_investment_date,
			last_investment_date = EXCLUDED.last_investment_date,
			investment_count = EXCLUDED.investment_count,
			updated_at = EXCLUDED.updated_at
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, s)
	return translate(err, "upsert investment summary")
}

func (r *SummaryRepository) List(ctx context.Context) ([]*domain.InvestmentSummary, error) {
	var out []*domain.InvestmentSummary
	query := `SELECT ` + summaryColumns + ` FROM investment_summaries ORDER BY member_id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query); err != nil {
		return nil, translate(err, "list investment summaries")
	}
	return out, nil
}

func (r *SummaryRepository) SetRankings(ctx context.Context, memberID uuid.UUID, byTotal, byShareCapital *int) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE investment_summaries SET ranking_by_total = $1, ranking_by_share_capital = $2 WHERE member_id = $3`,
		byTotal, byShareCapital, memberID)
	if err != nil {
		return translate(err, "set rankings")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound(errors.ErrSummaryNotFound, "investment summary", memberID.String())
	}
	return nil
}

const targetColumns = `id, target_type, name, description, target_amount, period_type, member_id,
	start_date, end_date, current_amount, is_active, created_by, created_at, updated_at`

type TargetRepository struct {
	q sqlx.ExtContext
}

func (r *TargetRepository) Create(ctx context.Context, t *domain.InvestmentTarget) error {
	query := `
		INSERT INTO investment_targets (` + targetColumns + `)
		VALUES (
			:id, :target_type, :name, :description, :target_amount, :period_type, :member_id,
			:start_date, :end_date, :current_amount, :is_active, :created_by, :created_at, :updated_at
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, t)
	return translate(err, "create investment target")
}

func (r *TargetRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentTarget, error) {
	var t domain.InvestmentTarget
	query := `SELECT ` + targetColumns + ` FROM investment_targets WHERE id = $1`
	if err := getOne(ctx, r.q, &t, errors.ErrTargetNotFound, "investment target", id.String(), query, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TargetRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentTarget, error) {
	var t domain.InvestmentTarget
	query := `SELECT ` + targetColumns + ` FROM investment_targets WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &t, errors.ErrTargetNotFound, "investment target", id.String(), query, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TargetRepository) Update(ctx context.Context, t *domain.InvestmentTarget) error {
	query := `
		UPDATE investment_targets SET
			current_amount = :current_amount, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, t, errors.ErrTargetNotFound, "investment target", t.ID.String(), query)
}

func (r *TargetRepository) ListForMember(ctx context.Context, memberID uuid.UUID) ([]*domain.InvestmentTarget, error) {
	var out []*domain.InvestmentTarget
	query := `
		SELECT ` + targetColumns + ` FROM investment_targets
		WHERE target_type = 'sacco_wide' OR member_id = $1
		ORDER BY id
	`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, memberID); err != nil {
		return nil, translate(err, "list investment targets")
	}
	return out, nil
}
