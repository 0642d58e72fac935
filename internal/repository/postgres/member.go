package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

const memberColumns = `id, member_number, first_name, last_name, email, phone, status, date_approved, created_at, updated_at`

// MemberRepository reads members owned by the onboarding system.
type MemberRepository struct {
	q sqlx.ExtContext
}

func NewMemberRepository(q sqlx.ExtContext) *MemberRepository {
	return &MemberRepository{q: q}
}

func (r *MemberRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	if err := getOne(ctx, r.q, &m, errors.ErrMemberNotFound, "member", id.String(), query, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	var m domain.Member
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &m, errors.ErrMemberNotFound, "member", id.String(), query, id); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	var members []*domain.Member
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &members, query); err != nil {
		return nil, translate(err, "list members")
	}
	return members, nil
}

const settingsColumns = `id, sacco_name, minimum_membership_months, share_capital_amount, loan_multiplier,
	default_loan_interest_rate, maximum_loan_period_months, require_guarantors,
	minimum_guarantor_percentage, minimum_monthly_investment, updated_at`

// SettingsRepository reads the single sacco_settings row.
type SettingsRepository struct {
	q sqlx.ExtContext
}

func (r *SettingsRepository) Get(ctx context.Context) (*domain.SaccoSettings, error) {
	var s domain.SaccoSettings
	query := `SELECT ` + settingsColumns + ` FROM sacco_settings ORDER BY updated_at DESC LIMIT 1`
	if err := getOne(ctx, r.q, &s, errors.ErrSettingsNotFound, "sacco settings", "", query); err != nil {
		return nil, err
	}
	return &s, nil
}
