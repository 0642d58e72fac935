package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

const loanTypeColumns = `id, name, interest_rate, maximum_amount, maximum_period_months,
	minimum_membership_months, requires_guarantor, is_active, created_at`

type LoanTypeRepository struct {
	q sqlx.ExtContext
}

func (r *LoanTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanType, error) {
	var lt domain.LoanType
	query := `SELECT ` + loanTypeColumns + ` FROM loan_types WHERE id = $1`
	if err := getOne(ctx, r.q, &lt, errors.ErrLoanTypeNotFound, "loan type", id.String(), query, id); err != nil {
		return nil, err
	}
	return &lt, nil
}

const applicationColumns = `id, applicant_id, loan_type_id, amount_requested, amount_approved, purpose,
	repayment_period_months, interest_rate, status, monthly_payment, total_interest, total_repayment,
	reviewed_by, reviewed_at, review_notes, rejection_reason, disbursed_by, disbursed_at,
	disbursement_reference, disbursement_cost, created_at, updated_at`

type ApplicationRepository struct {
	q sqlx.ExtContext
}

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.LoanApplication) error {
	query := `
		INSERT INTO loan_applications (` + applicationColumns + `)
		VALUES (
			:id, :applicant_id, :loan_type_id, :amount_requested, :amount_approved, :purpose,
			:repayment_period_months, :interest_rate, :status, :monthly_payment, :total_interest, :total_repayment,
			:reviewed_by, :reviewed_at, :review_notes, :rejection_reason, :disbursed_by, :disbursed_at,
			:disbursement_reference, :disbursement_cost, :created_at, :updated_at
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, app)
	return translate(err, "create loan application")
}

func (r *ApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	var app domain.LoanApplication
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE id = $1`
	if err := getOne(ctx, r.q, &app, errors.ErrApplicationNotFound, "loan application", id.String(), query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *ApplicationRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	var app domain.LoanApplication
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &app, errors.ErrApplicationNotFound, "loan application", id.String(), query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *ApplicationRepository) Update(ctx context.Context, app *domain.LoanApplication) error {
	query := `
		UPDATE loan_applications SET
			amount_approved = :amount_approved, interest_rate = :interest_rate, status = :status,
			monthly_payment = :monthly_payment, total_interest = :total_interest, total_repayment = :total_repayment,
			reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, review_notes = :review_notes,
			rejection_reason = :rejection_reason, disbursed_by = :disbursed_by, disbursed_at = :disbursed_at,
			disbursement_reference = :disbursement_reference, disbursement_cost = :disbursement_cost,
			updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, app, errors.ErrApplicationNotFound, "loan application", app.ID.String(), query)
}

const guarantorColumns = `id, application_id, guarantor_id, guaranteed_amount, guaranteed_percentage, status,
	response_notes, responded_at, created_at, updated_at`

type GuarantorRepository struct {
	q sqlx.ExtContext
}

func (r *GuarantorRepository) Create(ctx context.Context, g *domain.LoanGuarantor) error {
	query := `
		INSERT INTO loan_guarantors (` + guarantorColumns + `)
		VALUES (
			:id, :application_id, :guarantor_id, :guaranteed_amount, :guaranteed_percentage, :status,
			:response_notes, :responded_at, :created_at, :updated_at
		)
		ON CONFLICT (application_id, guarantor_id) DO NOTHING
	`
	return insertOnce(ctx, r.q, g, errors.ErrAlreadyExists, "create loan guarantor", query)
}

func (r *GuarantorRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanGuarantor, error) {
	var g domain.LoanGuarantor
	query := `SELECT ` + guarantorColumns + ` FROM loan_guarantors WHERE id = $1`
	if err := getOne(ctx, r.q, &g, errors.ErrGuarantorNotFound, "loan guarantor", id.String(), query, id); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GuarantorRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanGuarantor, error) {
	var g domain.LoanGuarantor
	query := `SELECT ` + guarantorColumns + ` FROM loan_guarantors WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &g, errors.ErrGuarantorNotFound, "loan guarantor", id.String(), query, id); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GuarantorRepository) Update(ctx context.Context, g *domain.LoanGuarantor) error {
	query := `
		UPDATE loan_guarantors SET
			status = :status, response_notes = :response_notes, responded_at = :responded_at, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, g, errors.ErrGuarantorNotFound, "loan guarantor", g.ID.String(), query)
}

func (r *GuarantorRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.LoanGuarantor, error) {
	var out []*domain.LoanGuarantor
	query := `SELECT ` + guarantorColumns + ` FROM loan_guarantors WHERE application_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, applicationID); err != nil {
		return nil, translate(err, "list loan guarantors")
	}
	return out, nil
}

const loanColumns = `id, application_id, borrower_id, loan_number, principal_amount, interest_rate,
	repayment_period_months, monthly_payment, total_interest, total_amount, amount_paid, balance_remaining,
	disbursement_date, disbursement_reference, expected_completion_date, actual_completion_date, status,
	next_payment_date, last_payment_date, penalty_amount, total_penalties_paid, created_at, updated_at`

type LoanRepository struct {
	q sqlx.ExtContext
}

func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES (
			:id, :application_id, :borrower_id, :loan_number, :principal_amount, :interest_rate,
			:repayment_period_months, :monthly_payment, :total_interest, :total_amount, :amount_paid, :balance_remaining,
			:disbursement_date, :disbursement_reference, :expected_completion_date, :actual_completion_date, :status,
			:next_payment_date, :last_payment_date, :penalty_amount, :total_penalties_paid, :created_at, :updated_at
		)
		ON CONFLICT DO NOTHING
	`
	err := insertOnce(ctx, r.q, loan, errors.ErrDuplicateIdentifier, "create loan", query)
	if !errors.Is(err, errors.ErrDuplicateIdentifier) {
		return err
	}
	// Either the application already has its loan or the loan number is taken.
	var exists bool
	if err := sqlx.GetContext(ctx, r.q, &exists,
		`SELECT EXISTS (SELECT 1 FROM loans WHERE application_id = $1)`, loan.ApplicationID); err != nil {
		return translate(err, "create loan")
	}
	if exists {
		return errors.ErrAlreadyExists
	}
	return errors.ErrDuplicateIdentifier
}

func (r *LoanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	if err := getOne(ctx, r.q, &loan, errors.ErrLoanNotFound, "loan", id.String(), query, id); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *LoanRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &loan, errors.ErrLoanNotFound, "loan", id.String(), query, id); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *LoanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans SET
			amount_paid = :amount_paid, balance_remaining = :balance_remaining, status = :status,
			actual_completion_date = :actual_completion_date, next_payment_date = :next_payment_date,
			last_payment_date = :last_payment_date, penalty_amount = :penalty_amount,
			total_penalties_paid = :total_penalties_paid, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, loan, errors.ErrLoanNotFound, "loan", loan.ID.String(), query)
}

func (r *LoanRepository) FindByApplication(ctx context.Context, applicationID uuid.UUID) (*domain.Loan, error) {
	var loan domain.Loan
	query := `SELECT ` + loanColumns + ` FROM loans WHERE application_id = $1`
	if err := getOne(ctx, r.q, &loan, errors.ErrLoanNotFound, "loan", "application "+applicationID.String(), query, applicationID); err != nil {
		return nil, err
	}
	return &loan, nil
}

func statusStrings(statuses []domain.LoanStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *LoanRepository) ListByBorrower(ctx context.Context, borrowerID uuid.UUID, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	var out []*domain.Loan
	query := `SELECT ` + loanColumns + ` FROM loans WHERE borrower_id = $1`
	args := []interface{}{borrowerID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += ` ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		return nil, translate(err, "list borrower loans")
	}
	return out, nil
}

func (r *LoanRepository) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	var out []*domain.Loan
	query := `SELECT ` + loanColumns + ` FROM loans`
	var args []interface{}
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += ` ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, args...); err != nil {
		return nil, translate(err, "list loans")
	}
	return out, nil
}

// NextSequence increments the per-year counter; the row lock it takes
// serializes concurrent disbursements within the same year.
func (r *LoanRepository) NextSequence(ctx context.Context, year int) (int, error) {
	var next int
	query := `
		INSERT INTO loan_number_sequences (year, last_value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = loan_number_sequences.last_value + 1
		RETURNING last_value
	`
	if err := sqlx.GetContext(ctx, r.q, &next, query, year); err != nil {
		return 0, translate(err, "next loan sequence")
	}
	return next, nil
}

const scheduleColumns = `id, loan_id, payment_number, due_date, scheduled_payment, principal_portion,
	interest_portion, beginning_balance, ending_balance, created_at`

type ScheduleRepository struct {
	q sqlx.ExtContext
}

func (r *ScheduleRepository) DeleteByLoan(ctx context.Context, loanID uuid.UUID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM loan_schedules WHERE loan_id = $1`, loanID)
	return translate(err, "delete loan schedule")
}

// CreateBatch inserts all rows with one statement.
func (r *ScheduleRepository) CreateBatch(ctx context.Context, rows []*domain.LoanSchedule) error {
	if len(rows) == 0 {
		return nil
	}
	query := `
		INSERT INTO loan_schedules (` + scheduleColumns + `)
		VALUES (
			:id, :loan_id, :payment_number, :due_date, :scheduled_payment, :principal_portion,
			:interest_portion, :beginning_balance, :ending_balance, :created_at
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, rows)
	return translate(err, "create loan schedule")
}

func (r *ScheduleRepository) ListByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.LoanSchedule, error) {
	var out []*domain.LoanSchedule
	query := `SELECT ` + scheduleColumns + ` FROM loan_schedules WHERE loan_id = $1 ORDER BY payment_number`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, loanID); err != nil {
		return nil, translate(err, "list loan schedule")
	}
	return out, nil
}

const paymentColumns = `id, loan_id, amount, payment_type, payment_method, transaction_reference, status,
	penalty_amount, interest_amount, principal_amount, confirmed_by, confirmed_at, rejection_reason,
	admin_notes, payment_date, updated_at`

type PaymentRepository struct {
	q sqlx.ExtContext
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.LoanPayment) error {
	query := `
		INSERT INTO loan_payments (` + paymentColumns + `)
		VALUES (
			:id, :loan_id, :amount, :payment_type, :payment_method, :transaction_reference, :status,
			:penalty_amount, :interest_amount, :principal_amount, :confirmed_by, :confirmed_at, :rejection_reason,
			:admin_notes, :payment_date, :updated_at
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, p)
	return translate(err, "create loan payment")
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanPayment, error) {
	var p domain.LoanPayment
	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE id = $1`
	if err := getOne(ctx, r.q, &p, errors.ErrPaymentNotFound, "loan payment", id.String(), query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanPayment, error) {
	var p domain.LoanPayment
	query := `SELECT ` + paymentColumns + ` FROM loan_payments WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &p, errors.ErrPaymentNotFound, "loan payment", id.String(), query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.LoanPayment) error {
	query := `
		UPDATE loan_payments SET
			status = :status, penalty_amount = :penalty_amount, interest_amount = :interest_amount,
			principal_amount = :principal_amount, confirmed_by = :confirmed_by, confirmed_at = :confirmed_at,
			rejection_reason = :rejection_reason, admin_notes = :admin_notes, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, p, errors.ErrPaymentNotFound, "loan payment", p.ID.String(), query)
}

func (r *PaymentRepository) SumConfirmedInterest(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(interest_amount), 0) FROM loan_payments WHERE loan_id = $1 AND status = 'confirmed'`
	if err := sqlx.GetContext(ctx, r.q, &total, query, loanID); err != nil {
		return decimal.Zero, translate(err, "sum confirmed interest")
	}
	return total, nil
}

const penaltyColumns = `id, loan_id, penalty_type, amount, days_overdue, reason, applied_by, applied_at,
	is_waived, waived_by, waived_at, waiver_reason`

type PenaltyRepository struct {
	q sqlx.ExtContext
}

func (r *PenaltyRepository) Create(ctx context.Context, p *domain.LoanPenalty) error {
	query := `
		INSERT INTO loan_penalties (` + penaltyColumns + `)
		VALUES (
			:id, :loan_id, :penalty_type, :amount, :days_overdue, :reason, :applied_by, :applied_at,
			:is_waived, :waived_by, :waived_at, :waiver_reason
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, p)
	return translate(err, "create loan penalty")
}

func (r *PenaltyRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanPenalty, error) {
	var p domain.LoanPenalty
	query := `SELECT ` + penaltyColumns + ` FROM loan_penalties WHERE id = $1`
	if err := getOne(ctx, r.q, &p, errors.ErrPenaltyNotFound, "loan penalty", id.String(), query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PenaltyRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanPenalty, error) {
	var p domain.LoanPenalty
	query := `SELECT ` + penaltyColumns + ` FROM loan_penalties WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &p, errors.ErrPenaltyNotFound, "loan penalty", id.String(), query, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PenaltyRepository) Update(ctx context.Context, p *domain.LoanPenalty) error {
	query := `
		UPDATE loan_penalties SET
			is_waived = :is_waived, waived_by = :waived_by, waived_at = :waived_at, waiver_reason = :waiver_reason
		WHERE id = :id
	`
	return updateOne(ctx, r.q, p, errors.ErrPenaltyNotFound, "loan penalty", p.ID.String(), query)
}

func (r *PenaltyRepository) SumUnwaived(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM loan_penalties WHERE loan_id = $1 AND NOT is_waived`
	if err := sqlx.GetContext(ctx, r.q, &total, query, loanID); err != nil {
		return decimal.Zero, translate(err, "sum penalties")
	}
	return total, nil
}

const collateralColumns = `id, application_id, collateral_type, description, estimated_value,
	ownership_document, valuation_report, is_verified, verified_by, verification_date,
	verification_notes, created_at, updated_at`

type CollateralRepository struct {
	q sqlx.ExtContext
}

func (r *CollateralRepository) Create(ctx context.Context, c *domain.LoanCollateral) error {
	query := `
		INSERT INTO loan_collateral (` + collateralColumns + `)
		VALUES (
			:id, :application_id, :collateral_type, :description, :estimated_value,
			:ownership_document, :valuation_report, :is_verified, :verified_by, :verification_date,
			:verification_notes, :created_at, :updated_at
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.q, query, c)
	return translate(err, "create loan collateral")
}

func (r *CollateralRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanCollateral, error) {
	var c domain.LoanCollateral
	query := `SELECT ` + collateralColumns + ` FROM loan_collateral WHERE id = $1`
	if err := getOne(ctx, r.q, &c, errors.ErrCollateralNotFound, "loan collateral", id.String(), query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CollateralRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanCollateral, error) {
	var c domain.LoanCollateral
	query := `SELECT ` + collateralColumns + ` FROM loan_collateral WHERE id = $1 FOR UPDATE`
	if err := getOne(ctx, r.q, &c, errors.ErrCollateralNotFound, "loan collateral", id.String(), query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CollateralRepository) Update(ctx context.Context, c *domain.LoanCollateral) error {
	query := `
		UPDATE loan_collateral SET
			is_verified = :is_verified, verified_by = :verified_by, verification_date = :verification_date,
			verification_notes = :verification_notes, updated_at = :updated_at
		WHERE id = :id
	`
	return updateOne(ctx, r.q, c, errors.ErrCollateralNotFound, "loan collateral", c.ID.String(), query)
}

func (r *CollateralRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.LoanCollateral, error) {
	var out []*domain.LoanCollateral
	query := `SELECT ` + collateralColumns + ` FROM loan_collateral WHERE application_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, applicationID); err != nil {
		return nil, translate(err, "list loan collateral")
	}
	return out, nil
}
