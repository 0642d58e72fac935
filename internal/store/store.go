// Package store defines the unit of work every ledger operation runs in.
//
// A Store hands a Tx to the callback of WithinTx. Everything written through
// the Tx repositories commits together or not at all. LockByID methods take a
// row lock that is held until the unit of work ends; callers lock in the order
// member, application, loan, then the leaf record.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
)

type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Members() MemberRepository
	Settings() SettingsRepository
	Investments() InvestmentRepository
	Summaries() SummaryRepository
	LoanTypes() LoanTypeRepository
	Applications() ApplicationRepository
	Guarantors() GuarantorRepository
	Loans() LoanRepository
	Schedules() ScheduleRepository
	Payments() PaymentRepository
	Penalties() PenaltyRepository
	Transactions() TransactionRepository
	Balances() BalanceRepository
	Receipts() ReceiptRepository
	Fees() FeeRepository
	Batches() BatchRepository
	Dividends() DividendRepository
	Recurring() RecurringRepository
	Targets() TargetRepository
	Collateral() CollateralRepository
	Audit() AuditRepository
}

// MemberRepository is read-only: members are owned by onboarding.
type MemberRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Member, error)
	List(ctx context.Context) ([]*domain.Member, error)
}

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.SaccoSettings, error)
}

type InvestmentRepository interface {
	Create(ctx context.Context, inv *domain.Investment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error)
	Update(ctx context.Context, inv *domain.Investment) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.Investment, error)
	SumConfirmed(ctx context.Context, memberID uuid.UUID, t domain.InvestmentType) (decimal.Decimal, error)
	// MembersWithConfirmedBefore returns members holding a confirmed investment dated before cutoff.
	MembersWithConfirmedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	// SumConfirmedBetween totals confirmed investments dated in [from, to).
	// A nil memberID sums across every member.
	SumConfirmedBetween(ctx context.Context, memberID *uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

type SummaryRepository interface {
	Get(ctx context.Context, memberID uuid.UUID) (*domain.InvestmentSummary, error)
	Upsert(ctx context.Context, s *domain.InvestmentSummary) error
	List(ctx context.Context) ([]*domain.InvestmentSummary, error)
	SetRankings(ctx context.Context, memberID uuid.UUID, byTotal, byShareCapital *int) error
}

type LoanTypeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanType, error)
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.LoanApplication) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error)
	Update(ctx context.Context, app *domain.LoanApplication) error
}

type GuarantorRepository interface {
	// Create returns errors.ErrAlreadyExists when the guarantor already backs the application.
	Create(ctx context.Context, g *domain.LoanGuarantor) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanGuarantor, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanGuarantor, error)
	Update(ctx context.Context, g *domain.LoanGuarantor) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.LoanGuarantor, error)
}

type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	Update(ctx context.Context, loan *domain.Loan) error
	FindByApplication(ctx context.Context, applicationID uuid.UUID) (*domain.Loan, error)
	ListByBorrower(ctx context.Context, borrowerID uuid.UUID, statuses ...domain.LoanStatus) ([]*domain.Loan, error)
	// ListByStatus returns every loan when no status is given.
	ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error)
	// NextSequence atomically increments and returns the loan number sequence for year.
	NextSequence(ctx context.Context, year int) (int, error)
}

type ScheduleRepository interface {
	DeleteByLoan(ctx context.Context, loanID uuid.UUID) error
	CreateBatch(ctx context.Context, rows []*domain.LoanSchedule) error
	ListByLoan(ctx context.Context, loanID uuid.UUID) ([]*domain.LoanSchedule, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.LoanPayment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanPayment, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanPayment, error)
	Update(ctx context.Context, p *domain.LoanPayment) error
	SumConfirmedInterest(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)
}

type PenaltyRepository interface {
	Create(ctx context.Context, p *domain.LoanPenalty) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanPenalty, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanPenalty, error)
	Update(ctx context.Context, p *domain.LoanPenalty) error
	SumUnwaived(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)
}

type TransactionRepository interface {
	// Create returns errors.ErrDuplicateIdentifier on a transaction_id collision
	// without aborting the unit of work.
	Create(ctx context.Context, t *domain.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	Update(ctx context.Context, t *domain.Transaction) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.Transaction, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*domain.Transaction, error)
}

type BalanceRepository interface {
	Get(ctx context.Context, memberID uuid.UUID) (*domain.MemberBalance, error)
	Upsert(ctx context.Context, b *domain.MemberBalance) error
	List(ctx context.Context) ([]*domain.MemberBalance, error)
}

type ReceiptRepository interface {
	Create(ctx context.Context, r *domain.TransactionReceipt) error
	FindByTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionReceipt, error)
}

type FeeRepository interface {
	FindActiveByType(ctx context.Context, feeType string) (*domain.TransactionFee, error)
}

type BatchRepository interface {
	Create(ctx context.Context, b *domain.TransactionBatch) error
	Update(ctx context.Context, b *domain.TransactionBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.TransactionBatch, error)
	AddItem(ctx context.Context, item *domain.BatchItem) error
	ListItems(ctx context.Context, batchID uuid.UUID) ([]*domain.BatchItem, error)
}

type DividendRepository interface {
	// Upsert writes the row for (year, member), overwriting an unpaid one.
	Upsert(ctx context.Context, d *domain.DividendPayment) error
	LockByYearMember(ctx context.Context, year int, memberID uuid.UUID) (*domain.DividendPayment, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.DividendPayment, error)
	Update(ctx context.Context, d *domain.DividendPayment) error
	ListByYear(ctx context.Context, year int) ([]*domain.DividendPayment, error)
}

type RecurringRepository interface {
	Create(ctx context.Context, r *domain.RecurringTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTransaction, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTransaction, error)
	Update(ctx context.Context, r *domain.RecurringTransaction) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]*domain.RecurringTransaction, error)
	// ListDue returns active templates whose next execution date is on or before asOf.
	ListDue(ctx context.Context, asOf time.Time) ([]*domain.RecurringTransaction, error)
}

type TargetRepository interface {
	Create(ctx context.Context, t *domain.InvestmentTarget) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentTarget, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentTarget, error)
	Update(ctx context.Context, t *domain.InvestmentTarget) error
	// ListForMember returns the member's personal targets and every SACCO-wide target.
	ListForMember(ctx context.Context, memberID uuid.UUID) ([]*domain.InvestmentTarget, error)
}

type CollateralRepository interface {
	Create(ctx context.Context, c *domain.LoanCollateral) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanCollateral, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanCollateral, error)
	Update(ctx context.Context, c *domain.LoanCollateral) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*domain.LoanCollateral, error)
}

type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditLog, error)
}
