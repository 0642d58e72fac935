// Package memory is an in-process implementation of store.Store.
//
// Units of work are serialized by a single mutex and every unit of work runs
// against the live state; a snapshot taken at the start is restored when the
// callback returns an error, so a failed operation leaves no trace.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"sacco/internal/domain"
	"sacco/internal/store"
)

type state struct {
	members      map[uuid.UUID]domain.Member
	settings     *domain.SaccoSettings
	investments  map[uuid.UUID]domain.Investment
	summaries    map[uuid.UUID]domain.InvestmentSummary
	loanTypes    map[uuid.UUID]domain.LoanType
	applications map[uuid.UUID]domain.LoanApplication
	guarantors   map[uuid.UUID]domain.LoanGuarantor
	loans        map[uuid.UUID]domain.Loan
	loanSeq      map[int]int
	schedules    map[uuid.UUID][]domain.LoanSchedule
	payments     map[uuid.UUID]domain.LoanPayment
	penalties    map[uuid.UUID]domain.LoanPenalty
	transactions map[uuid.UUID]domain.Transaction
	txOrder      []uuid.UUID
	balances     map[uuid.UUID]domain.MemberBalance
	receipts     map[uuid.UUID]domain.TransactionReceipt
	fees         map[uuid.UUID]domain.TransactionFee
	batches      map[uuid.UUID]domain.TransactionBatch
	batchItems   map[uuid.UUID][]domain.BatchItem
	dividends    map[uuid.UUID]domain.DividendPayment
	recurring    map[uuid.UUID]domain.RecurringTransaction
	targets      map[uuid.UUID]domain.InvestmentTarget
	collateral   map[uuid.UUID]domain.LoanCollateral
	audit        []domain.AuditLog
}

func newState() *state {
	return &state{
		members:      map[uuid.UUID]domain.Member{},
		investments:  map[uuid.UUID]domain.Investment{},
		summaries:    map[uuid.UUID]domain.InvestmentSummary{},
		loanTypes:    map[uuid.UUID]domain.LoanType{},
		applications: map[uuid.UUID]domain.LoanApplication{},
		guarantors:   map[uuid.UUID]domain.LoanGuarantor{},
		loans:        map[uuid.UUID]domain.Loan{},
		loanSeq:      map[int]int{},
		schedules:    map[uuid.UUID][]domain.LoanSchedule{},
		payments:     map[uuid.UUID]domain.LoanPayment{},
		penalties:    map[uuid.UUID]domain.LoanPenalty{},
		transactions: map[uuid.UUID]domain.Transaction{},
		balances:     map[uuid.UUID]domain.MemberBalance{},
		receipts:     map[uuid.UUID]domain.TransactionReceipt{},
		fees:         map[uuid.UUID]domain.TransactionFee{},
		batches:      map[uuid.UUID]domain.TransactionBatch{},
		batchItems:   map[uuid.UUID][]domain.BatchItem{},
		dividends:    map[uuid.UUID]domain.DividendPayment{},
		recurring:    map[uuid.UUID]domain.RecurringTransaction{},
		targets:      map[uuid.UUID]domain.InvestmentTarget{},
		collateral:   map[uuid.UUID]domain.LoanCollateral{},
	}
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copySliceMap[K comparable, V any](in map[K][]V) map[K][]V {
	out := make(map[K][]V, len(in))
	for k, v := range in {
		out[k] = append([]V(nil), v...)
	}
	return out
}

func (s *state) clone() *state {
	c := &state{
		members:      copyMap(s.members),
		investments:  copyMap(s.investments),
		summaries:    copyMap(s.summaries),
		loanTypes:    copyMap(s.loanTypes),
		applications: copyMap(s.applications),
		guarantors:   copyMap(s.guarantors),
		loans:        copyMap(s.loans),
		loanSeq:      copyMap(s.loanSeq),
		schedules:    copySliceMap(s.schedules),
		payments:     copyMap(s.payments),
		penalties:    copyMap(s.penalties),
		transactions: copyMap(s.transactions),
		txOrder:      append([]uuid.UUID(nil), s.txOrder...),
		balances:     copyMap(s.balances),
		receipts:     copyMap(s.receipts),
		fees:         copyMap(s.fees),
		batches:      copyMap(s.batches),
		batchItems:   copySliceMap(s.batchItems),
		dividends:    copyMap(s.dividends),
		recurring:    copyMap(s.recurring),
		targets:      copyMap(s.targets),
		collateral:   copyMap(s.collateral),
		audit:        append([]domain.AuditLog(nil), s.audit...),
	}
	if s.settings != nil {
		settings := *s.settings
		c.settings = &settings
	}
	return c
}

// Store keeps every record in memory.
type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn with exclusive access to the state.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, &tx{s: s.state}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// AddMember, PutSettings, AddLoanType and AddFee seed records that other
// systems own in production.
func (s *Store) AddMember(m domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.members[m.ID] = m
}

func (s *Store) PutSettings(settings domain.SaccoSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.settings = &settings
}

func (s *Store) AddLoanType(lt domain.LoanType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.loanTypes[lt.ID] = lt
}

func (s *Store) AddFee(f domain.TransactionFee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.fees[f.ID] = f
}

// AuditLogs returns a copy of every audit row written so far.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLog(nil), s.state.audit...)
}

type tx struct {
	s *state
}

func (t *tx) Members() store.MemberRepository           { return memberRepo{t.s} }
func (t *tx) Settings() store.SettingsRepository        { return settingsRepo{t.s} }
func (t *tx) Investments() store.InvestmentRepository   { return investmentRepo{t.s} }
func (t *tx) Summaries() store.SummaryRepository        { return summaryRepo{t.s} }
func (t *tx) LoanTypes() store.LoanTypeRepository       { return loanTypeRepo{t.s} }
func (t *tx) Applications() store.ApplicationRepository { return applicationRepo{t.s} }
func (t *tx) Guarantors() store.GuarantorRepository     { return guarantorRepo{t.s} }
func (t *tx) Loans() store.LoanRepository               { return loanRepo{t.s} }
func (t *tx) Schedules() store.ScheduleRepository       { return scheduleRepo{t.s} }
func (t *tx) Payments() store.PaymentRepository         { return paymentRepo{t.s} }
func (t *tx) Penalties() store.PenaltyRepository        { return penaltyRepo{t.s} }
func (t *tx) Transactions() store.TransactionRepository { return transactionRepo{t.s} }
func (t *tx) Balances() store.BalanceRepository         { return balanceRepo{t.s} }
func (t *tx) Receipts() store.ReceiptRepository         { return receiptRepo{t.s} }
func (t *tx) Fees() store.FeeRepository                 { return feeRepo{t.s} }
func (t *tx) Batches() store.BatchRepository            { return batchRepo{t.s} }
func (t *tx) Dividends() store.DividendRepository       { return dividendRepo{t.s} }
func (t *tx) Recurring() store.RecurringRepository      { return recurringRepo{t.s} }
func (t *tx) Targets() store.TargetRepository           { return targetRepo{t.s} }
func (t *tx) Collateral() store.CollateralRepository    { return collateralRepo{t.s} }
func (t *tx) Audit() store.AuditRepository              { return auditRepo{t.s} }
