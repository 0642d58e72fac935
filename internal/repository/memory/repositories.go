package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

func sortByID[T any](items []*T, id func(*T) uuid.UUID) {
	sort.Slice(items, func(i, j int) bool {
		return id(items[i]).String() < id(items[j]).String()
	})
}

type memberRepo struct{ s *state }

func (r memberRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Member, error) {
	m, ok := r.s.members[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrMemberNotFound, "member", id.String())
	}
	return &m, nil
}

func (r memberRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	return r.FindByID(ctx, id)
}

func (r memberRepo) List(_ context.Context) ([]*domain.Member, error) {
	out := make([]*domain.Member, 0, len(r.s.members))
	for _, m := range r.s.members {
		m := m
		out = append(out, &m)
	}
	sortByID(out, func(m *domain.Member) uuid.UUID { return m.ID })
	return out, nil
}

type settingsRepo struct{ s *state }

func (r settingsRepo) Get(_ context.Context) (*domain.SaccoSettings, error) {
	if r.s.settings == nil {
		return nil, errors.ErrSettingsNotFound
	}
	settings := *r.s.settings
	return &settings, nil
}

type investmentRepo struct{ s *state }

func (r investmentRepo) Create(_ context.Context, inv *domain.Investment) error {
	if _, ok := r.s.investments[inv.ID]; ok {
		return errors.ErrAlreadyExists
	}
	r.s.investments[inv.ID] = *inv
	return nil
}

func (r investmentRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Investment, error) {
	inv, ok := r.s.investments[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrInvestmentNotFound, "investment", id.String())
	}
	return &inv, nil
}

func (r investmentRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.Investment, error) {
	return r.FindByID(ctx, id)
}

func (r investmentRepo) Update(_ context.Context, inv *domain.Investment) error {
	if _, ok := r.s.investments[inv.ID]; !ok {
		return errors.NotFound(errors.ErrInvestmentNotFound, "investment", inv.ID.String())
	}
	r.s.investments[inv.ID] = *inv
	return nil
}

func (r investmentRepo) ListByMember(_ context.Context, memberID uuid.UUID) ([]*domain.Investment, error) {
	var out []*domain.Investment
	for _, inv := range r.s.investments {
		if inv.MemberID == memberID {
			inv := inv
			out = append(out, &inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].InvestmentDate.Equal(out[j].InvestmentDate) {
			return out[i].InvestmentDate.Before(out[j].InvestmentDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r investmentRepo) SumConfirmed(_ context.Context, memberID uuid.UUID, t domain.InvestmentType) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, inv := range r.s.investments {
		if inv.MemberID == memberID && inv.Type == t && inv.Status == domain.InvestmentStatusConfirmed {
			total = total.Add(inv.Amount)
		}
	}
	return total, nil
}

func (r investmentRepo) MembersWithConfirmedBefore(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, inv := range r.s.investments {
		if inv.Status != domain.InvestmentStatusConfirmed || !inv.InvestmentDate.Before(cutoff) {
			continue
		}
		if !seen[inv.MemberID] {
			seen[inv.MemberID] = true
			out = append(out, inv.MemberID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (r investmentRepo) SumConfirmedBetween(_ context.Context, memberID *uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, inv := range r.s.investments {
		if inv.Status != domain.InvestmentStatusConfirmed || (memberID != nil && inv.MemberID != *memberID) {
			continue
		}
		if inv.InvestmentDate.Before(from) || !inv.InvestmentDate.Before(to) {
			continue
		}
		total = total.Add(inv.Amount)
	}
	return total, nil
}

type summaryRepo struct{ s *state }

func (r summaryRepo) Get(_ context.Context, memberID uuid.UUID) (*domain.InvestmentSummary, error) {
	sum, ok := r.s.summaries[memberID]
	if !ok {
		return nil, errors.NotFound(errors.ErrSummaryNotFound, "investment summary", memberID.String())
	}
	return &sum, nil
}

// Upsert rewrites the totals and keeps an existing row's rankings.
func (r summaryRepo) Upsert(_ context.Context, s *domain.InvestmentSummary) error {
	row := *s
	if existing, ok := r.s.summaries[s.MemberID]; ok {
		row.RankingByTotal = existing.RankingByTotal
		row.RankingByShareCapital = existing.RankingByShareCapital
	}
	r.s.summaries[s.MemberID] = row
	return nil
}

func (r summaryRepo) List(_ context.Context) ([]*domain.InvestmentSummary, error) {
	out := make([]*domain.InvestmentSummary, 0, len(r.s.summaries))
	for _, sum := range r.s.summaries {
		sum := sum
		out = append(out, &sum)
	}
	sortByID(out, func(s *domain.InvestmentSummary) uuid.UUID { return s.MemberID })
	return out, nil
}

func (r summaryRepo) SetRankings(_ context.Context, memberID uuid.UUID, byTotal, byShareCapital *int) error {
	sum, ok := r.s.summaries[memberID]
	if !ok {
		return errors.NotFound(errors.ErrSummaryNotFound, "investment summary", memberID.String())
	}
	sum.RankingByTotal = byTotal
	sum.RankingByShareCapital = byShareCapital
	r.s.summaries[memberID] = sum
	return nil
}

type loanTypeRepo struct{ s *state }

func (r loanTypeRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.LoanType, error) {
	lt, ok := r.s.loanTypes[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrLoanTypeNotFound, "loan type", id.String())
	}
	return &lt, nil
}

type applicationRepo struct{ s *state }

func (r applicationRepo) Create(_ context.Context, app *domain.LoanApplication) error {
	if _, ok := r.s.applications[app.ID]; ok {
		return errors.ErrAlreadyExists
	}
	r.s.applications[app.ID] = *app
	return nil
}

func (r applicationRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	app, ok := r.s.applications[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrApplicationNotFound, "loan application", id.String())
	}
	return &app, nil
}

func (r applicationRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanApplication, error) {
	return r.FindByID(ctx, id)
}

func (r applicationRepo) Update(_ context.Context, app *domain.LoanApplication) error {
	if _, ok := r.s.applications[app.ID]; !ok {
		return errors.NotFound(errors.ErrApplicationNotFound, "loan application", app.ID.String())
	}
	r.s.applications[app.ID] = *app
	return nil
}

type guarantorRepo struct{ s *state }

func (r guarantorRepo) Create(_ context.Context, g *domain.LoanGuarantor) error {
	for _, existing := range r.s.guarantors {
		if existing.ID == g.ID || (existing.ApplicationID == g.ApplicationID && existing.GuarantorID == g.GuarantorID) {
			return errors.ErrAlreadyExists
		}
	}
	r.s.guarantors[g.ID] = *g
	return nil
}

func (r guarantorRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.LoanGuarantor, error) {
	g, ok := r.s.guarantors[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrGuarantorNotFound, "loan guarantor", id.String())
	}
	return &g, nil
}

func (r guarantorRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanGuarantor, error) {
	return r.FindByID(ctx, id)
}

func (r guarantorRepo) Update(_ context.Context, g *domain.LoanGuarantor) error {
	if _, ok := r.s.guarantors[g.ID]; !ok {
		return errors.NotFound(errors.ErrGuarantorNotFound, "loan guarantor", g.ID.String())
	}
	r.s.guarantors[g.ID] = *g
	return nil
}

func (r guarantorRepo) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]*domain.LoanGuarantor, error) {
	var out []*domain.LoanGuarantor
	for _, g := range r.s.guarantors {
		if g.ApplicationID == applicationID {
			g := g
			out = append(out, &g)
		}
	}
	sortByID(out, func(g *domain.LoanGuarantor) uuid.UUID { return g.ID })
	return out, nil
}

type loanRepo struct{ s *state }

func (r loanRepo) Create(_ context.Context, loan *domain.Loan) error {
	for _, existing := range r.s.loans {
		if existing.ID == loan.ID || existing.ApplicationID == loan.ApplicationID {
			return errors.ErrAlreadyExists
		}
		if existing.LoanNumber == loan.LoanNumber {
			return errors.ErrDuplicateIdentifier
		}
	}
	r.s.loans[loan.ID] = *loan
	return nil
}

func (r loanRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Loan, error) {
	loan, ok := r.s.loans[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrLoanNotFound, "loan", id.String())
	}
	return &loan, nil
}

func (r loanRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.FindByID(ctx, id)
}

func (r loanRepo) Update(_ context.Context, loan *domain.Loan) error {
	if _, ok := r.s.loans[loan.ID]; !ok {
		return errors.NotFound(errors.ErrLoanNotFound, "loan", loan.ID.String())
	}
	r.s.loans[loan.ID] = *loan
	return nil
}

func (r loanRepo) FindByApplication(_ context.Context, applicationID uuid.UUID) (*domain.Loan, error) {
	for _, loan := range r.s.loans {
		if loan.ApplicationID == applicationID {
			loan := loan
			return &loan, nil
		}
	}
	return nil, errors.NotFound(errors.ErrLoanNotFound, "loan", "application "+applicationID.String())
}

func matchesStatus(status domain.LoanStatus, statuses []domain.LoanStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r loanRepo) ListByBorrower(_ context.Context, borrowerID uuid.UUID, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	var out []*domain.Loan
	for _, loan := range r.s.loans {
		if loan.BorrowerID == borrowerID && matchesStatus(loan.Status, statuses) {
			loan := loan
			out = append(out, &loan)
		}
	}
	sortByID(out, func(l *domain.Loan) uuid.UUID { return l.ID })
	return out, nil
}

func (r loanRepo) ListByStatus(_ context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	var out []*domain.Loan
	for _, loan := range r.s.loans {
		if matchesStatus(loan.Status, statuses) {
			loan := loan
			out = append(out, &loan)
		}
	}
	sortByID(out, func(l *domain.Loan) uuid.UUID { return l.ID })
	return out, nil
}

func (r loanRepo) NextSequence(_ context.Context, year int) (int, error) {
	r.s.loanSeq[year]++
	return r.s.loanSeq[year], nil
}

type scheduleRepo struct{ s *state }

func (r scheduleRepo) DeleteByLoan(_ context.Context, loanID uuid.UUID) error {
	delete(r.s.schedules, loanID)
	return nil
}

func (r scheduleRepo) CreateBatch(_ context.Context, rows []*domain.LoanSchedule) error {
	for _, row := range rows {
		r.s.schedules[row.LoanID] = append(r.s.schedules[row.LoanID], *row)
	}
	return nil
}

func (r scheduleRepo) ListByLoan(_ context.Context, loanID uuid.UUID) ([]*domain.LoanSchedule, error) {
	rows := r.s.schedules[loanID]
	out := make([]*domain.LoanSchedule, 0, len(rows))
	for i := range rows {
		row := rows[i]
		out = append(out, &row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentNumber < out[j].PaymentNumber })
	return out, nil
}

type paymentRepo struct{ s *state }

func (r paymentRepo) Create(_ context.Context, p *domain.LoanPayment) error {
	if _, ok := r.s.payments[p.ID]; ok {
		return errors.ErrAlreadyExists
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.LoanPayment, error) {
	p, ok := r.s.payments[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrPaymentNotFound, "loan payment", id.String())
	}
	return &p, nil
}

func (r paymentRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanPayment, error) {
	return r.FindByID(ctx, id)
}

func (r paymentRepo) Update(_ context.Context, p *domain.LoanPayment) error {
	if _, ok := r.s.payments[p.ID]; !ok {
		return errors.NotFound(errors.ErrPaymentNotFound, "loan payment", p.ID.String())
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) SumConfirmedInterest(_ context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range r.s.payments {
		if p.LoanID == loanID && p.Status == domain.PaymentStatusConfirmed {
			total = total.Add(p.InterestAmount)
		}
	}
	return total, nil
}

type penaltyRepo struct{ s *state }

func (r penaltyRepo) Create(_ context.Context, p *domain.LoanPenalty) error {
	if _, ok := r.s.penalties[p.ID]; ok {
		return errors.ErrAlreadyExists
	}
	r.s.penalties[p.ID] = *p
	return nil
}

func (r penaltyRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.LoanPenalty, error) {
	p, ok := r.s.penalties[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrPenaltyNotFound, "loan penalty", id.String())
	}
	return &p, nil
}

func (r penaltyRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanPenalty, error) {
	return r.FindByID(ctx, id)
}

func (r penaltyRepo) Update(_ context.Context, p *domain.LoanPenalty) error {
	if _, ok := r.s.penalties[p.ID]; !ok {
		return errors.NotFound(errors.ErrPenaltyNotFound, "loan penalty", p.ID.String())
	}
	r.s.penalties[p.ID] = *p
	return nil
}

func (r penaltyRepo) SumUnwaived(_ context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range r.s.penalties {
		if p.LoanID == loanID && !p.IsWaived {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

type transactionRepo struct{ s *state }

func (r transactionRepo) Create(_ context.Context, t *domain.Transaction) error {
	for _, existing := range r.s.transactions {
		if existing.TransactionID == t.TransactionID {
			return errors.ErrDuplicateIdentifier
		}
	}
	if _, ok := r.s.transactions[t.ID]; ok {
		return errors.ErrAlreadyExists
	}
	r.s.transactions[t.ID] = *t
	r.s.txOrder = append(r.s.txOrder, t.ID)
	return nil
}

func (r transactionRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrTransactionNotFound, "transaction", id.String())
	}
	return &t, nil
}

func (r transactionRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return r.FindByID(ctx, id)
}

func (r transactionRepo) Update(_ context.Context, t *domain.Transaction) error {
	if _, ok := r.s.transactions[t.ID]; !ok {
		return errors.NotFound(errors.ErrTransactionNotFound, "transaction", t.ID.String())
	}
	r.s.transactions[t.ID] = *t
	return nil
}

// ListByMember returns transactions in insertion order.
func (r transactionRepo) ListByMember(_ context.Context, memberID uuid.UUID) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, id := range r.s.txOrder {
		t := r.s.transactions[id]
		if t.MemberID == memberID {
			out = append(out, &t)
		}
	}
	return out, nil
}

func (r transactionRepo) ListPendingBefore(_ context.Context, cutoff time.Time) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, id := range r.s.txOrder {
		t := r.s.transactions[id]
		if t.Status == domain.TransactionStatusPending && t.CreatedAt.Before(cutoff) {
			out = append(out, &t)
		}
	}
	return out, nil
}

type balanceRepo struct{ s *state }

func (r balanceRepo) Get(_ context.Context, memberID uuid.UUID) (*domain.MemberBalance, error) {
	b, ok := r.s.balances[memberID]
	if !ok {
		return nil, errors.NotFound(errors.ErrBalanceNotFound, "member balance", memberID.String())
	}
	return &b, nil
}

func (r balanceRepo) Upsert(_ context.Context, b *domain.MemberBalance) error {
	r.s.balances[b.MemberID] = *b
	return nil
}

func (r balanceRepo) List(_ context.Context) ([]*domain.MemberBalance, error) {
	out := make([]*domain.MemberBalance, 0, len(r.s.balances))
	for _, b := range r.s.balances {
		b := b
		out = append(out, &b)
	}
	sortByID(out, func(b *domain.MemberBalance) uuid.UUID { return b.MemberID })
	return out, nil
}

type receiptRepo struct{ s *state }

func (r receiptRepo) Create(_ context.Context, rec *domain.TransactionReceipt) error {
	for _, existing := range r.s.receipts {
		if existing.ReceiptNumber == rec.ReceiptNumber {
			return errors.ErrDuplicateIdentifier
		}
		if existing.TransactionID == rec.TransactionID {
			return errors.ErrAlreadyExists
		}
	}
	r.s.receipts[rec.ID] = *rec
	return nil
}

func (r receiptRepo) FindByTransaction(_ context.Context, transactionID uuid.UUID) (*domain.TransactionReceipt, error) {
	for _, rec := range r.s.receipts {
		if rec.TransactionID == transactionID {
			rec := rec
			return &rec, nil
		}
	}
	return nil, errors.NotFound(errors.ErrTransactionNotFound, "receipt", transactionID.String())
}

type feeRepo struct{ s *state }

func (r feeRepo) FindActiveByType(_ context.Context, feeType string) (*domain.TransactionFee, error) {
	for _, f := range r.s.fees {
		if f.FeeType == feeType && f.IsActive {
			f := f
			return &f, nil
		}
	}
	return nil, errors.NotFound(errors.ErrFeeNotFound, "transaction fee", feeType)
}

type batchRepo struct{ s *state }

func (r batchRepo) Create(_ context.Context, b *domain.TransactionBatch) error {
	for _, existing := range r.s.batches {
		if existing.BatchID == b.BatchID {
			return errors.ErrDuplicateIdentifier
		}
	}
	r.s.batches[b.ID] = *b
	return nil
}

func (r batchRepo) Update(_ context.Context, b *domain.TransactionBatch) error {
	if _, ok := r.s.batches[b.ID]; !ok {
		return errors.NotFound(errors.ErrBatchNotFound, "transaction batch", b.ID.String())
	}
	r.s.batches[b.ID] = *b
	return nil
}

func (r batchRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.TransactionBatch, error) {
	b, ok := r.s.batches[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrBatchNotFound, "transaction batch", id.String())
	}
	return &b, nil
}

func (r batchRepo) AddItem(_ context.Context, item *domain.BatchItem) error {
	r.s.batchItems[item.BatchID] = append(r.s.batchItems[item.BatchID], *item)
	return nil
}

func (r batchRepo) ListItems(_ context.Context, batchID uuid.UUID) ([]*domain.BatchItem, error) {
	items := r.s.batchItems[batchID]
	out := make([]*domain.BatchItem, 0, len(items))
	for i := range items {
		item := items[i]
		out = append(out, &item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

type dividendRepo struct{ s *state }

func (r dividendRepo) Upsert(_ context.Context, d *domain.DividendPayment) error {
	for id, existing := range r.s.dividends {
		if existing.Year == d.Year && existing.MemberID == d.MemberID {
			if existing.IsPaid {
				return errors.NewInvalidState("dividend payment", id.String(), "paid", "unpaid")
			}
			d.ID = id
			d.CreatedAt = existing.CreatedAt
			r.s.dividends[id] = *d
			return nil
		}
	}
	r.s.dividends[d.ID] = *d
	return nil
}

func (r dividendRepo) LockByYearMember(_ context.Context, year int, memberID uuid.UUID) (*domain.DividendPayment, error) {
	for _, d := range r.s.dividends {
		if d.Year == year && d.MemberID == memberID {
			d := d
			return &d, nil
		}
	}
	return nil, errors.NotFound(errors.ErrDividendNotFound, "dividend payment", memberID.String())
}

func (r dividendRepo) LockByID(_ context.Context, id uuid.UUID) (*domain.DividendPayment, error) {
	d, ok := r.s.dividends[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrDividendNotFound, "dividend payment", id.String())
	}
	return &d, nil
}

func (r dividendRepo) Update(_ context.Context, d *domain.DividendPayment) error {
	if _, ok := r.s.dividends[d.ID]; !ok {
		return errors.NotFound(errors.ErrDividendNotFound, "dividend payment", d.ID.String())
	}
	r.s.dividends[d.ID] = *d
	return nil
}

func (r dividendRepo) ListByYear(_ context.Context, year int) ([]*domain.DividendPayment, error) {
	var out []*domain.DividendPayment
	for _, d := range r.s.dividends {
		if d.Year == year {
			d := d
			out = append(out, &d)
		}
	}
	sortByID(out, func(d *domain.DividendPayment) uuid.UUID { return d.MemberID })
	return out, nil
}

type auditRepo struct{ s *state }

func (r auditRepo) Create(_ context.Context, log *domain.AuditLog) error {
	r.s.audit = append(r.s.audit, *log)
	return nil
}

func (r auditRepo) ListByEntity(_ context.Context, entityType, entityID string) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	for i := range r.s.audit {
		if r.s.audit[i].EntityType == entityType && r.s.audit[i].EntityID == entityID {
			log := r.s.audit[i]
			out = append(out, &log)
		}
	}
	return out, nil
}

type recurringRepo struct{ s *state }

func (r recurringRepo) Create(_ context.Context, rt *domain.RecurringTransaction) error {
	if _, ok := r.s.recurring[rt.ID]; ok {
		return errors.ErrAlreadyExists
	}
	r.s.recurring[rt.ID] = *rt
	return nil
}

func (r recurringRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.RecurringTransaction, error) {
	rt, ok := r.s.recurring[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrRecurringNotFound, "recurring transaction", id.String())
	}
	return &rt, nil
}

func (r recurringRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTransaction, error) {
	return r.FindByID(ctx, id)
}

func (r recurringRepo) Update(_ context.Context, rt *domain.RecurringTransaction) error {
	if _, ok := r.s.recurring[rt.ID]; !ok {
		return errors.NotFound(errors.ErrRecurringNotFound, "recurring transaction", rt.ID.String())
	}
	r.s.recurring[rt.ID] = *rt
	return nil
}

func (r recurringRepo) ListByMember(_ context.Context, memberID uuid.UUID) ([]*domain.RecurringTransaction, error) {
	var out []*domain.RecurringTransaction
	for _, rt := range r.s.recurring {
		if rt.MemberID == memberID {
			rt := rt
			out = append(out, &rt)
		}
	}
	sortByID(out, func(rt *domain.RecurringTransaction) uuid.UUID { return rt.ID })
	return out, nil
}

func (r recurringRepo) ListDue(_ context.Context, asOf time.Time) ([]*domain.RecurringTransaction, error) {
	var out []*domain.RecurringTransaction
	for _, rt := range r.s.recurring {
		if rt.Due(asOf) {
			rt := rt
			out = append(out, &rt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextExecutionDate.Equal(out[j].NextExecutionDate) {
			return out[i].NextExecutionDate.Before(out[j].NextExecutionDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

type targetRepo struct{ s *state }

func (r targetRepo) Create(_ context.Context, t *domain.InvestmentTarget) error {
	if _, ok := r.s.targets[t.ID]; ok {
		return errors.ErrAlreadyExists
	}
	r.s.targets[t.ID] = *t
	return nil
}

func (r targetRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.InvestmentTarget, error) {
	t, ok := r.s.targets[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrTargetNotFound, "investment target", id.String())
	}
	return &t, nil
}

func (r targetRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentTarget, error) {
	return r.FindByID(ctx, id)
}

func (r targetRepo) Update(_ context.Context, t *domain.InvestmentTarget) error {
	if _, ok := r.s.targets[t.ID]; !ok {
		return errors.NotFound(errors.ErrTargetNotFound, "investment target", t.ID.String())
	}
	r.s.targets[t.ID] = *t
	return nil
}

func (r targetRepo) ListForMember(_ context.Context, memberID uuid.UUID) ([]*domain.InvestmentTarget, error) {
	var out []*domain.InvestmentTarget
	for _, t := range r.s.targets {
		if t.TargetType == domain.TargetTypeSaccoWide || (t.MemberID != nil && *t.MemberID == memberID) {
			t := t
			out = append(out, &t)
		}
	}
	sortByID(out, func(t *domain.InvestmentTarget) uuid.UUID { return t.ID })
	return out, nil
}

type collateralRepo struct{ s *state }

func (r collateralRepo) Create(_ context.Context, c *domain.LoanCollateral) error {
	if _, ok := r.s.collateral[c.ID]; ok {
		return errors.ErrAlreadyExists
	}
	r.s.collateral[c.ID] = *c
	return nil
}

func (r collateralRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.LoanCollateral, error) {
	c, ok := r.s.collateral[id]
	if !ok {
		return nil, errors.NotFound(errors.ErrCollateralNotFound, "loan collateral", id.String())
	}
	return &c, nil
}

func (r collateralRepo) LockByID(ctx context.Context, id uuid.UUID) (*domain.LoanCollateral, error) {
	return r.FindByID(ctx, id)
}

func (r collateralRepo) Update(_ context.Context, c *domain.LoanCollateral) error {
	if _, ok := r.s.collateral[c.ID]; !ok {
		return errors.NotFound(errors.ErrCollateralNotFound, "loan collateral", c.ID.String())
	}
	r.s.collateral[c.ID] = *c
	return nil
}

func (r collateralRepo) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]*domain.LoanCollateral, error) {
	var out []*domain.LoanCollateral
	for _, c := range r.s.collateral {
		if c.ApplicationID == applicationID {
			c := c
			out = append(out, &c)
		}
	}
	sortByID(out, func(c *domain.LoanCollateral) uuid.UUID { return c.ID })
	return out, nil
}
