package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

// Next returns the execution date one period after t. Month based periods
// clamp to the last day of the target month.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return AddMonths(t, 1)
	case FrequencyQuarterly:
		return AddMonths(t, 3)
	case FrequencyAnnually:
		return AddMonths(t, 12)
	}
	return t
}

// AddMonths moves t forward by n calendar months, clamping to the last day
// of the target month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

type RecurringStatus string

const (
	RecurringStatusActive    RecurringStatus = "active"
	RecurringStatusPaused    RecurringStatus = "paused"
	RecurringStatusCancelled RecurringStatus = "cancelled"
	RecurringStatusCompleted RecurringStatus = "completed"
)

// RecurringTransaction is a template the ledger turns into one transaction
// per period. With AutoExecute the transaction is posted at once, otherwise
// it waits pending for an administrator.
type RecurringTransaction struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	Description       string          `json:"description" db:"description"`
	MemberID          uuid.UUID       `json:"member_id" db:"member_id"`
	Type              TransactionType `json:"transaction_type" db:"transaction_type"`
	Category          string          `json:"category" db:"category"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Frequency         Frequency       `json:"frequency" db:"frequency"`
	StartDate         time.Time       `json:"start_date" db:"start_date"`
	EndDate           *time.Time      `json:"end_date,omitempty" db:"end_date"`
	NextExecutionDate time.Time       `json:"next_execution_date" db:"next_execution_date"`
	LastExecutionDate *time.Time      `json:"last_execution_date,omitempty" db:"last_execution_date"`
	Status            RecurringStatus `json:"status" db:"status"`
	ExecutionCount    int             `json:"execution_count" db:"execution_count"`
	MaxExecutions     *int            `json:"max_executions,omitempty" db:"max_executions"`
	AutoExecute       bool            `json:"auto_execute" db:"auto_execute"`
	CreatedBy         uuid.UUID       `json:"created_by" db:"created_by"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Due reports whether the template should run as of now.
func (r *RecurringTransaction) Due(now time.Time) bool {
	return r.Status == RecurringStatusActive && !truncateDay(r.NextExecutionDate).After(truncateDay(now))
}

// Advance records one execution at now and moves to the next period,
// completing the template when it runs out of executions or dates.
func (r *RecurringTransaction) Advance(now time.Time) {
	r.ExecutionCount++
	ran := now
	r.LastExecutionDate = &ran
	r.NextExecutionDate = r.Frequency.Next(r.NextExecutionDate)
	switch {
	case r.MaxExecutions != nil && r.ExecutionCount >= *r.MaxExecutions:
		r.Status = RecurringStatusCompleted
	case r.EndDate != nil && truncateDay(r.NextExecutionDate).After(truncateDay(*r.EndDate)):
		r.Status = RecurringStatusCompleted
	}
}
