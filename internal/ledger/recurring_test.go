package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

func recurringDeposit(memberID uuid.UUID, start time.Time, auto bool) *RecurringRequest {
	return &RecurringRequest{
		MemberID:    memberID,
		Name:        "Monthly savings",
		Description: "standing order",
		Type:        domain.TransactionTypeDeposit,
		Amount:      decimal.NewFromInt(500),
		Frequency:   domain.FrequencyMonthly,
		StartDate:   start,
		AutoExecute: auto,
	}
}

func TestCreateRecurringValidation(t *testing.T) {
	svc, _, memberID := newTestService(t)
	ctx := context.Background()
	admin := uuid.New()
	before := fixedNow.AddDate(0, 0, -1)

	tests := []struct {
		name   string
		mutate func(r *RecurringRequest)
	}{
		{"adjustment", func(r *RecurringRequest) { r.Type = domain.TransactionTypeAdjustment }},
		{"unknown type", func(r *RecurringRequest) { r.Type = "gift" }},
		{"unknown frequency", func(r *RecurringRequest) { r.Frequency = "hourly" }},
		{"zero amount", func(r *RecurringRequest) { r.Amount = decimal.Zero }},
		{"end before start", func(r *RecurringRequest) { r.EndDate = &before }},
		{"zero max executions", func(r *RecurringRequest) { zero := 0; r.MaxExecutions = &zero }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := recurringDeposit(memberID, fixedNow, true)
			tt.mutate(req)
			_, err := svc.CreateRecurring(ctx, req, admin)
			assert.True(t, errors.IsValidation(err), "got %v", err)
		})
	}

	_, err := svc.CreateRecurring(ctx, recurringDeposit(uuid.New(), fixedNow, true), admin)
	assert.ErrorIs(t, err, errors.ErrMemberNotFound)

	rt, err := svc.CreateRecurring(ctx, recurringDeposit(memberID, fixedNow, true), admin)
	require.NoError(t, err)
	assert.Equal(t, domain.RecurringStatusActive, rt.Status)
	assert.True(t, rt.NextExecutionDate.Equal(fixedNow))
	assert.Zero(t, rt.ExecutionCount)
}

func TestExecuteDueRecurring(t *testing.T) {
	svc, st, memberID := newTestService(t)
	ctx := context.Background()
	admin := uuid.New()
	start := fixedNow.AddDate(0, 0, -1)

	two := 2
	autoReq := recurringDeposit(memberID, start, true)
	autoReq.MaxExecutions = &two
	auto, err := svc.CreateRecurring(ctx, autoReq, admin)
	require.NoError(t, err)

	manual, err := svc.CreateRecurring(ctx, recurringDeposit(memberID, start, false), admin)
	require.NoError(t, err)

	paused, err := svc.CreateRecurring(ctx, recurringDeposit(memberID, start, true), admin)
	require.NoError(t, err)
	_, err = svc.PauseRecurring(ctx, paused.ID, admin)
	require.NoError(t, err)

	_, err = svc.CreateRecurring(ctx, recurringDeposit(memberID, fixedNow.AddDate(0, 0, 3), true), admin)
	require.NoError(t, err)

	n, err := svc.ExecuteDueRecurring(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := svc.RecomputeMemberBalance(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, b.CurrentBalance.Equal(decimal.NewFromInt(500)), "auto template posts")
	assert.True(t, b.PendingDeposits.Equal(decimal.NewFromInt(500)), "manual template waits")

	auto, err = svc.GetRecurring(ctx, auto.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, auto.ExecutionCount)
	assert.Equal(t, domain.RecurringStatusActive, auto.Status)
	assert.True(t, auto.NextExecutionDate.Equal(start.AddDate(0, 1, 0)))
	require.NotNil(t, auto.LastExecutionDate)
	assert.True(t, auto.LastExecutionDate.Equal(fixedNow))

	manual, err = svc.GetRecurring(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, manual.ExecutionCount)

	paused, err = svc.GetRecurring(ctx, paused.ID)
	require.NoError(t, err)
	assert.Zero(t, paused.ExecutionCount)

	// Nothing is due again until next month.
	n, err = svc.ExecuteDueRecurring(ctx, fixedNow)
	require.NoError(t, err)
	assert.Zero(t, n)

	txn, err := svc.ExecuteRecurring(ctx, auto.ID, &admin)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "REC-"+auto.ID.String()[:8]+"-2", txn.ReferenceNumber)
	assert.Equal(t, "Recurring: standing order", txn.Description)

	auto, err = svc.GetRecurring(ctx, auto.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecurringStatusCompleted, auto.Status)

	_, err = svc.ExecuteRecurring(ctx, auto.ID, &admin)
	assert.True(t, errors.IsInvalidState(err), "got %v", err)

	bal, err := svc.GetBalance(ctx, memberID)
	require.NoError(t, err)
	assert.True(t, bal.CurrentBalance.Equal(decimal.NewFromInt(1000)))

	executed := 0
	for _, a := range st.AuditLogs() {
		if a.Action == "RECURRING_EXECUTED" {
			executed++
		}
	}
	assert.Equal(t, 3, executed)
}

func TestRecurringEndDateCompletes(t *testing.T) {
	svc, _, memberID := newTestService(t)
	ctx := context.Background()

	end := fixedNow.AddDate(0, 0, 10)
	req := recurringDeposit(memberID, fixedNow, true)
	req.EndDate = &end
	rt, err := svc.CreateRecurring(ctx, req, uuid.New())
	require.NoError(t, err)

	_, err = svc.ExecuteRecurring(ctx, rt.ID, nil)
	require.NoError(t, err)

	rt, err = svc.GetRecurring(ctx, rt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RecurringStatusCompleted, rt.Status)
	assert.Equal(t, 1, rt.ExecutionCount)
}

func TestRecurringStatusTransitions(t *testing.T) {
	svc, st, memberID := newTestService(t)
	ctx := context.Background()
	admin := uuid.New()

	rt, err := svc.CreateRecurring(ctx, recurringDeposit(memberID, fixedNow, true), admin)
	require.NoError(t, err)

	_, err = svc.ResumeRecurring(ctx, rt.ID, admin)
	assert.True(t, errors.IsInvalidState(err), "resume needs paused")

	rt, err = svc.PauseRecurring(ctx, rt.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.RecurringStatusPaused, rt.Status)

	_, err = svc.ExecuteRecurring(ctx, rt.ID, &admin)
	assert.True(t, errors.IsInvalidState(err), "paused templates do not run")

	rt, err = svc.ResumeRecurring(ctx, rt.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.RecurringStatusActive, rt.Status)

	rt, err = svc.CancelRecurring(ctx, rt.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.RecurringStatusCancelled, rt.Status)

	_, err = svc.CancelRecurring(ctx, rt.ID, admin)
	assert.True(t, errors.IsInvalidState(err))

	_, err = svc.PauseRecurring(ctx, uuid.New(), admin)
	assert.ErrorIs(t, err, errors.ErrRecurringNotFound)

	list, err := svc.ListRecurring(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	var actions []string
	for _, a := range st.AuditLogs() {
		actions = append(actions, a.Action)
	}
	assert.Subset(t, actions, []string{"RECURRING_CREATED", "RECURRING_PAUSED", "RECURRING_RESUMED", "RECURRING_CANCELLED"})
}
