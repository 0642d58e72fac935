package investment

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

func personalTarget(memberID uuid.UUID, amount int64) *TargetRequest {
	today := time.Now().UTC()
	return &TargetRequest{
		TargetType:   domain.TargetTypePersonal,
		Name:         "School fees",
		TargetAmount: decimal.NewFromInt(amount),
		PeriodType:   domain.PeriodTypeMonthly,
		MemberID:     &memberID,
		StartDate:    today.AddDate(0, 0, -5),
		EndDate:      today.AddDate(0, 0, 5),
	}
}

func TestCreateTargetValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)
	admin := uuid.New()

	tests := []struct {
		name   string
		mutate func(r *TargetRequest)
		check  func(error) bool
	}{
		{"personal without member", func(r *TargetRequest) { r.MemberID = nil }, errors.IsValidation},
		{"sacco wide with member", func(r *TargetRequest) { r.TargetType = domain.TargetTypeSaccoWide }, errors.IsValidation},
		{"bad period", func(r *TargetRequest) { r.PeriodType = "weekly" }, errors.IsValidation},
		{"zero amount", func(r *TargetRequest) { r.TargetAmount = decimal.Zero }, errors.IsValidation},
		{"end before start", func(r *TargetRequest) { r.EndDate = r.StartDate.AddDate(0, 0, -1) }, errors.IsValidation},
		{"unknown member", func(r *TargetRequest) { id := uuid.New(); r.MemberID = &id }, errors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := personalTarget(memberID, 1000)
			tt.mutate(req)
			_, err := f.svc.CreateTarget(ctx, req, admin)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestTargetProgressFollowsConfirmedInvestments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)
	other := f.member(t)
	admin := uuid.New()

	f.confirmed(t, memberID, domain.InvestmentTypeSpecialDeposit, "300")
	f.confirmed(t, other, domain.InvestmentTypeSpecialDeposit, "200")

	// Dated before the window.
	early := time.Now().UTC().AddDate(0, 0, -30)
	inv, err := f.svc.RecordInvestment(ctx, &RecordRequest{
		MemberID: memberID, Type: domain.InvestmentTypeSpecialDeposit,
		Amount: decimal.NewFromInt(900), InvestmentDate: &early,
	})
	require.NoError(t, err)
	_, err = f.svc.ConfirmInvestment(ctx, inv.ID, admin, "")
	require.NoError(t, err)

	// Pending investments do not count.
	_, err = f.svc.RecordInvestment(ctx, &RecordRequest{MemberID: memberID, Type: domain.InvestmentTypeSpecialDeposit, Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	personal, err := f.svc.CreateTarget(ctx, personalTarget(memberID, 1000), admin)
	require.NoError(t, err)
	assert.True(t, personal.CurrentAmount.Equal(decimal.NewFromInt(300)))
	assert.True(t, personal.ProgressPercentage.Equal(decimal.NewFromInt(30)))
	assert.True(t, personal.RemainingAmount.Equal(decimal.NewFromInt(700)))
	assert.False(t, personal.IsAchieved)

	wideReq := personalTarget(memberID, 400)
	wideReq.TargetType = domain.TargetTypeSaccoWide
	wideReq.MemberID = nil
	wide, err := f.svc.CreateTarget(ctx, wideReq, admin)
	require.NoError(t, err)
	assert.True(t, wide.CurrentAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, wide.ProgressPercentage.Equal(decimal.NewFromInt(100)), "capped")
	assert.True(t, wide.RemainingAmount.IsZero())
	assert.True(t, wide.IsAchieved)

	f.confirmed(t, memberID, domain.InvestmentTypeSpecialDeposit, "700")

	got, err := f.svc.GetTarget(ctx, personal.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.IsAchieved)

	list, err := f.svc.ListTargets(ctx, memberID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.ListTargets(ctx, other)
	require.NoError(t, err)
	require.Len(t, list, 1, "only the sacco wide target")
	assert.Equal(t, wide.ID, list[0].ID)
}

func TestDeactivateTargetFreezesAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.member(t)
	admin := uuid.New()

	f.confirmed(t, memberID, domain.InvestmentTypeSpecialDeposit, "250")
	target, err := f.svc.CreateTarget(ctx, personalTarget(memberID, 1000), admin)
	require.NoError(t, err)

	target, err = f.svc.DeactivateTarget(ctx, target.ID, admin)
	require.NoError(t, err)
	assert.False(t, target.IsActive)

	f.confirmed(t, memberID, domain.InvestmentTypeSpecialDeposit, "250")

	got, err := f.svc.GetTarget(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.Equal(decimal.NewFromInt(250)))

	_, err = f.svc.DeactivateTarget(ctx, target.ID, admin)
	assert.True(t, errors.IsInvalidState(err), "got %v", err)

	_, err = f.svc.GetTarget(ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrTargetNotFound)
}
