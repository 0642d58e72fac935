package loan

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sacco/internal/domain"
	"sacco/pkg/errors"
)

func title(appID uuid.UUID) *CollateralRequest {
	return &CollateralRequest{
		ApplicationID:     appID,
		CollateralType:    domain.CollateralTypeVehicle,
		Description:       "KCA 123X pickup",
		EstimatedValue:    dec("8000"),
		OwnershipDocument: "docs/logbook-kca123x.pdf",
	}
}

func TestCollateralLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.saver(t)
	app := f.apply(t, memberID, f.loanType(t, false), "3000")

	c, err := f.svc.AddCollateral(ctx, title(app.ID), memberID)
	require.NoError(t, err)
	assert.False(t, c.IsVerified)
	assert.True(t, c.EstimatedValue.Equal(dec("8000")))

	f.approve(t, app.ID)
	_, err = f.svc.AddCollateral(ctx, &CollateralRequest{
		ApplicationID: app.ID, CollateralType: domain.CollateralTypeShares,
		Description: "pledged shares", EstimatedValue: dec("1000"),
	}, memberID)
	require.NoError(t, err, "approved applications still take collateral")

	c, err = f.svc.VerifyCollateral(ctx, c.ID, f.admin, "logbook sighted")
	require.NoError(t, err)
	assert.True(t, c.IsVerified)
	require.NotNil(t, c.VerifiedBy)
	assert.Equal(t, f.admin, *c.VerifiedBy)
	require.NotNil(t, c.VerificationDate)
	assert.True(t, c.VerificationDate.Equal(fixedNow))
	assert.Equal(t, "logbook sighted", c.VerificationNotes)

	_, err = f.svc.VerifyCollateral(ctx, c.ID, f.admin, "")
	assert.True(t, errors.IsInvalidState(err), "got %v", err)

	list, err := f.svc.Collateral(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	f.disburse(t, app.ID)
	_, err = f.svc.AddCollateral(ctx, title(app.ID), memberID)
	assert.True(t, errors.IsInvalidState(err), "disbursed applications are closed")

	var actions []string
	for _, a := range f.store.AuditLogs() {
		actions = append(actions, a.Action)
	}
	assert.Subset(t, actions, []string{"COLLATERAL_ADDED", "COLLATERAL_VERIFIED"})
}

func TestAddCollateralValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	memberID := f.saver(t)
	app := f.apply(t, memberID, f.loanType(t, false), "3000")

	tests := []struct {
		name   string
		mutate func(r *CollateralRequest)
		check  func(error) bool
	}{
		{"bad type", func(r *CollateralRequest) { r.CollateralType = "livestock" }, errors.IsValidation},
		{"no description", func(r *CollateralRequest) { r.Description = "" }, errors.IsValidation},
		{"zero value", func(r *CollateralRequest) { r.EstimatedValue = dec("0") }, errors.IsValidation},
		{"unknown application", func(r *CollateralRequest) { r.ApplicationID = uuid.New() }, errors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := title(app.ID)
			tt.mutate(req)
			_, err := f.svc.AddCollateral(ctx, req, memberID)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	_, err := f.svc.Cancel(ctx, app.ID, memberID, "changed my mind")
	require.NoError(t, err)
	_, err = f.svc.AddCollateral(ctx, title(app.ID), memberID)
	assert.True(t, errors.IsInvalidState(err))

	_, err = f.svc.VerifyCollateral(ctx, uuid.New(), f.admin, "")
	assert.ErrorIs(t, err, errors.ErrCollateralNotFound)
}
