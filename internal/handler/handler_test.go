package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sacco/internal/dividend"
	"sacco/internal/domain"
	"sacco/internal/investment"
	"sacco/internal/ledger"
	"sacco/internal/loan"
	"sacco/internal/middleware"
	"sacco/internal/policy"
	"sacco/internal/repayment"
	"sacco/internal/repository/memory"
	"sacco/pkg/errors"
	"sacco/pkg/logger"
)

func mustDec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type pingerMock struct{ mock.Mock }

func (m *pingerMock) PingContext(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type revokerMock struct{ mock.Mock }

func (m *revokerMock) Revoke(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type fixture struct {
	router  *mux.Router
	store   *memory.Store
	db      *pingerMock
	revoker *revokerMock
	admin   uuid.UUID
}

// testActor stands in for the JWT middleware.
func testActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := uuid.Parse(r.Header.Get("X-Actor")); err == nil {
			r = r.WithContext(middleware.WithActor(r.Context(), id, r.Header.Get("X-Role")))
		}
		next.ServeHTTP(w, r)
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	log := logger.NewNop()
	src := policy.Static(policy.Default())
	l := ledger.NewService(st, nil, time.Minute, nil, log)
	inv := investment.NewService(st, src, l, nil, time.Minute, nil, log)
	loans := loan.NewService(st, src, l, nil, log)
	db := &pingerMock{}
	revoker := &revokerMock{}

	rt := Routes{
		Investments: NewInvestmentHandler(inv, log),
		Loans:       NewLoanHandler(loans, log),
		Repayments:  NewRepaymentHandler(repayment.NewService(st, l, nil, log), loans, log),
		Ledger:      NewLedgerHandler(l, log),
		Dividends:   NewDividendHandler(dividend.NewService(st, src, inv, l, nil, log), log),
		System:      NewSystemHandler("sacco", map[string]Pinger{"database": db}, log).WithRevoker(revoker),
	}
	r := mux.NewRouter()
	rt.Register(r, testActor)
	return &fixture{router: r, store: st, db: db, revoker: revoker, admin: uuid.New()}
}

func (f *fixture) member(t *testing.T) uuid.UUID {
	t.Helper()
	approved := time.Now().AddDate(-1, 0, 0)
	id := uuid.New()
	f.store.AddMember(domain.Member{ID: id, Status: domain.MemberStatusApproved, DateApproved: &approved})
	return id
}

func (f *fixture) do(t *testing.T, method, path string, actor uuid.UUID, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != uuid.Nil {
		req.Header.Set("X-Actor", actor.String())
		req.Header.Set("X-Role", role)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	f.db.On("PingContext", mock.Anything).Return(nil).Once()
	w = f.do(t, http.MethodGet, "/ready", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	f.db.On("PingContext", mock.Anything).Return(assert.AnError).Once()
	w = f.do(t, http.MethodGet, "/ready", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "outage", decodeBody(t, w)["dependencies"].(map[string]interface{})["database"].(map[string]interface{})["status"])
	f.db.AssertExpectations(t)
}

func TestRevokeToken(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/admin/tokens/revoke"

	w := f.do(t, http.MethodPost, path, f.member(t), middleware.RoleMember, map[string]string{"token": "abc"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, path, f.admin, middleware.RoleAdmin, map[string]string{"token": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.revoker.On("Revoke", mock.Anything, "abc").Return(nil).Once()
	w = f.do(t, http.MethodPost, path, f.admin, middleware.RoleAdmin, map[string]string{"token": "Bearer abc"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "revoked", decodeBody(t, w)["status"])

	f.revoker.On("Revoke", mock.Anything, "stale").Return(errors.ErrRevocationOff).Once()
	w = f.do(t, http.MethodPost, path, f.admin, middleware.RoleAdmin, map[string]string{"token": "stale"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	f.revoker.AssertExpectations(t)
}

func TestMembersRecordForThemselves(t *testing.T) {
	f := newFixture(t)
	self := f.member(t)
	other := f.member(t)

	w := f.do(t, http.MethodPost, "/api/v1/investments", uuid.Nil, "", map[string]interface{}{
		"member_id": other, "investment_type": "share_capital", "amount": "1000.00",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/investments", self, middleware.RoleMember, map[string]interface{}{
		"member_id": other, "investment_type": "share_capital", "amount": "1000.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv domain.Investment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Equal(t, self, inv.MemberID)
	assert.Equal(t, domain.InvestmentStatusPending, inv.Status)

	confirm := "/api/v1/investments/" + inv.ID.String() + "/confirm"
	w = f.do(t, http.MethodPost, confirm, self, middleware.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, confirm, f.admin, middleware.RoleAdmin, map[string]string{"notes": "till slip"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "confirmed", decodeBody(t, w)["status"])

	w = f.do(t, http.MethodGet, "/api/v1/members/"+self.String()+"/summary", self, middleware.RoleMember, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/members/"+self.String()+"/balance", other, middleware.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServiceErrorsMapToStatuses(t *testing.T) {
	f := newFixture(t)
	memberID := f.member(t)

	w := f.do(t, http.MethodPost, "/api/v1/investments", memberID, middleware.RoleMember, map[string]interface{}{
		"investment_type": "share_capital", "amount": "0",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["errors"], "amount")

	w = f.do(t, http.MethodPost, "/api/v1/investments", memberID, middleware.RoleMember, map[string]interface{}{
		"investment_type": "share_capital", "amount": "6000.00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "limit_exceeded", decodeBody(t, w)["error"])

	w = f.do(t, http.MethodGet, "/api/v1/loans/"+uuid.NewString(), f.admin, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/loans/not-a-uuid", f.admin, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/investments", memberID, middleware.RoleMember, map[string]interface{}{
		"investment_type": "share_capital", "amount": "500.00",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody(t, w)["id"].(string)
	w = f.do(t, http.MethodPost, "/api/v1/investments/"+id+"/reject", f.admin, middleware.RoleAdmin, map[string]string{"reason": "bounced"})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/api/v1/investments/"+id+"/confirm", f.admin, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", decodeBody(t, w)["error"])
}

func TestEligibilityEndpointListsViolations(t *testing.T) {
	f := newFixture(t)
	recent := time.Now().AddDate(0, 0, -10)
	memberID := uuid.New()
	f.store.AddMember(domain.Member{ID: memberID, Status: domain.MemberStatusApproved, DateApproved: &recent})
	loanTypeID := uuid.New()
	f.store.AddLoanType(domain.LoanType{ID: loanTypeID, Name: "Development", InterestRate: mustDec("12"), MaximumAmount: mustDec("100000"), MaximumPeriodMonths: 12, IsActive: true})

	w := f.do(t, http.MethodPost, "/api/v1/loan-applications", memberID, middleware.RoleMember, map[string]interface{}{
		"loan_type_id": loanTypeID, "amount_requested": "10000.00", "purpose": "stock", "repayment_period_months": 12,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	appID := decodeBody(t, w)["id"].(string)

	w = f.do(t, http.MethodGet, "/api/v1/loan-applications/"+appID+"/eligibility", memberID, middleware.RoleMember, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["eligible"])
	assert.NotEmpty(t, body["violations"])

	w = f.do(t, http.MethodPost, "/api/v1/loan-applications/"+appID+"/approve", f.admin, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "not_eligible", decodeBody(t, w)["error"])
}

func TestRecurringTransactionRoutes(t *testing.T) {
	f := newFixture(t)
	memberID := f.member(t)
	start := time.Now().UTC().AddDate(0, 0, -1).Format(time.RFC3339)

	body := map[string]interface{}{
		"member_id": memberID, "name": "Standing order", "description": "salary sweep",
		"transaction_type": "deposit", "amount": "500.00", "frequency": "monthly",
		"start_date": start, "auto_execute": true,
	}
	w := f.do(t, http.MethodPost, "/api/v1/recurring-transactions", memberID, middleware.RoleMember, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/recurring-transactions", f.admin, middleware.RoleAdmin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeBody(t, w)["id"].(string)

	w = f.do(t, http.MethodPost, "/api/v1/admin/recurring-transactions/run", f.admin, middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, w)["executed"])

	w = f.do(t, http.MethodGet, "/api/v1/members/"+memberID.String()+"/balance", memberID, middleware.RoleMember, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mustDec(decodeBody(t, w)["current_balance"].(string)).Equal(mustDec("500")))

	w = f.do(t, http.MethodPost, "/api/v1/recurring-transactions/"+id+"/pause", f.admin, middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paused", decodeBody(t, w)["status"])

	w = f.do(t, http.MethodPost, "/api/v1/recurring-transactions/"+id+"/execute", f.admin, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/recurring-transactions/"+id+"/resume", f.admin, middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodPost, "/api/v1/recurring-transactions/"+id+"/execute", f.admin, middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "completed", decodeBody(t, w)["status"])

	w = f.do(t, http.MethodGet, "/api/v1/members/"+memberID.String()+"/recurring-transactions", memberID, middleware.RoleMember, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody(t, w)["recurring_transactions"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, float64(2), list[0].(map[string]interface{})["execution_count"])

	w = f.do(t, http.MethodGet, "/api/v1/members/"+memberID.String()+"/recurring-transactions", f.member(t), middleware.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestInvestmentTargetRoutes(t *testing.T) {
	f := newFixture(t)
	self := f.member(t)
	other := f.member(t)
	today := time.Now().UTC()

	target := map[string]interface{}{
		"target_type": "personal", "name": "Rainy day", "target_amount": "1000.00", "period_type": "monthly",
		"member_id": other, "start_date": today.AddDate(0, 0, -1).Format(time.RFC3339),
		"end_date": today.AddDate(0, 0, 1).Format(time.RFC3339),
	}
	w := f.do(t, http.MethodPost, "/api/v1/investment-targets", self, middleware.RoleMember, target)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, self.String(), body["member_id"], "members set targets for themselves")
	assert.True(t, mustDec(body["progress_percentage"].(string)).IsZero())
	id := body["id"].(string)

	target["target_type"] = "sacco_wide"
	w = f.do(t, http.MethodPost, "/api/v1/investment-targets", self, middleware.RoleMember, target)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/investment-targets/"+id, other, middleware.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/investments", self, middleware.RoleMember, map[string]interface{}{
		"investment_type": "special_deposit", "amount": "250.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	invID := decodeBody(t, w)["id"].(string)
	w = f.do(t, http.MethodPost, "/api/v1/investments/"+invID+"/confirm", f.admin, middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/members/"+self.String()+"/investment-targets", self, middleware.RoleMember, nil)
	require.Equal(t, http.StatusOK, w.Code)
	targets := decodeBody(t, w)["targets"].([]interface{})
	require.Len(t, targets, 1)
	assert.True(t, mustDec(targets[0].(map[string]interface{})["progress_percentage"].(string)).Equal(mustDec("25")))

	w = f.do(t, http.MethodPost, "/api/v1/investment-targets/"+id+"/deactivate", self, middleware.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodPost, "/api/v1/investment-targets/"+id+"/deactivate", f.admin, middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["is_active"])
}

func TestCollateralRoutes(t *testing.T) {
	f := newFixture(t)
	memberID := f.member(t)
	loanTypeID := uuid.New()
	f.store.AddLoanType(domain.LoanType{ID: loanTypeID, Name: "Asset", InterestRate: mustDec("12"), MaximumAmount: mustDec("100000"), MaximumPeriodMonths: 12, IsActive: true})

	w := f.do(t, http.MethodPost, "/api/v1/loan-applications", memberID, middleware.RoleMember, map[string]interface{}{
		"loan_type_id": loanTypeID, "amount_requested": "10000.00", "purpose": "pickup", "repayment_period_months": 12,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	appID := decodeBody(t, w)["id"].(string)
	path := "/api/v1/loan-applications/" + appID + "/collateral"

	pledge := map[string]interface{}{
		"collateral_type": "vehicle", "description": "KCA 123X", "estimated_value": "8000.00",
	}
	w = f.do(t, http.MethodPost, path, f.member(t), middleware.RoleMember, pledge)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, path, memberID, middleware.RoleMember, pledge)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodeBody(t, w)["id"].(string)

	verify := "/api/v1/collateral/" + id + "/verify"
	w = f.do(t, http.MethodPost, verify, memberID, middleware.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodPost, verify, f.admin, middleware.RoleAdmin, map[string]string{"notes": "logbook sighted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decodeBody(t, w)["is_verified"])
	w = f.do(t, http.MethodPost, verify, f.admin, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, path, memberID, middleware.RoleMember, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["collateral"], 1)
}
