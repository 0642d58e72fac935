package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"sacco/internal/middleware"
)

// Routes groups the handlers served under /api/v1.
type Routes struct {
	Investments *InvestmentHandler
	Loans       *LoanHandler
	Repayments  *RepaymentHandler
	Ledger      *LedgerHandler
	Dividends   *DividendHandler
	System      *SystemHandler
}

// Register mounts the health checks on r and the API behind protect, which must
// put the actor on the request context (see middleware.AuthMiddleware).
func (rt Routes) Register(r *mux.Router, protect ...mux.MiddlewareFunc) {
	r.HandleFunc("/health", rt.System.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", rt.System.Ready).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(protect...)

	adminOnly := middleware.RequireRole(middleware.RoleAdmin)
	admin := func(f http.HandlerFunc) http.Handler { return adminOnly(f) }

	inv := rt.Investments
	api.HandleFunc("/investments", inv.Record).Methods(http.MethodPost)
	api.Handle("/investments/{id}/confirm", admin(inv.Confirm)).Methods(http.MethodPost)
	api.Handle("/investments/{id}/reject", admin(inv.Reject)).Methods(http.MethodPost)
	api.HandleFunc("/members/{memberID}/summary", inv.Summary).Methods(http.MethodGet)
	api.Handle("/members/{memberID}/summary/refresh", admin(inv.RefreshSummary)).Methods(http.MethodPost)
	api.Handle("/admin/rankings", admin(inv.Rank)).Methods(http.MethodPost)
	api.HandleFunc("/investment-targets", inv.CreateTarget).Methods(http.MethodPost)
	api.HandleFunc("/investment-targets/{id}", inv.GetTarget).Methods(http.MethodGet)
	api.Handle("/investment-targets/{id}/deactivate", admin(inv.DeactivateTarget)).Methods(http.MethodPost)
	api.HandleFunc("/members/{memberID}/investment-targets", inv.ListTargets).Methods(http.MethodGet)

	ln := rt.Loans
	api.HandleFunc("/loan-applications", ln.Apply).Methods(http.MethodPost)
	api.HandleFunc("/loan-applications/{id}", ln.GetApplication).Methods(http.MethodGet)
	api.HandleFunc("/loan-applications/{id}/eligibility", ln.Eligibility).Methods(http.MethodGet)
	api.Handle("/loan-applications/{id}/approve", admin(ln.Approve)).Methods(http.MethodPost)
	api.Handle("/loan-applications/{id}/reject", admin(ln.Reject)).Methods(http.MethodPost)
	api.HandleFunc("/loan-applications/{id}/cancel", ln.Cancel).Methods(http.MethodPost)
	api.Handle("/loan-applications/{id}/disburse", admin(ln.Disburse)).Methods(http.MethodPost)
	api.HandleFunc("/loan-applications/{id}/guarantors", ln.AddGuarantor).Methods(http.MethodPost)
	api.HandleFunc("/loan-applications/{id}/guarantors", ln.Guarantors).Methods(http.MethodGet)
	api.HandleFunc("/loan-applications/{id}/collateral", ln.AddCollateral).Methods(http.MethodPost)
	api.HandleFunc("/loan-applications/{id}/collateral", ln.Collateral).Methods(http.MethodGet)
	api.Handle("/collateral/{id}/verify", admin(ln.VerifyCollateral)).Methods(http.MethodPost)
	api.HandleFunc("/guarantees/{id}/respond", ln.RespondGuarantee).Methods(http.MethodPost)
	api.HandleFunc("/guarantees/{id}/withdraw", ln.WithdrawGuarantee).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}", ln.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}/schedule", ln.Schedule).Methods(http.MethodGet)
	api.Handle("/loans/{id}/schedule", admin(ln.RegenerateSchedule)).Methods(http.MethodPut)
	api.Handle("/loans/{id}/penalties", admin(ln.ApplyPenalty)).Methods(http.MethodPost)
	api.Handle("/penalties/{id}/waive", admin(ln.WaivePenalty)).Methods(http.MethodPost)
	api.Handle("/admin/loan-statuses", admin(ln.RefreshStatuses)).Methods(http.MethodPost)

	rp := rt.Repayments
	api.HandleFunc("/loan-payments", rp.Submit).Methods(http.MethodPost)
	api.HandleFunc("/loan-payments/{id}", rp.Get).Methods(http.MethodGet)
	api.Handle("/loan-payments/{id}/confirm", admin(rp.Confirm)).Methods(http.MethodPost)
	api.Handle("/loan-payments/{id}/reject", admin(rp.Reject)).Methods(http.MethodPost)

	lg := rt.Ledger
	api.Handle("/transactions", admin(lg.Record)).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", lg.Get).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}/receipt", lg.Receipt).Methods(http.MethodGet)
	api.Handle("/transactions/{id}/complete", admin(lg.Complete)).Methods(http.MethodPost)
	api.Handle("/transactions/{id}/fail", admin(lg.Fail)).Methods(http.MethodPost)
	api.Handle("/transactions/{id}/cancel", admin(lg.Cancel)).Methods(http.MethodPost)
	api.Handle("/transactions/{id}/reverse", admin(lg.Reverse)).Methods(http.MethodPost)
	api.HandleFunc("/members/{memberID}/balance", lg.Balance).Methods(http.MethodGet)
	api.Handle("/members/{memberID}/balance/recompute", admin(lg.RecomputeBalance)).Methods(http.MethodPost)
	api.HandleFunc("/fees/{feeType}/quote", lg.QuoteFee).Methods(http.MethodGet)
	api.Handle("/fees/charge", admin(lg.ChargeFee)).Methods(http.MethodPost)
	api.Handle("/recurring-transactions", admin(lg.CreateRecurring)).Methods(http.MethodPost)
	api.Handle("/recurring-transactions/{id}/pause", admin(lg.PauseRecurring)).Methods(http.MethodPost)
	api.Handle("/recurring-transactions/{id}/resume", admin(lg.ResumeRecurring)).Methods(http.MethodPost)
	api.Handle("/recurring-transactions/{id}/cancel", admin(lg.CancelRecurring)).Methods(http.MethodPost)
	api.Handle("/recurring-transactions/{id}/execute", admin(lg.ExecuteRecurring)).Methods(http.MethodPost)
	api.HandleFunc("/members/{memberID}/recurring-transactions", lg.ListRecurring).Methods(http.MethodGet)
	api.Handle("/admin/recurring-transactions/run", admin(lg.RunRecurring)).Methods(http.MethodPost)

	api.Handle("/admin/tokens/revoke", admin(rt.System.RevokeToken)).Methods(http.MethodPost)

	dv := rt.Dividends
	api.Handle("/dividends/{year}", admin(dv.List)).Methods(http.MethodGet)
	api.Handle("/dividends/{year}/calculate", admin(dv.Calculate)).Methods(http.MethodPost)
	api.Handle("/dividends/{year}/pay", admin(dv.Pay)).Methods(http.MethodPost)
}
