package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"sacco/internal/loan"
)

type LoanHandler struct {
	base
	service *loan.Service
	now     func() time.Time
}

func NewLoanHandler(service *loan.Service, log Logger) *LoanHandler {
	return &LoanHandler{
		base:    base{logger: log},
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req loan.ApplyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !isAdmin(r) {
		req.MemberID = actorID
	}

	app, err := h.service.Apply(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, app)
}

func (h *LoanHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, app.ApplicantID) {
		return
	}
	h.respondJSON(w, http.StatusOK, app)
}

// Eligibility lists every reason the application could not be approved now.
func (h *LoanHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, app.ApplicantID) {
		return
	}
	violations, err := h.service.CheckEligibility(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if violations == nil {
		violations = []string{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"eligible":   len(violations) == 0,
		"violations": violations,
	})
}

type approveBody struct {
	ApprovedAmount *decimal.Decimal `json:"amount_approved,omitempty"`
	InterestRate   *decimal.Decimal `json:"interest_rate,omitempty"`
	Notes          string           `json:"review_notes"`
}

func (h *LoanHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body approveBody
	if !h.decode(w, r, &body) {
		return
	}

	app, err := h.service.Approve(r.Context(), &loan.ApproveRequest{
		ApplicationID:  id,
		AdminID:        adminID,
		ApprovedAmount: body.ApprovedAmount,
		InterestRate:   body.InterestRate,
		Notes:          body.Notes,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, app)
}

func (h *LoanHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	app, err := h.service.Reject(r.Context(), id, adminID, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, app)
}

// Cancel withdraws an application. Applicants may cancel their own.
func (h *LoanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, app.ApplicantID) {
		return
	}
	var req reasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	app, err = h.service.Cancel(r.Context(), id, actorID, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, app)
}

type disburseBody struct {
	Reference string           `json:"disbursement_reference"`
	Cost      *decimal.Decimal `json:"disbursement_cost,omitempty"`
}

func (h *LoanHandler) Disburse(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body disburseBody
	if !h.decode(w, r, &body) {
		return
	}
	l, err := h.service.Disburse(r.Context(), &loan.DisburseRequest{
		ApplicationID: id,
		AdminID:       adminID,
		Reference:     body.Reference,
		Cost:          body.Cost,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, l)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	l, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, l.BorrowerID) {
		return
	}
	h.respondJSON(w, http.StatusOK, l)
}

func (h *LoanHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	l, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, l.BorrowerID) {
		return
	}
	rows, err := h.service.Schedule(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"schedule": rows})
}

func (h *LoanHandler) RegenerateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	rows, err := h.service.RegenerateSchedule(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"schedule": rows})
}

func (h *LoanHandler) AddGuarantor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, app.ApplicantID) {
		return
	}
	var req loan.GuaranteeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ApplicationID = id

	g, err := h.service.AddGuarantor(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, g)
}

func (h *LoanHandler) Guarantors(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, app.ApplicantID) {
		return
	}
	gs, err := h.service.Guarantees(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"guarantors": gs})
}

type respondGuaranteeBody struct {
	Accept bool   `json:"accept"`
	Notes  string `json:"notes"`
}

// RespondGuarantee lets the authenticated guarantor accept or decline.
func (h *LoanHandler) RespondGuarantee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	guarantorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body respondGuaranteeBody
	if !h.decode(w, r, &body) {
		return
	}
	g, err := h.service.RespondGuarantee(r.Context(), id, guarantorID, body.Accept, body.Notes)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, g)
}

func (h *LoanHandler) WithdrawGuarantee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	guarantorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	g, err := h.service.WithdrawGuarantee(r.Context(), id, guarantorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, g)
}

func (h *LoanHandler) ApplyPenalty(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req loan.PenaltyRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.LoanID = id
	req.AdminID = adminID

	p, err := h.service.ApplyPenalty(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, p)
}

func (h *LoanHandler) WaivePenalty(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.WaivePenalty(r.Context(), id, adminID, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

// RefreshStatuses runs the overdue/default sweep on demand.
func (h *LoanHandler) RefreshStatuses(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.RefreshStatuses(r.Context(), h.now())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *LoanHandler) AddCollateral(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, app.ApplicantID) {
		return
	}
	var req loan.CollateralRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ApplicationID = id

	c, err := h.service.AddCollateral(r.Context(), &req, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, c)
}

func (h *LoanHandler) Collateral(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, app.ApplicantID) {
		return
	}
	cs, err := h.service.Collateral(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"collateral": cs})
}

func (h *LoanHandler) VerifyCollateral(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.service.VerifyCollateral(r.Context(), id, adminID, req.Notes)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}
