package handler

import (
	"net/http"

	"sacco/internal/loan"
	"sacco/internal/repayment"
)

type RepaymentHandler struct {
	base
	service *repayment.Service
	loans   *loan.Service
}

func NewRepaymentHandler(service *repayment.Service, loans *loan.Service, log Logger) *RepaymentHandler {
	return &RepaymentHandler{base: base{logger: log}, service: service, loans: loans}
}

// Submit records a pending repayment. Borrowers submit against their own loans.
func (h *RepaymentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req repayment.SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}
	l, err := h.loans.GetLoan(r.Context(), req.LoanID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, l.BorrowerID) {
		return
	}

	p, err := h.service.Submit(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, p)
}

func (h *RepaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	l, err := h.loans.GetLoan(r.Context(), p.LoanID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, l.BorrowerID) {
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *RepaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.service.Confirm(r.Context(), id, adminID, req.Notes)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

func (h *RepaymentHandler) Reject(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.service.Reject(r.Context(), id, adminID, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}
