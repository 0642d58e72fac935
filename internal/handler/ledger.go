package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"sacco/internal/domain"
	"sacco/internal/ledger"
)

type LedgerHandler struct {
	base
	service *ledger.Service
	now     func() time.Time
}

func NewLedgerHandler(service *ledger.Service, log Logger) *LedgerHandler {
	return &LedgerHandler{
		base:    base{logger: log},
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record files a pending transaction for the back office to complete.
func (h *LedgerHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req ledger.RecordRequest
	if !h.decode(w, r, &req) {
		return
	}
	txn, err := h.service.Record(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, txn)
}

func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	txn, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, txn.MemberID) {
		return
	}
	h.respondJSON(w, http.StatusOK, txn)
}

func (h *LedgerHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Complete, func(req reasonRequest) string { return req.Notes })
}

func (h *LedgerHandler) Fail(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Fail, func(req reasonRequest) string { return req.Reason })
}

func (h *LedgerHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel, func(req reasonRequest) string { return req.Reason })
}

func (h *LedgerHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reverse, func(req reasonRequest) string { return req.Reason })
}

type ledgerOp func(ctx context.Context, id, actorID uuid.UUID, text string) (*domain.Transaction, error)

func (h *LedgerHandler) transition(w http.ResponseWriter, r *http.Request, op ledgerOp, text func(reasonRequest) string) {
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
	txn, err := op(r.Context(), id, adminID, text(req))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, txn)
}

func (h *LedgerHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	txn, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.allowMember(w, r, txn.MemberID) {
		return
	}
	rcpt, err := h.service.Receipt(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rcpt)
}

func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathUUID(w, r, "memberID")
	if !ok || !h.allowMember(w, r, memberID) {
		return
	}
	bal, err := h.service.GetBalance(r.Context(), memberID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, bal)
}

// RecomputeBalance rebuilds one member's balance from the posted history.
func (h *LedgerHandler) RecomputeBalance(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathUUID(w, r, "memberID")
	if !ok {
		return
	}
	bal, err := h.service.RecomputeMemberBalance(r.Context(), memberID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, bal)
}

func (h *LedgerHandler) QuoteFee(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || !amount.IsPositive() {
		h.respondError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}
	feeType := mux.Vars(r)["feeType"]
	fee, err := h.service.QuoteFee(r.Context(), feeType, amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"fee_type": feeType,
		"amount":   amount,
		"fee":      fee,
	})
}

func (h *LedgerHandler) ChargeFee(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req ledger.ChargeFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.AdminID = adminID

	txn, err := h.service.ChargeFee(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, txn)
}
