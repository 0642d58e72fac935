package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"sacco/internal/domain"
	"sacco/internal/ledger"
)

func (h *LedgerHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req ledger.RecurringRequest
	if !h.decode(w, r, &req) {
		return
	}
	rt, err := h.service.CreateRecurring(r.Context(), &req, adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, rt)
}

func (h *LedgerHandler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathUUID(w, r, "memberID")
	if !ok || !h.allowMember(w, r, memberID) {
		return
	}
	list, err := h.service.ListRecurring(r.Context(), memberID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"recurring_transactions": list})
}

func (h *LedgerHandler) PauseRecurring(w http.ResponseWriter, r *http.Request) {
	h.moveRecurring(w, r, h.service.PauseRecurring)
}

func (h *LedgerHandler) ResumeRecurring(w http.ResponseWriter, r *http.Request) {
	h.moveRecurring(w, r, h.service.ResumeRecurring)
}

func (h *LedgerHandler) CancelRecurring(w http.ResponseWriter, r *http.Request) {
	h.moveRecurring(w, r, h.service.CancelRecurring)
}

type recurringOp func(ctx context.Context, id, actorID uuid.UUID) (*domain.RecurringTransaction, error)

func (h *LedgerHandler) moveRecurring(w http.ResponseWriter, r *http.Request, op recurringOp) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	rt, err := op(r.Context(), id, adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rt)
}

// ExecuteRecurring runs one template now, ahead of its schedule.
func (h *LedgerHandler) ExecuteRecurring(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	txn, err := h.service.ExecuteRecurring(r.Context(), id, &adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, txn)
}

// RunRecurring executes every due template, as the scheduler does.
func (h *LedgerHandler) RunRecurring(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ExecuteDueRecurring(r.Context(), h.now())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]int{"executed": n})
}
