package handler

import (
	"net/http"

	"sacco/internal/domain"
	"sacco/internal/investment"
)

type InvestmentHandler struct {
	base
	service *investment.Service
}

func NewInvestmentHandler(service *investment.Service, log Logger) *InvestmentHandler {
	return &InvestmentHandler{base: base{logger: log}, service: service}
}

// Record files a pending contribution. Members record for themselves; the
// back office may record for anyone.
func (h *InvestmentHandler) Record(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req investment.RecordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !isAdmin(r) {
		req.MemberID = actorID
	}

	inv, err := h.service.RecordInvestment(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, inv)
}

func (h *InvestmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
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

	inv, err := h.service.ConfirmInvestment(r.Context(), id, adminID, req.Notes)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

func (h *InvestmentHandler) Reject(w http.ResponseWriter, r *http.Request) {
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

	inv, err := h.service.RejectInvestment(r.Context(), id, adminID, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, inv)
}

func (h *InvestmentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathUUID(w, r, "memberID")
	if !ok || !h.allowMember(w, r, memberID) {
		return
	}
	sum, err := h.service.GetSummary(r.Context(), memberID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sum)
}

// RefreshSummary forces a recomputation for one member.
func (h *InvestmentHandler) RefreshSummary(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathUUID(w, r, "memberID")
	if !ok {
		return
	}
	sum, err := h.service.UpdateSummary(r.Context(), memberID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, sum)
}

func (h *InvestmentHandler) Rank(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.RankMembers(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.logger.Info("Members ranked", map[string]interface{}{"ranked": n})
	h.respondJSON(w, http.StatusOK, map[string]int{"ranked": n})
}

// CreateTarget sets a savings goal. Members may only set personal targets
// for themselves.
func (h *InvestmentHandler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req investment.TargetRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !isAdmin(r) {
		if req.TargetType != domain.TargetTypePersonal {
			h.respondError(w, http.StatusForbidden, "Access denied")
			return
		}
		req.MemberID = &actorID
	}

	t, err := h.service.CreateTarget(r.Context(), &req, actorID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, t)
}

func (h *InvestmentHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.service.GetTarget(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if t.MemberID != nil && !h.allowMember(w, r, *t.MemberID) {
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}

func (h *InvestmentHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.pathUUID(w, r, "memberID")
	if !ok || !h.allowMember(w, r, memberID) {
		return
	}
	list, err := h.service.ListTargets(r.Context(), memberID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"targets": list})
}

func (h *InvestmentHandler) DeactivateTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	t, err := h.service.DeactivateTarget(r.Context(), id, adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, t)
}
