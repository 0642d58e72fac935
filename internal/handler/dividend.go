package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"sacco/internal/dividend"
)

type DividendHandler struct {
	base
	service *dividend.Service
}

func NewDividendHandler(service *dividend.Service, log Logger) *DividendHandler {
	return &DividendHandler{base: base{logger: log}, service: service}
}

type calculateBody struct {
	ShareCapitalRate      decimal.Decimal `json:"share_capital_rate"`
	MonthlyInvestmentRate decimal.Decimal `json:"monthly_investment_rate"`
}

func (h *DividendHandler) year(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid year")
		return 0, false
	}
	return year, true
}

func (h *DividendHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body calculateBody
	if !h.decode(w, r, &body) {
		return
	}
	report, err := h.service.CalculateForYear(r.Context(), year, body.ShareCapitalRate, body.MonthlyInvestmentRate, adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, report)
}

func (h *DividendHandler) Pay(w http.ResponseWriter, r *http.Request) {
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	batch, err := h.service.PayDividends(r.Context(), year, adminID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, batch)
}

func (h *DividendHandler) List(w http.ResponseWriter, r *http.Request) {
	year, ok := h.year(w, r)
	if !ok {
		return
	}
	rows, err := h.service.ForYear(r.Context(), year)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"year": year, "dividends": rows})
}
