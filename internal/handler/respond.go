// Package handler exposes the ledger services over JSON/HTTP for the member
// portal and the back-office tools.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"sacco/internal/middleware"
	"sacco/pkg/errors"
)

// Logger is the subset of pkg/logger the handlers use.
type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
}

// base holds the response helpers every handler shares.
type base struct {
	logger Logger
}

func (b base) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (b base) respondError(w http.ResponseWriter, status int, message string) {
	b.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
func (b base) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *errors.ValidationError
		invalid     *errors.InvalidStateError
		limit       *errors.LimitExceededError
		eligibility *errors.EligibilityError
	)
	switch {
	case errors.As(err, &validation):
		b.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation_failed",
			"errors": map[string]string{validation.Field: validation.Message},
		})
	case errors.IsNotFound(err):
		b.respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		b.respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":   "invalid_state",
			"message": invalid.Error(),
			"current": invalid.Current,
		})
	case errors.As(err, &limit):
		b.respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     "limit_exceeded",
			"limit":     limit.LimitName,
			"maximum":   limit.Limit,
			"attempted": limit.Attempted,
		})
	case errors.As(err, &eligibility):
		b.respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      "not_eligible",
			"violations": eligibility.Violations,
		})
	case errors.IsConflict(err):
		w.Header().Set("Retry-After", "1")
		b.respondError(w, http.StatusConflict, "concurrent update, retry the request")
	default:
		b.logger.Error("Request failed", map[string]interface{}{
			"path":       r.URL.Path,
			"request_id": middleware.RequestIDFromContext(r.Context()),
			"error":      err,
		})
		b.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func (b base) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		b.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (b base) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		b.respondError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func (b base) actor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.ActorIDFromContext(r.Context())
	if !ok {
		b.respondError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return id, ok
}

func isAdmin(r *http.Request) bool {
	role, _ := middleware.RoleFromContext(r.Context())
	return role == middleware.RoleAdmin
}

// allowMember passes for admins and for the member acting on their own records.
func (b base) allowMember(w http.ResponseWriter, r *http.Request, memberID uuid.UUID) bool {
	if isAdmin(r) {
		return true
	}
	if id, ok := middleware.ActorIDFromContext(r.Context()); ok && id == memberID {
		return true
	}
	b.respondError(w, http.StatusForbidden, "Access denied")
	return false
}

type reasonRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}
