package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"sacco/pkg/errors"
)

// Pinger is satisfied by *sqlx.DB and by the Redis client adapter in cmd/sacco.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Revoker is satisfied by *middleware.AuthMiddleware.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

type SystemHandler struct {
	base
	service   string
	checks    map[string]Pinger
	revoker   Revoker
	startTime time.Time
}

func NewSystemHandler(service string, checks map[string]Pinger, log Logger) *SystemHandler {
	return &SystemHandler{
		base:      base{logger: log},
		service:   service,
		checks:    checks,
		startTime: time.Now(),
	}
}

// WithRevoker enables POST /admin/tokens/revoke.
func (h *SystemHandler) WithRevoker(r Revoker) *SystemHandler {
	h.revoker = r
	return h
}

type dependencyStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"service":        h.service,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready pings every dependency. A slow dependency is degraded but still ready.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	ready := true
	deps := make(map[string]dependencyStatus, len(h.checks))
	for name, p := range h.checks {
		start := time.Now()
		err := p.PingContext(ctx)
		st := dependencyStatus{Status: "operational", LatencyMs: time.Since(start).Milliseconds()}
		switch {
		case err != nil:
			ready = false
			st.Status = "outage"
			st.Error = err.Error()
			h.logger.Error("Dependency ping failed", map[string]interface{}{"dependency": name, "error": err})
		case st.LatencyMs > 200:
			st.Status = "degraded"
		}
		deps[name] = st
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	h.respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      h.service,
		"dependencies": deps,
	})
}

type revokeRequest struct {
	Token string `json:"token"`
}

// RevokeToken blacklists a portal token, for example after a member reports
// a stolen device.
func (h *SystemHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req revokeRequest
	if !h.decode(w, r, &req) {
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(req.Token, "Bearer "))
	if token == "" {
		h.respondServiceError(w, r, errors.NewValidation("token", "is required"))
		return
	}
	if h.revoker == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Token revocation unavailable")
		return
	}
	if err := h.revoker.Revoke(r.Context(), token); err != nil {
		if errors.Is(err, errors.ErrRevocationOff) {
			h.respondError(w, http.StatusServiceUnavailable, "Token revocation unavailable")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	h.logger.Info("Token revoked", map[string]interface{}{"admin_id": adminID})
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}
