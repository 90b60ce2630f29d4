package server

import (
	"encoding/json"
	"net/http"
	"time"

	"mercator-hq/ganymede/pkg/quota"
)

// quotaRequest is the request body shared by the check and record endpoints.
type quotaRequest struct {
	UserID string `json:"user_id"`
}

// recordResponse is the response body for the record endpoint.
type recordResponse struct {
	Recorded bool `json:"recorded"`
}

// resetTimeResponse is the response body for the reset-time endpoint.
type resetTimeResponse struct {
	NextReset time.Time `json:"next_reset"`
}

// errorResponse is the JSON body for request-level errors.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func decodeQuotaRequest(w http.ResponseWriter, r *http.Request) (*quotaRequest, bool) {
	var req quotaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return nil, false
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return nil, false
	}
	return &req, true
}

// CheckHandler answers whether a user may issue another query today.
//
// The response is always 200 with a quota.CheckResult body: when the count
// cannot be obtained the body carries the fail-closed answer rather than the
// endpoint returning a 5xx, so callers get one uniform decision shape.
type CheckHandler struct {
	service *quota.Service
}

// NewCheckHandler creates a new quota check handler.
func NewCheckHandler(svc *quota.Service) *CheckHandler {
	return &CheckHandler{service: svc}
}

// ServeHTTP implements http.Handler.
func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	req, ok := decodeQuotaRequest(w, r)
	if !ok {
		return
	}

	result := h.service.Check(r.Context(), req.UserID)
	writeJSON(w, http.StatusOK, result)
}

// RecordHandler records a completed query for a user.
//
// Recording is at-least-once: when the backend is unreachable the record is
// queued locally for background delivery and the response reports
// recorded=false. The request itself still succeeds.
type RecordHandler struct {
	service *quota.Service
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(svc *quota.Service) *RecordHandler {
	return &RecordHandler{service: svc}
}

// ServeHTTP implements http.Handler.
func (h *RecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	req, ok := decodeQuotaRequest(w, r)
	if !ok {
		return
	}

	recorded := h.service.RecordReliable(r.Context(), req.UserID)
	writeJSON(w, http.StatusOK, recordResponse{Recorded: recorded})
}

// ResetTimeHandler reports the next daily reset instant.
type ResetTimeHandler struct {
	service *quota.Service
}

// NewResetTimeHandler creates a new reset-time handler.
func NewResetTimeHandler(svc *quota.Service) *ResetTimeHandler {
	return &ResetTimeHandler{service: svc}
}

// ServeHTTP implements http.Handler.
func (h *ResetTimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, resetTimeResponse{NextReset: h.service.NextResetTime()})
}

// HealthHandler handles liveness probes.
type HealthHandler struct {
	service *quota.Service
}

// NewHealthHandler creates a new health check handler.
func NewHealthHandler(svc *quota.Service) *HealthHandler {
	return &HealthHandler{service: svc}
}

// ServeHTTP implements http.Handler for liveness checks.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"pending":   h.service.PendingCount(),
		"timestamp": time.Now().Unix(),
	})
}
