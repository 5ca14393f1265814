package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
)

type TokenHandler struct {
	Issuer   *core.TokenIssuer
	Redeemer *core.TokenRedeemer
}

type IssueRequest struct {
	WorkerID   string  `json:"workerId"`
	ActionType *string `json:"actionType,omitempty"`
	Force      bool    `json:"force,omitempty"`
}

type IssuedToken struct {
	TokenID    uuid.UUID        `json:"tokenId"`
	Secret     string           `json:"secret"`
	Action     model.ActionType `json:"action"`
	ValidFrom  time.Time        `json:"validFrom"`
	ValidUntil time.Time        `json:"validUntil"`
}

type RedeemRequest struct {
	Secret             string  `json:"secret"`
	ScannerID          *string `json:"scannerId,omitempty"`
	ExpectedActionType *string `json:"expectedActionType,omitempty"`
}

type RedeemFailure struct {
	Error          string `json:"error"`
	WorkerName     string `json:"workerName,omitempty"`
	IncidentLogged bool   `json:"incidentLogged"`
}

// Issue handles POST /tokens/issue on the authenticated administrative
// surface. The tenant comes from the auth middleware.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	workerID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		http.Error(w, "workerId must be a valid UUID", http.StatusBadRequest)
		return
	}

	tenantID, ok := TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "Missing tenant", http.StatusUnauthorized)
		return
	}

	action, err := parseAction(req.ActionType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tokens, err := h.Issuer.Issue(r.Context(), tenantID, workerID, action, req.Force)
	if errors.Is(err, core.ErrWorkerNotFound) {
		http.Error(w, "Worker not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, core.ErrWorkerDayOff) {
		http.Error(w, "Worker has a day off today", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "Service error issuing tokens", http.StatusInternalServerError)
		return
	}

	out := make([]IssuedToken, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, IssuedToken{
			TokenID:    t.ID,
			Secret:     t.Secret,
			Action:     t.Action,
			ValidFrom:  t.ValidFrom,
			ValidUntil: t.ValidUntil,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(out)
}

// Redeem handles POST /tokens/redeem. The surface is unauthenticated; the
// token secret itself is the credential.
func (h *TokenHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Secret == "" {
		http.Error(w, "secret is required", http.StatusBadRequest)
		return
	}

	expected, err := parseAction(req.ExpectedActionType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.Redeemer.Redeem(r.Context(), req.Secret, req.ScannerID, expected)

	var rejection *core.Rejection
	if errors.As(err, &rejection) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rejectionStatus(rejection.Reason))
		json.NewEncoder(w).Encode(RedeemFailure{
			Error:          string(rejection.Reason),
			WorkerName:     rejection.WorkerName,
			IncidentLogged: true,
		})
		return
	}
	if err != nil {
		http.Error(w, "Service error processing scan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// rejectionStatus maps a rejection reason to its HTTP status. Unknown tokens
// 404, authorization-shaped failures 403, state conflicts 409, the remaining
// logical and temporal violations 400.
func rejectionStatus(reason model.IncidentType) int {
	switch reason {
	case model.IncidentInvalidToken:
		return http.StatusNotFound
	case model.IncidentInactiveWorker, model.IncidentInvalidScanner:
		return http.StatusForbidden
	case model.IncidentReplay, model.IncidentAlreadyCheckedIn, model.IncidentAlreadyCheckedOut:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func parseAction(s *string) (*model.ActionType, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	switch model.ActionType(*s) {
	case model.ActionArrival:
		a := model.ActionArrival
		return &a, nil
	case model.ActionDeparture:
		a := model.ActionDeparture
		return &a, nil
	default:
		return nil, errors.New("actionType must be arrival or departure")
	}
}
