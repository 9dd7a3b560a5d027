package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ataa-platform/be-aid-ledger/internal/apperr"
	"github.com/ataa-platform/be-aid-ledger/internal/repository"
	"github.com/ataa-platform/be-aid-ledger/internal/service"
)

// HTTPHandler exposes the ledger over JSON HTTP.
type HTTPHandler struct {
	dispatches    *service.DispatchService
	contributions *service.ContributionService
	rules         *service.RuleService
	log           zerolog.Logger
	mux           *http.ServeMux
}

// NewHTTPHandler creates the handler and registers all routes.
func NewHTTPHandler(
	dispatches *service.DispatchService,
	contributions *service.ContributionService,
	rules *service.RuleService,
	log zerolog.Logger,
) *HTTPHandler {
	h := &HTTPHandler{
		dispatches:    dispatches,
		contributions: contributions,
		rules:         rules,
		log:           log,
		mux:           http.NewServeMux(),
	}
	h.routes()
	return h
}

// Handler returns the route multiplexer.
func (h *HTTPHandler) Handler() http.Handler {
	return h.mux
}

func (h *HTTPHandler) routes() {
	h.mux.HandleFunc("POST /api/v1/dispatches", h.DispatchAid)

	h.mux.HandleFunc("GET /api/v1/associations/{id}/budget", h.GetBudget)
	h.mux.HandleFunc("GET /api/v1/associations/{id}/stats", h.GetDispatchStats)
	h.mux.HandleFunc("GET /api/v1/associations/{id}/ledger", h.VerifyLedger)
	h.mux.HandleFunc("GET /api/v1/associations/{id}/eligible-beneficiaries", h.ListEligible)

	h.mux.HandleFunc("POST /api/v1/contributions", h.CreateContribution)
	h.mux.HandleFunc("GET /api/v1/contributions", h.ListContributions)
	h.mux.HandleFunc("GET /api/v1/contributions/{id}", h.GetContribution)
	h.mux.HandleFunc("POST /api/v1/contributions/{id}/approve", h.ApproveContribution)
	h.mux.HandleFunc("POST /api/v1/contributions/{id}/reject", h.RejectContribution)

	h.mux.HandleFunc("POST /api/v1/rules", h.CreateRule)
	h.mux.HandleFunc("GET /api/v1/rules", h.ListRules)
	h.mux.HandleFunc("POST /api/v1/rules/{id}/toggle", h.ToggleRule)
	h.mux.HandleFunc("DELETE /api/v1/rules/{id}", h.DeleteRule)

	h.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

type errorBody struct {
	Code    apperr.Code    `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, err error) {
	body := errorBody{Code: apperr.CodeOf(err), Message: err.Error()}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Details = appErr.Details
	}
	h.respondJSON(w, statusFor(body.Code), map[string]errorBody{"error": body})
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeCrossTenant:
		return http.StatusForbidden
	case apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case apperr.CodeInvalidState, apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeInsufficientBudget,
		apperr.CodeCooldownActive,
		apperr.CodeAmountExceedsLimit,
		apperr.CodeFamilyTooSmall:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *HTTPHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, apperr.InvalidInput("body", "invalid JSON"))
		return false
	}
	return true
}

// actorID resolves the audit actor: explicit body field first, then the
// X-Actor-ID header supplied by the gateway.
func actorID(r *http.Request, bodyActor string) string {
	if bodyActor != "" {
		return bodyActor
	}
	return r.Header.Get("X-Actor-ID")
}

// ── dispatches ───────────────────────────────────────────────────────────────

type dispatchAidRequest struct {
	AssociationID string  `json:"association_id"`
	BeneficiaryID string  `json:"beneficiary_id"`
	Amount        int64   `json:"amount"`
	AidType       string  `json:"aid_type"`
	FamilyID      *string `json:"family_id"`
	Notes         *string `json:"notes"`
	ActorID       string  `json:"actor_id"`
}

// DispatchAid handles dispatch aid HTTP requests.
func (h *HTTPHandler) DispatchAid(w http.ResponseWriter, r *http.Request) {
	var req dispatchAidRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	dispatch, err := h.dispatches.DispatchAid(r.Context(), &service.DispatchAidRequest{
		AssociationID: req.AssociationID,
		BeneficiaryID: req.BeneficiaryID,
		Amount:        req.Amount,
		AidType:       repository.AidType(req.AidType),
		FamilyID:      req.FamilyID,
		Notes:         req.Notes,
		ActorID:       actorID(r, req.ActorID),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, dispatch)
}

// GetBudget handles budget HTTP requests.
func (h *HTTPHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := h.dispatches.GetBudget(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, budget)
}

// GetDispatchStats handles dispatch stats HTTP requests.
func (h *HTTPHandler) GetDispatchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dispatches.GetDispatchStats(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

// VerifyLedger handles ledger verification HTTP requests.
func (h *HTTPHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	report, err := h.dispatches.VerifyLedger(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"balance":                report.Balance,
		"approved_contributions": report.ApprovedContributions,
		"completed_dispatches":   report.CompletedDispatches,
		"consistent":             report.Consistent(),
	})
}

// ListEligible handles eligible-beneficiary listing HTTP requests.
func (h *HTTPHandler) ListEligible(w http.ResponseWriter, r *http.Request) {
	list, err := h.dispatches.ListEligible(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"beneficiaries": list})
}

// ── contributions ────────────────────────────────────────────────────────────

type createContributionRequest struct {
	AssociationID string  `json:"association_id"`
	Amount        int64   `json:"amount"`
	Currency      string  `json:"currency"`
	DonorID       *string `json:"donor_id"`
	DonorName     *string `json:"donor_name"`
	DonorEmail    *string `json:"donor_email"`
	Type          *string `json:"type"`
	Method        *string `json:"method"`
	Notes         *string `json:"notes"`
}

// CreateContribution handles create contribution HTTP requests.
func (h *HTTPHandler) CreateContribution(w http.ResponseWriter, r *http.Request) {
	var req createContributionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	c, err := h.contributions.Create(r.Context(), &service.CreateContributionRequest{
		AssociationID: req.AssociationID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		DonorID:       req.DonorID,
		DonorName:     req.DonorName,
		DonorEmail:    req.DonorEmail,
		Type:          req.Type,
		Method:        req.Method,
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, c)
}

// GetContribution handles get contribution HTTP requests.
func (h *HTTPHandler) GetContribution(w http.ResponseWriter, r *http.Request) {
	c, err := h.contributions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

// ListContributions handles list contributions HTTP requests.
func (h *HTTPHandler) ListContributions(w http.ResponseWriter, r *http.Request) {
	associationID := r.URL.Query().Get("association_id")
	if associationID == "" {
		h.respondError(w, apperr.InvalidInput("association_id", "query parameter is required"))
		return
	}

	var status *repository.ContributionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := repository.ContributionStatus(raw)
		status = &st
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	contributions, total, err := h.contributions.List(r.Context(), associationID, status, page, pageSize)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"contributions": contributions,
		"total":         total,
		"page":          page,
		"page_size":     pageSize,
	})
}

// ApproveContribution handles approve contribution HTTP requests.
func (h *HTTPHandler) ApproveContribution(w http.ResponseWriter, r *http.Request) {
	c, err := h.contributions.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

type rejectContributionRequest struct {
	Reason *string `json:"reason"`
}

// RejectContribution handles reject contribution HTTP requests.
func (h *HTTPHandler) RejectContribution(w http.ResponseWriter, r *http.Request) {
	var req rejectContributionRequest
	if r.ContentLength > 0 && !h.decodeJSON(w, r, &req) {
		return
	}

	c, err := h.contributions.Reject(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, c)
}

// ── rules ────────────────────────────────────────────────────────────────────

type createRuleRequest struct {
	AssociationID string  `json:"association_id"`
	Type          string  `json:"type"`
	Value         int64   `json:"value"`
	Unit          *string `json:"unit"`
	IsActive      *bool   `json:"is_active"`
}

// CreateRule handles create rule HTTP requests.
func (h *HTTPHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.rules.Create(r.Context(), &service.CreateRuleRequest{
		AssociationID: req.AssociationID,
		Type:          repository.RuleType(req.Type),
		Value:         req.Value,
		Unit:          req.Unit,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, rule)
}

// ListRules handles list rules HTTP requests.
func (h *HTTPHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	associationID := r.URL.Query().Get("association_id")
	if associationID == "" {
		h.respondError(w, apperr.InvalidInput("association_id", "query parameter is required"))
		return
	}

	rules, err := h.rules.List(r.Context(), associationID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

type toggleRuleRequest struct {
	IsActive bool `json:"is_active"`
}

// ToggleRule handles rule toggle HTTP requests.
func (h *HTTPHandler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	var req toggleRuleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	rule, err := h.rules.Toggle(r.Context(), r.PathValue("id"), req.IsActive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, rule)
}

// DeleteRule handles rule delete HTTP requests.
func (h *HTTPHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusNoContent, nil)
}
