package handler

import (
	"encoding/json"
	"net/http"

	"contest_arena/internal/api/middleware"
	"contest_arena/internal/app/service"
	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ViolationHandler struct {
	violations *service.ViolationService
}

func NewViolationHandler(violations *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{violations: violations}
}

func (h *ViolationHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.recordViolation)
	r.Get("/", h.listViolations)
}

type recordViolationRequest struct {
	Type    model.ViolationType `json:"type"`
	Details string              `json:"details,omitempty"`
}

func (h *ViolationHandler) recordViolation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	var req recordViolationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = model.ViolationOther
	}

	outcome, err := h.violations.RecordViolation(r.Context(), contestID, userID, req.Type, req.Details)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, outcome)
}

func (h *ViolationHandler) listViolations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	violations, err := h.violations.History(r.Context(), contestID, userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, violations)
}
