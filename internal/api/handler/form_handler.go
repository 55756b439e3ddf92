package handler

import (
	"encoding/json"
	"net/http"

	"contest_arena/internal/api/middleware"
	"contest_arena/internal/app/service"
	"contest_arena/internal/common"

	"github.com/go-chi/chi/v5"
)

type FormHandler struct {
	forms *service.FormService
}

func NewFormHandler(forms *service.FormService) *FormHandler {
	return &FormHandler{forms: forms}
}

func (h *FormHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.submitForm)
	r.Get("/", h.formStatus)
	// Evaluation is the grading pathway's ingestion point, admin-gated.
	r.With(middleware.AdminOnly).Post("/answers/{answerID}/evaluate", h.evaluateAnswer)
}

type submitFormRequest struct {
	Answers []service.FormAnswerInput `json:"answers"`
}

func (h *FormHandler) submitForm(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	var req submitFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	submission, err := h.forms.Submit(r.Context(), contestID, userID, req.Answers)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, submission)
}

func (h *FormHandler) formStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	status, err := h.forms.Status(r.Context(), contestID, userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, status)
}

type evaluateRequest struct {
	ManualScore float64 `json:"manual_score"`
	Feedback    string  `json:"feedback,omitempty"`
}

func (h *FormHandler) evaluateAnswer(w http.ResponseWriter, r *http.Request) {
	evaluatorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	answerID := chi.URLParam(r, "answerID")

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.forms.Evaluate(r.Context(), answerID, req.ManualScore, req.Feedback, evaluatorID); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "evaluated"})
}
