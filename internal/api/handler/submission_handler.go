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

type SubmissionHandler struct {
	submissions *service.SubmissionService
}

func NewSubmissionHandler(submissions *service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.createSubmission)
	r.Get("/", h.listMySubmissions)
	r.Get("/{submissionID}", h.getSubmission)
}

func (h *SubmissionHandler) createSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	var req service.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	submission, err := h.submissions.Create(r.Context(), contestID, userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	// 202: judging happens asynchronously on the worker
	common.RespondWithJSON(w, http.StatusAccepted, submission)
}

func (h *SubmissionHandler) listMySubmissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	subs, err := h.submissions.ListMine(r.Context(), contestID, userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}

func (h *SubmissionHandler) getSubmission(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	submissionID := chi.URLParam(r, "submissionID")

	sub, err := h.submissions.Get(r.Context(), submissionID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	if sub.UserID != userID {
		if role, _ := middleware.GetUserRoleFromContext(r.Context()); role != model.RoleAdmin {
			common.RespondWithError(w, http.StatusForbidden, "not your submission")
			return
		}
	}
	common.RespondWithJSON(w, http.StatusOK, sub)
}
