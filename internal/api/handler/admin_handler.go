package handler

import (
	"net/http"

	"contest_arena/internal/api/middleware"
	"contest_arena/internal/app/service"
	"contest_arena/internal/common"

	"github.com/go-chi/chi/v5"
)

// AdminHandler exposes the manual-review surface: submissions whose judging
// never reached the external judge.
type AdminHandler struct {
	submissions *service.SubmissionService
}

func NewAdminHandler(submissions *service.SubmissionService) *AdminHandler {
	return &AdminHandler{submissions: submissions}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Use(middleware.AdminOnly)
	r.Get("/contests/{contestID}/submissions/review", h.listNeedingReview)
}

func (h *AdminHandler) listNeedingReview(w http.ResponseWriter, r *http.Request) {
	contestID := chi.URLParam(r, "contestID")
	subs, err := h.submissions.ListNeedingReview(r.Context(), contestID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, subs)
}
