package handler

import (
	"net/http"

	"contest_arena/internal/api/middleware"
	"contest_arena/internal/app/service"
	"contest_arena/internal/common"

	"github.com/go-chi/chi/v5"
)

type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
}

func NewLeaderboardHandler(leaderboard *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// RegisterRoutes mounts the public read paths: leaderboards are visible
// without a token, individual results require one.
func (h *LeaderboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/contests/{contestID}/leaderboard", h.getLeaderboard)
	r.Get("/leaderboard/{contestSlug}", h.getLeaderboardBySlug)
	r.Group(func(authed chi.Router) {
		authed.Use(middleware.Authenticator)
		authed.Get("/contests/{contestID}/result", h.getResult)
	})
}

func (h *LeaderboardHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	contestID := chi.URLParam(r, "contestID")
	lb, err := h.leaderboard.Rank(r.Context(), contestID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, lb)
}

func (h *LeaderboardHandler) getLeaderboardBySlug(w http.ResponseWriter, r *http.Request) {
	contestSlug := chi.URLParam(r, "contestSlug")
	lb, err := h.leaderboard.RankBySlug(r.Context(), contestSlug)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, lb)
}

func (h *LeaderboardHandler) getResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	result, err := h.leaderboard.Result(r.Context(), contestID, userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}
