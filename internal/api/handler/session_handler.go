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

// SessionHandler exposes the participant-facing session lifecycle: start,
// time pings, answer autosave, progress polling and manual submit.
type SessionHandler struct {
	coordinator *service.CoordinatorService
	progress    *service.ProgressService
}

func NewSessionHandler(coordinator *service.CoordinatorService, progress *service.ProgressService) *SessionHandler {
	return &SessionHandler{coordinator: coordinator, progress: progress}
}

func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.startSession)
	r.Get("/", h.getProgress)
	r.Post("/time", h.recordTime)
	r.Post("/answers", h.saveAnswers)
	r.Post("/submit", h.manualSubmit)
}

func (h *SessionHandler) startSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	session, created, err := h.coordinator.Start(r.Context(), contestID, userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	common.RespondWithJSON(w, status, session)
}

func (h *SessionHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	view, err := h.progress.Progress(r.Context(), contestID, userID)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view)
}

type recordTimeRequest struct {
	Scope        model.TimeScope `json:"scope"`
	ItemID       string          `json:"item_id,omitempty"`
	DeltaSeconds int             `json:"delta_seconds"`
}

func (h *SessionHandler) recordTime(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	var req recordTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.progress.RecordTime(r.Context(), contestID, userID, req.Scope, req.ItemID, req.DeltaSeconds); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type saveAnswersRequest struct {
	Answers map[string][]int `json:"answers"`
}

func (h *SessionHandler) saveAnswers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	var req saveAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Answers == nil {
		common.RespondWithError(w, http.StatusBadRequest, "answers are required")
		return
	}

	if err := h.progress.SaveAnswers(r.Context(), contestID, userID, req.Answers); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type manualSubmitRequest struct {
	Answers map[string][]int `json:"answers,omitempty"`
}

func (h *SessionHandler) manualSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "missing user identity")
		return
	}
	contestID := chi.URLParam(r, "contestID")

	var req manualSubmitRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.RespondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.coordinator.ManualSubmit(r.Context(), contestID, userID, req.Answers)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, session)
}
