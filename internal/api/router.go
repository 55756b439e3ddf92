package api

import (
	"net/http"
	"time"

	"contest_arena/internal/api/handler"
	"contest_arena/internal/app/service"
	"contest_arena/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	coordinatorService *service.CoordinatorService,
	progressService *service.ProgressService,
	violationService *service.ViolationService,
	submissionService *service.SubmissionService,
	formService *service.FormService,
	leaderboardService *service.LeaderboardService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies token, puts claims in context. Searches "Authorization: Bearer T".
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		// Session lifecycle + progress (authenticated)
		sessionHandler := handler.NewSessionHandler(coordinatorService, progressService)
		v1.Route("/contests/{contestID}/session", sessionHandler.RegisterRoutes)

		// Proctoring violations (authenticated)
		violationHandler := handler.NewViolationHandler(violationService)
		v1.Route("/contests/{contestID}/violations", violationHandler.RegisterRoutes)

		// Coding submissions (authenticated)
		submissionHandler := handler.NewSubmissionHandler(submissionService)
		v1.Route("/contests/{contestID}/submissions", submissionHandler.RegisterRoutes)

		// Form section (authenticated; evaluation is admin-only inside)
		formHandler := handler.NewFormHandler(formService)
		v1.Route("/contests/{contestID}/forms", formHandler.RegisterRoutes)

		// Leaderboard + personal result (leaderboards public)
		leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService)
		v1.Group(leaderboardHandler.RegisterRoutes)

		// Manual-review queue (admin)
		adminHandler := handler.NewAdminHandler(submissionService)
		v1.Route("/admin", adminHandler.RegisterRoutes)
	})

	return r
}
