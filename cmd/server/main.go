package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contest_arena/internal/api"
	"contest_arena/internal/app/service"
	"contest_arena/internal/app/worker"
	"contest_arena/internal/common/security"
	"contest_arena/internal/domain/repository"
	"contest_arena/internal/platform/config"
	"contest_arena/internal/platform/database"
	"contest_arena/internal/platform/judge"
	"contest_arena/internal/platform/logger"
	"contest_arena/internal/platform/queue"

	"github.com/rs/zerolog/log"
)

func main() {
	// 1. Load Configuration & Logging
	logger.Init()
	config.Load()
	log.Info().Msg("configuration loaded")

	// 2. Initialize JWT
	security.InitJWT()

	// 3. Initialize Database
	database.Connect()
	defer database.Close()

	// 4. Initialize Redis
	queue.ConnectRedis()
	defer queue.CloseRedis()

	// 5. Initialize Repositories
	sessionRepo := repository.NewPgSessionRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	violationRepo := repository.NewPgViolationRepository(database.DB)
	resultRepo := repository.NewPgResultRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	formRepo := repository.NewPgFormRepository(database.DB)

	// 6. Initialize Services
	scoringService := service.NewScoringService(contestRepo, submissionRepo)
	coordinatorService := service.NewCoordinatorService(
		sessionRepo, contestRepo, resultRepo, scoringService, database.DB,
		logger.Component("coordinator"),
	)
	progressService := service.NewProgressService(sessionRepo, contestRepo)
	violationService := service.NewViolationService(
		sessionRepo, violationRepo, coordinatorService,
		config.AppConfig.WarningLimit, logger.Component("violations"),
	)
	submissionService := service.NewSubmissionService(
		submissionRepo, contestRepo, sessionRepo, queue.RDB,
		config.AppConfig.JudgeQueueName, logger.Component("submissions"),
	)
	formService := service.NewFormService(formRepo, sessionRepo, logger.Component("forms"))
	leaderboardService := service.NewLeaderboardService(
		resultRepo, contestRepo, formRepo, queue.RDB,
		config.AppConfig.LeaderboardCacheTTL, logger.Component("leaderboard"),
	)

	// 7. Initialize Workers (as goroutines)
	judgeClient := judge.NewClient(config.AppConfig.JudgeBaseURL, config.AppConfig.JudgeTimeout)
	judgeWorker := worker.NewJudgeWorker(
		queue.RDB, judgeClient, submissionRepo, contestRepo, database.DB,
		config.AppConfig.JudgeQueueName, config.AppConfig.JudgeRetryDelay,
		logger.Component("judge_worker"),
	)
	expirySweeper := worker.NewExpirySweeper(
		sessionRepo, contestRepo, coordinatorService,
		config.AppConfig.SweepInterval, config.AppConfig.GracePeriod,
		logger.Component("expiry_sweeper"),
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go judgeWorker.Start(workerCtx)
	go expirySweeper.Start(workerCtx)

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(
		coordinatorService, progressService, violationService,
		submissionService, formService, leaderboardService,
	)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", config.AppConfig.APIPort).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("port", config.AppConfig.APIPort).Msg("could not listen")
		}
	}()

	<-stop // Wait for interrupt signal

	log.Info().Msg("shutting down server")
	workerCancel() // Signal workers to stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("server and workers stopped gracefully")
}
