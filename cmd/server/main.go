package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/database"
	"github.com/proctorly/assessment-backend/internal/handler"
	"github.com/proctorly/assessment-backend/internal/logger"
	"github.com/proctorly/assessment-backend/internal/repository"
	"github.com/proctorly/assessment-backend/internal/router"
	"github.com/proctorly/assessment-backend/internal/service"
	"github.com/proctorly/assessment-backend/internal/session"
	"github.com/proctorly/assessment-backend/internal/store"
	"github.com/proctorly/assessment-backend/internal/validator"
	"github.com/proctorly/assessment-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("assessment_id", cfg.AssessmentID).
		Msg("Starting Proctorly Assessment Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	candidateRepo := repository.NewCandidateRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	rosterService := service.NewRosterService(candidateRepo, authService, log)
	assessmentService := service.NewAssessmentService(cfg, questionRepo, log)

	// Load the question bank BEFORE accepting traffic; every session
	// shares this immutable bank.
	if err := assessmentService.LoadBank(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load question bank")
	}

	sessionStore := store.NewRedisStore(rdb)
	exportService := service.NewExportService(cfg, sessionStore, log)

	manager := session.NewManager(log, session.FromConfig(cfg), cfg.AssessmentID, assessmentService.Bank(), sessionStore)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, rosterService),
		Assessment: handler.NewAssessmentHandler(assessmentService, rosterService, manager),
		Export:     handler.NewExportHandler(exportService),
		Review:     handler.NewReviewHandler(cfg, submissionRepo, authService),
		WS:         handler.NewWSHandler(cfg, manager, rosterService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerWorker(pool, rdb, log)
	snapshotWorker := worker.NewSnapshotWorker(pool, rdb, log)
	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	submissionWorker := worker.NewSubmissionWorker(pool, rdb, log)

	go answerWorker.Start(workerCtx)
	go snapshotWorker.Start(workerCtx)
	go violationWorker.Start(workerCtx)
	go submissionWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Tear down live sessions: pauses countdowns and releases devices.
	// Session state survives in Redis and can be resumed after restart.
	manager.Shutdown()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
