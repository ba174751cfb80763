package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/proctorly/assessment-backend/internal/config"
	"github.com/proctorly/assessment-backend/internal/handler"
	"github.com/proctorly/assessment-backend/internal/middleware"
	"github.com/proctorly/assessment-backend/internal/response"
	"github.com/proctorly/assessment-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Assessment *handler.AssessmentHandler
	Export     *handler.ExportHandler
	Review     *handler.ReviewHandler
	WS         *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireCandidateJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireCandidateJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1/assessment")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		candidateAPI.GET("/paper", handlers.Assessment.GetPaper)
		candidateAPI.GET("/state", handlers.Assessment.GetState)
		candidateAPI.GET("/export/progress", handlers.Export.ExportProgress)
		candidateAPI.GET("/export/submission", handlers.Export.ExportSubmission)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/assessment/stream", handlers.WS.AssessmentStream)
	}

	// ─── 4. Review Group (Reviewer JWT) ────────────────────────────────
	reviewAPI := router.Group("/api/v1/review")
	reviewAPI.Use(middleware.RequireReviewerJWT(authService))
	{
		reviewAPI.GET("/submissions", handlers.Review.ListSubmissions)
		reviewAPI.GET("/submissions/:candidate_id", handlers.Review.GetSubmission)
		reviewAPI.POST("/candidates/:candidate_id/reset-login", handlers.Review.ResetCandidateLogin)
	}

	return router
}
