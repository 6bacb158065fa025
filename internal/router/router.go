package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/medsimlab/clinsim-backend/internal/config"
	"github.com/medsimlab/clinsim-backend/internal/handler"
	"github.com/medsimlab/clinsim-backend/internal/middleware"
	"github.com/medsimlab/clinsim-backend/internal/response"
	"github.com/medsimlab/clinsim-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	CaseStudy *handler.CaseStudyHandler
	Session   *handler.SessionHandler
	Audit     *handler.AuditHandler
	WS        *handler.WSHandler
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
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
	}

	// ─── 2. Learner Group (JWT + Single Device) ────────────────────────
	learnerAPI := router.Group("/api/v1/learner")
	learnerAPI.Use(
		middleware.RequireLearnerJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		learnerAPI.GET("/me", handlers.Auth.Me)
		learnerAPI.POST("/logout", handlers.Auth.Logout)

		learnerAPI.GET("/case-studies", handlers.CaseStudy.List)
		learnerAPI.GET("/case-studies/:case_study_id", handlers.CaseStudy.Get)

		learnerAPI.POST("/sessions", handlers.Session.Start)
		learnerAPI.GET("/sessions/:session_id", handlers.Session.GetState)
		learnerAPI.POST("/sessions/:session_id/answers", handlers.Session.SubmitAnswer)
		learnerAPI.POST("/sessions/:session_id/next", handlers.Session.NextItem)
		learnerAPI.POST("/sessions/:session_id/medications", handlers.Session.AdministerMed)
		learnerAPI.POST("/sessions/:session_id/complete", handlers.Session.Complete)

		learnerAPI.POST("/sessions/:session_id/events", handlers.Audit.Record)
		learnerAPI.GET("/sessions/:session_id/events", handlers.Audit.ListEvents)
	}

	// ─── 3. WebSocket Group (Learner WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireLearnerWSAuth(authService))
	{
		ws.GET("/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
