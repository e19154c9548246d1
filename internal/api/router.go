package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askbook/internal/api/admin"
	"github.com/liliang-cn/askbook/internal/api/chat"
	"github.com/liliang-cn/askbook/internal/api/middleware"
	"github.com/liliang-cn/askbook/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey         string
	AllowOrigins   []string
	ServiceName    string
	TracingEnabled bool
	MetricsEnabled bool
	MetricsPath    string
	// RateLimiter guards the public API; nil disables rate limiting.
	RateLimiter middleware.RateLimiter
	Logger      *zap.Logger
}

// Services bundles what the handlers need
type Services struct {
	Runtime      *service.Runtime
	Orchestrator *service.OrchestratorService
	Chat         *service.ChatService
	Admin        *service.AdminService
}

// SetupRouter sets up the Gin router
func SetupRouter(svc Services, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	if cfg.TracingEnabled {
		r.Use(middleware.Trace(cfg.ServiceName))
	}
	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics())
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	// Liveness and readiness
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	ready := readiness(svc.Runtime)
	r.GET("/ready", ready)

	apiGroup := r.Group("/api")
	apiGroup.GET("/", ready)

	// Public chat API
	public := apiGroup.Group("")
	public.Use(middleware.RateLimit(cfg.RateLimiter, logger))
	chat.NewHandler(svc.Orchestrator, svc.Chat).RegisterRoutes(public)

	// Admin API (requires API key)
	adminGroup := apiGroup.Group("/admin")
	adminGroup.Use(middleware.Auth(cfg.APIKey))
	admin.NewHandler(svc.Admin).RegisterRoutes(adminGroup)

	return r
}

// readiness reports 503 with per-check detail until every collaborator is up
func readiness(rt *service.Runtime) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if rt == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "ready": false, "message": service.NotReadyMessage})
			return
		}

		checks := rt.Checks(ctx)
		if err := rt.Ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"ready":   false,
				"message": service.NotReadyMessage,
				"checks":  checks,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"ready":  true,
			"checks": checks,
		})
	}
}
