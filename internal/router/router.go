package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/handler"
	"github.com/noah-isme/geo-checkin-api/internal/middleware"
	"github.com/noah-isme/geo-checkin-api/internal/models"
	"github.com/noah-isme/geo-checkin-api/internal/service"
	"github.com/noah-isme/geo-checkin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/geo-checkin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/geo-checkin-api/pkg/middleware/requestid"
)

// Options carries the cross-cutting settings of the HTTP surface.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
}

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         middleware.TokenValidator
	CheckInLimiter gin.HandlerFunc

	AuthHandler    *handler.AuthHandler
	CheckInHandler *handler.CheckInHandler
	SessionHandler *handler.SessionHandler
	RosterHandler  *handler.RosterHandler
	MetricsHandler *handler.MetricsHandler
}

// New builds the gin engine with global middleware and every route.
func New(opts Options, deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, "/health", "/metrics"))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	Register(r, opts, deps)
	return r
}

// Register wires the HTTP routes into the engine.
func Register(r *gin.Engine, opts Options, deps Dependencies) {
	if deps.MetricsHandler != nil {
		r.GET("/health", deps.MetricsHandler.Health)
		r.GET("/ready", deps.MetricsHandler.Ready)
		r.GET("/metrics", deps.MetricsHandler.Prometheus)
	}
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	api := r.Group(prefix)
	authenticated := middleware.JWT(deps.Tokens)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	if h := deps.AuthHandler; h != nil {
		auth := api.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", authenticated, h.Logout)
		auth.GET("/me", authenticated, h.Me)
	}

	if h := deps.CheckInHandler; h != nil {
		limiter := deps.CheckInLimiter
		if limiter == nil {
			limiter = func(c *gin.Context) { c.Next() }
		}
		attendance := api.Group("/attendance", authenticated, middleware.RequireRoles(models.RoleStudent, models.RoleAdmin))
		attendance.POST("/check-in", limiter, h.CheckIn)
		attendance.GET("/me", h.History)
	}

	sessions := api.Group("/sessions", authenticated, adminOnly)
	if h := deps.SessionHandler; h != nil {
		sessions.GET("", h.List)
		sessions.POST("", h.Create)
		sessions.GET("/:id", h.Get)
		sessions.DELETE("/:id", h.Delete)
		sessions.POST("/:id/activate", h.Activate)
		sessions.POST("/:id/close", h.Close)
	}
	if h := deps.RosterHandler; h != nil {
		sessions.GET("/:id/attendance", h.Report)
		sessions.GET("/:id/attendance/export", h.Export)
	}
}
