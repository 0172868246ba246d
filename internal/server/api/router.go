package api

import (
	"errors"
	"net/http"

	"adgate/internal/config"
	"adgate/internal/server/api/middleware"
	"adgate/internal/server/api/response"
	av1 "adgate/internal/server/api/v1"
	"adgate/internal/server/service"
	"adgate/internal/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router handles all routing logic
type Router struct {
	engine     *gin.Engine
	middleware *middleware.Middleware
	config     *config.Config
	logger     *zap.Logger
}

// NewRouter creates and configures a new router
func NewRouter(cfg *config.Config, svc *service.Service, logger *zap.Logger) *Router {
	// Set gin mode based on config
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := validator.RegisterBinding(); err != nil {
		logger.Error("Failed to register request validators", zap.Error(err))
	}

	r := &Router{
		engine:     gin.New(),
		middleware: middleware.New(&cfg.API, logger),
		config:     cfg,
		logger:     logger,
	}
	r.engine.HandleMethodNotAllowed = true

	// Initialize middleware
	r.setupMiddleware()

	// Initialize API versions
	r.setupAPIV1(svc)

	// Unknown paths and methods answer with the envelope too
	r.engine.NoRoute(func(c *gin.Context) {
		response.New(c, r.logger).NotFound(errors.New("route not found"))
	})
	r.engine.NoMethod(func(c *gin.Context) {
		response.New(c, r.logger).Error(http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// setupMiddleware configures all middleware
func (r *Router) setupMiddleware() {
	m := r.middleware

	// Basic middleware
	r.engine.Use(m.RequestID())
	r.engine.Use(m.Logger())
	r.engine.Use(m.Recovery())

	// Security middleware
	r.engine.Use(m.Secure())

	// Browsers call the relay directly, so preflight is always answered
	r.engine.Use(m.Cors())

	// Rate limiting if enabled
	if r.config.API.RateLimit.Enabled {
		r.engine.Use(m.RateLimit())
	}
}

// setupAPIV1 configures v1 API routes
func (r *Router) setupAPIV1(svc *service.Service) {
	api := av1.NewAPI(svc, r.logger)

	// Create v1 route group; gate decisions and counters must never be cached
	v1Router := r.engine.Group("/api/v1")
	v1Router.Use(r.middleware.NoCache())

	// Register routes
	api.RegisterRoutes(v1Router)
}
