package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"adgate/internal/server/api/response"
	"adgate/internal/server/service"
	"adgate/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	requestTimeout = 30 * time.Second
	healthTimeout  = 5 * time.Second
)

var (
	errInvalidLimit     = errors.New("limit must be a positive integer")
	errServiceUnhealthy = errors.New("service unhealthy")
)

// API represents the API
type API struct {
	service *service.Service
	logger  *zap.Logger
}

// NewAPI creates new API
func NewAPI(svc *service.Service, logger *zap.Logger) *API {
	return &API{
		service: svc,
		logger:  logger,
	}
}

// RegisterRoutes registers API routes
func (api *API) RegisterRoutes(r *gin.RouterGroup) {
	api.RegisterNotifyRoutes(r)
	api.RegisterAdRoutes(r)
	api.RegisterTriggerRoutes(r)

	// Health check
	r.GET("/health", api.healthCheck)
}

// requestContext bounds a handler's work by the request and requestTimeout
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// userID returns the :user_id path parameter, answering 400 when it is empty
func userID(c *gin.Context, resp *response.Handler) (string, bool) {
	id := c.Param("user_id")
	if id == "" {
		resp.BadRequest(errors.New("user id is required"))
		return "", false
	}
	return id, true
}

// bindError wraps bindMessage for envelope responses
func bindError(err error) error {
	return errors.New(bindMessage(err))
}

// handleError maps a service error onto the response envelope.
// action names the failed operation in the client message.
func (api *API) handleError(c *gin.Context, resp *response.Handler, err error, action string, fields ...zap.Field) {
	switch {
	case errors.Is(err, context.Canceled):
		api.logger.Info("Client canceled request", append(fields, zap.String("action", action))...)
		c.Abort()
	case errors.Is(err, context.DeadlineExceeded):
		resp.Error(http.StatusGatewayTimeout, errors.New("request timeout"))
	case errors.Is(err, types.ErrProfileNotFound):
		resp.NotFound(errors.New("profile not found"))
	case errors.Is(err, types.ErrInvalidSettings):
		resp.BadRequest(err)
	default:
		api.logger.Error("Request failed",
			append(fields, zap.String("action", action), zap.Error(err))...)
		resp.InternalError(errors.New("failed to " + action))
	}
}

// healthCheck handles health check requests
func (api *API) healthCheck(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := api.service.HealthCheck(ctx)
	if !status.Healthy {
		resp.ErrorWithData(http.StatusServiceUnavailable, errServiceUnhealthy, status)
		return
	}

	resp.Success(status)
}
