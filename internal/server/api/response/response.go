package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response represents standard API response
type Response struct {
	Code      int       `json:"code"`            // HTTP status code
	Message   string    `json:"message"`         // "success", "created" or "error"
	Data      any       `json:"data,omitempty"`  // Response data
	Error     string    `json:"error,omitempty"` // Error message if any
	RequestID string    `json:"request_id"`      // Request ID for tracking
	Timestamp time.Time `json:"timestamp"`       // Response timestamp
}

// ErrorBody is the bare error shape of the notification relay endpoints
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Handler writes responses for one request
type Handler struct {
	ctx    *gin.Context
	logger *zap.Logger
}

// New creates new response handler
func New(c *gin.Context, logger *zap.Logger) *Handler {
	return &Handler{
		ctx:    c,
		logger: logger,
	}
}

func (h *Handler) envelope(status int, message string, data any, err error) Response {
	r := Response{
		Code:      status,
		Message:   message,
		Data:      data,
		RequestID: h.ctx.GetString("request_id"),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Success sends success response
func (h *Handler) Success(data any) {
	h.ctx.JSON(http.StatusOK, h.envelope(http.StatusOK, "success", data, nil))
}

// Created sends created response
func (h *Handler) Created(data any) {
	h.ctx.JSON(http.StatusCreated, h.envelope(http.StatusCreated, "created", data, nil))
}

// Error sends an error response
func (h *Handler) Error(status int, err error) {
	h.ErrorWithData(status, err, nil)
}

// ErrorWithData sends an error response that still carries a payload,
// such as the failing components of a health check
func (h *Handler) ErrorWithData(status int, err error, data any) {
	if status < http.StatusInternalServerError {
		h.logger.Debug("Request rejected",
			zap.String("request_id", h.ctx.GetString("request_id")),
			zap.Int("status", status),
			zap.Error(err))
	}
	h.ctx.JSON(status, h.envelope(status, "error", data, err))
}

// BadRequest sends bad request error response
func (h *Handler) BadRequest(err error) {
	h.Error(http.StatusBadRequest, err)
}

// NotFound sends not found error response
func (h *Handler) NotFound(err error) {
	h.Error(http.StatusNotFound, err)
}

// InternalError sends an internal server error response
func (h *Handler) InternalError(err error) {
	h.Error(http.StatusInternalServerError, err)
}

// Custom sends body as is
func (h *Handler) Custom(status int, body any) {
	h.ctx.JSON(status, body)
}

// RelayError sends the bare error shape used by the relay endpoints
func (h *Handler) RelayError(status int, msg, details string) {
	h.ctx.JSON(status, ErrorBody{Error: msg, Details: details})
}
