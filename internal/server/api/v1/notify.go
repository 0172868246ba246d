package v1

import (
	"net/http"
	"strconv"

	"adgate/internal/server/api/response"
	"adgate/internal/types"
	"adgate/internal/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxNotificationLimit caps the page size of the notifications listing
const maxNotificationLimit = 200

// RegisterNotifyRoutes registers the relay and push subscription routes
func (api *API) RegisterNotifyRoutes(r *gin.RouterGroup) {
	notify := r.Group("/notify")
	{
		notify.POST("/email", api.sendEmail)
		notify.POST("/push", api.sendPush)
	}

	r.POST("/push/subscriptions", api.registerSubscription)
	r.GET("/users/:user_id/notifications", api.listNotifications)
}

// bindMessage describes why a request body could not be bound
func bindMessage(err error) string {
	if validator.IsValidationError(err) {
		return validator.Describe(err)
	}
	return "Invalid request body"
}

// sendEmail relays an email. Replies use the bare relay shape.
func (api *API) sendEmail(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	var msg types.EmailMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		resp.RelayError(http.StatusBadRequest, bindMessage(err), "")
		return
	}

	result, err := api.service.SendEmail(ctx, &msg)
	if err != nil {
		api.logger.Error("Email relay failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		resp.RelayError(http.StatusInternalServerError, "Failed to send email", err.Error())
		return
	}

	resp.Custom(http.StatusOK, result)
}

// sendPush records a push notification for a subscribed user
func (api *API) sendPush(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	var req types.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		resp.RelayError(http.StatusBadRequest, bindMessage(err), "")
		return
	}

	result, err := api.service.SendPush(ctx, &req)
	if err != nil {
		api.logger.Error("Push relay failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("user_id", req.UserID),
			zap.Error(err))
		resp.RelayError(http.StatusInternalServerError, "Failed to send push notification", "")
		return
	}

	resp.Custom(http.StatusOK, result)
}

// registerSubscription stores a browser push subscription
func (api *API) registerSubscription(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	var sub types.PushSubscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		resp.BadRequest(bindError(err))
		return
	}

	if err := api.service.RegisterSubscription(ctx, &sub); err != nil {
		api.handleError(c, resp, err, "register subscription", zap.String("user_id", sub.UserID))
		return
	}

	resp.Created(sub)
}

// listNotifications returns the newest notifications of a user
func (api *API) listNotifications(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	id, ok := userID(c, resp)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			resp.BadRequest(errInvalidLimit)
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	records, err := api.service.ListNotifications(ctx, id, limit)
	if err != nil {
		api.handleError(c, resp, err, "list notifications", zap.String("user_id", id))
		return
	}
	if records == nil {
		records = []*types.NotificationRecord{}
	}

	resp.Success(records)
}
