package v1

import (
	"context"

	"adgate/internal/server/api/response"
	"adgate/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterTriggerRoutes registers session and trigger routes
func (api *API) RegisterTriggerRoutes(r *gin.RouterGroup) {
	users := r.Group("/users/:user_id")
	{
		users.GET("/triggers", api.triggerHandler("get triggers", api.service.Triggers))
		users.POST("/comments", api.triggerHandler("count comment", api.service.IncrementCommentCount))
		users.POST("/comments/reset", api.triggerHandler("reset comment count", api.service.ResetCommentCount))
		users.POST("/session", api.triggerHandler("start session", api.service.StartSession))
		users.POST("/session/reset", api.triggerHandler("reset session time", api.service.ResetSessionTime))
		users.DELETE("/session", api.endSession)
	}
}

type triggerOp func(ctx context.Context, userID string) (types.TriggerFlags, error)

// triggerHandler runs op for the path user and answers with the resulting flags
func (api *API) triggerHandler(action string, op triggerOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := response.New(c, api.logger)

		ctx, cancel := requestContext(c)
		defer cancel()

		id, ok := userID(c, resp)
		if !ok {
			return
		}

		flags, err := op(ctx, id)
		if err != nil {
			api.handleError(c, resp, err, action, zap.String("user_id", id))
			return
		}

		resp.Success(flags)
	}
}

// endSession stops trigger polling for the user
func (api *API) endSession(c *gin.Context) {
	resp := response.New(c, api.logger)

	id, ok := userID(c, resp)
	if !ok {
		return
	}

	resp.Success(gin.H{"ended": api.service.EndSession(id)})
}
