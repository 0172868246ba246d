package v1

import (
	"errors"

	"adgate/internal/adslot"
	"adgate/internal/server/api/response"
	"adgate/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterAdRoutes registers profile, ad gating and settings routes
func (api *API) RegisterAdRoutes(r *gin.RouterGroup) {
	users := r.Group("/users/:user_id")
	{
		users.GET("/profile", api.getProfile)
		users.PUT("/profile", api.ensureProfile)
		users.GET("/ads/decision", api.getDecision)
		users.POST("/ads/dismiss", api.dismissAd)
		users.POST("/ads/:format", api.showAd)
	}

	settings := r.Group("/settings")
	{
		settings.GET("/frequency", api.getFrequencySettings)
		settings.PUT("/frequency", api.updateFrequencySettings)
	}
}

// getProfile returns the current profile snapshot
func (api *API) getProfile(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	id, ok := userID(c, resp)
	if !ok {
		return
	}

	profile, err := api.service.GetProfile(ctx, id)
	if err != nil {
		api.handleError(c, resp, err, "get profile", zap.String("user_id", id))
		return
	}

	resp.Success(profile)
}

// ensureProfile provisions a profile; an existing one is returned unchanged
func (api *API) ensureProfile(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	id, ok := userID(c, resp)
	if !ok {
		return
	}

	var body struct {
		IsPremium bool `json:"is_premium"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			resp.BadRequest(bindError(err))
			return
		}
	}

	profile, created, err := api.service.EnsureProfile(ctx, id, body.IsPremium)
	if err != nil {
		api.handleError(c, resp, err, "create profile", zap.String("user_id", id))
		return
	}

	if created {
		resp.Created(profile)
		return
	}
	resp.Success(profile)
}

// getDecision reports whether the user may see an ad now
func (api *API) getDecision(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	id, ok := userID(c, resp)
	if !ok {
		return
	}

	decision, err := api.service.Decide(ctx, id)
	if err != nil {
		api.handleError(c, resp, err, "decide", zap.String("user_id", id))
		return
	}

	resp.Success(decision)
}

// showAd gates and loads an ad of the requested format
func (api *API) showAd(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	id, ok := userID(c, resp)
	if !ok {
		return
	}

	format, err := adslot.ParseFormat(c.Param("format"))
	if err != nil {
		resp.NotFound(errors.New("unknown ad format"))
		return
	}

	result, err := api.service.ShowAd(ctx, id, format)
	if err != nil {
		api.handleError(c, resp, err, "show ad", zap.String("user_id", id), zap.String("format", string(format)))
		return
	}

	resp.Success(result)
}

// dismissAd records the impression of a closed ad
func (api *API) dismissAd(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	id, ok := userID(c, resp)
	if !ok {
		return
	}

	profile, err := api.service.DismissAd(ctx, id)
	if err != nil {
		api.handleError(c, resp, err, "record ad", zap.String("user_id", id))
		return
	}

	resp.Success(profile)
}

// getFrequencySettings returns the settings in effect
func (api *API) getFrequencySettings(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	resp.Success(api.service.FrequencySettings(ctx))
}

// updateFrequencySettings replaces the frequency settings
func (api *API) updateFrequencySettings(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	var settings types.FrequencySettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		resp.BadRequest(bindError(err))
		return
	}

	if err := api.service.UpdateFrequencySettings(ctx, settings); err != nil {
		api.handleError(c, resp, err, "update frequency settings")
		return
	}

	resp.Success(settings)
}
