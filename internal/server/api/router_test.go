package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"adgate/internal/adslot"
	"adgate/internal/config"
	"adgate/internal/server/repository"
	"adgate/internal/server/service"
	"adgate/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubProvider struct {
	err error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Send(context.Context, *types.EmailMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "re_123", nil
}

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID string          `json:"request_id"`
}

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{
			CORS: config.CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"authorization", "content-type"},
				MaxAge:         86400,
			},
		},
		Ads: config.AdsConfig{
			Frequency:           types.DefaultFrequencySettings(),
			SettingsRefresh:     time.Minute,
			SessionPollInterval: time.Minute,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, provider *stubProvider) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	svc, err := service.NewService(&cfg.Ads, service.Dependencies{
		Stores: repository.NewMemoryStores(),
		Email:  provider,
	}, logger, service.WithSlotLoader(adslot.NewLoader(0, 0)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	return NewRouter(cfg, svc, logger)
}

func do(t *testing.T, r *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func data[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	env := decode[envelope](t, w)
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestPreflightIsAnsweredFirst(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubProvider{})

	w := do(t, r, http.MethodOptions, "/api/v1/notify/email", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization,content-type", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, w.Body.String())
}

func TestCorsEchoesListedOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.API.CORS.AllowedOrigins = []string{"https://app.example.com", "https://admin.example.com"}
	r := newTestRouter(t, cfg, &stubProvider{})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/notify/email", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()
		r.Handler().ServeHTTP(w, req)
		return w
	}

	w := preflight("https://admin.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	w = preflight("https://evil.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight("")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCommonHeaders(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubProvider{})

	w := do(t, r, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
}

func TestUnknownRoutes(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubProvider{})

	w := do(t, r, http.MethodGet, "/api/v2/health", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decode[envelope](t, w).Error)

	w = do(t, r, http.MethodGet, "/api/v1/notify/email", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "method not allowed", decode[envelope](t, w).Error)
}

func TestUnhealthyDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	cfg := testConfig()

	svc, err := service.NewService(&cfg.Ads, service.Dependencies{
		Stores: repository.NewMemoryStores(),
		Health: map[string]service.Pinger{
			"database": service.PingFunc(func(context.Context) error { return errors.New("down") }),
		},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	r := NewRouter(cfg, svc, logger)

	w := do(t, r, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	env := decode[envelope](t, w)
	assert.Equal(t, "service unhealthy", env.Error)

	status := data[service.HealthStatus](t, w)
	assert.False(t, status.Healthy)
	require.Len(t, status.Details, 1)
	assert.Equal(t, "database", status.Details[0].Name)
}

func TestEmailRelay(t *testing.T) {
	provider := &stubProvider{}
	r := newTestRouter(t, testConfig(), provider)
	path := "/api/v1/notify/email"

	tests := []struct {
		name   string
		body   any
		status int
		want   string
	}{
		{"missing fields", map[string]string{"to": "a@b.co"}, http.StatusBadRequest, "Missing required fields: subject, html"},
		{"invalid address", map[string]string{"to": "a@b", "subject": "s", "html": "h"}, http.StatusBadRequest, "Invalid email address"},
		{"malformed body", "{not json", http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			body := decode[map[string]string](t, w)
			assert.Equal(t, tt.want, body["error"])
		})
	}

	msg := map[string]string{"to": "user@example.com", "subject": "Hi", "html": "<p>x</p>", "replyTo": "s@example.com"}
	w := do(t, r, http.MethodPost, path, msg)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.EmailResult{Success: true, ID: "re_123", Message: "Email sent successfully"}, decode[types.EmailResult](t, w))

	provider.err = errors.New("upstream rejected")
	w = do(t, r, http.MethodPost, path, msg)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "Failed to send email", body["error"])
	assert.Equal(t, "upstream rejected", body["details"])
}

func TestPushRelay(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubProvider{})
	path := "/api/v1/notify/push"
	push := map[string]any{"userId": "u1", "title": "Done", "message": "Task complete", "type": "task"}

	w := do(t, r, http.MethodPost, path, map[string]any{"userId": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields: title, message", decode[map[string]string](t, w)["error"])

	w = do(t, r, http.MethodPost, path, push)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[types.PushResult](t, w)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)

	w = do(t, r, http.MethodPost, "/api/v1/push/subscriptions", map[string]any{"userId": "u1", "endpoint": "not a url", "p256dh": "k", "auth": "a"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/push/subscriptions", map[string]any{
		"userId": "u1", "endpoint": "https://push.example.com/abc", "p256dh": "k", "auth": "a",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodPost, path, push)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[types.PushResult](t, w)
	assert.True(t, res.Success)
	require.NotEmpty(t, res.NotificationID)

	w = do(t, r, http.MethodGet, "/api/v1/users/u1/notifications?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := data[[]types.NotificationRecord](t, w)
	require.Len(t, records, 1)
	assert.Equal(t, res.NotificationID, records[0].ID)
	assert.Equal(t, "/tasks", records[0].URL)

	w = do(t, r, http.MethodGet, "/api/v1/users/u1/notifications?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/users/nobody/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, data[[]types.NotificationRecord](t, w))
}

func TestAdRoutes(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubProvider{})

	w := do(t, r, http.MethodGet, "/api/v1/users/u1/ads/decision", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "profile not found", decode[envelope](t, w).Error)

	w = do(t, r, http.MethodPut, "/api/v1/users/u1/profile", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, r, http.MethodPut, "/api/v1/users/u1/profile", map[string]bool{"is_premium": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, data[types.Profile](t, w).IsPremium)

	w = do(t, r, http.MethodGet, "/api/v1/users/u1/ads/decision", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.Decision{CanShow: true}, data[types.Decision](t, w))

	w = do(t, r, http.MethodPost, "/api/v1/users/u1/ads/banner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	shown := data[service.AdResult](t, w)
	assert.True(t, shown.Decision.CanShow)
	require.NotNil(t, shown.Slot)
	assert.Equal(t, adslot.StateReady, shown.Slot.State)

	w = do(t, r, http.MethodPost, "/api/v1/users/u1/ads/video", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/users/u1/ads/dismiss", nil)
	require.Equal(t, http.StatusOK, w.Code)
	p := data[types.Profile](t, w)
	assert.Equal(t, 1, p.AdsShownToday)
	assert.Equal(t, 1, p.AdsShownThisHour)

	w = do(t, r, http.MethodGet, "/api/v1/users/u1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, data[types.Profile](t, w).AdsShownToday)
}

func TestFrequencySettingsRoutes(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubProvider{})

	w := do(t, r, http.MethodGet, "/api/v1/settings/frequency", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.DefaultFrequencySettings(), data[types.FrequencySettings](t, w))

	w = do(t, r, http.MethodPut, "/api/v1/settings/frequency", map[string]int{"max_ads_per_hour": 0, "max_ads_per_day": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	want := types.FrequencySettings{MaxAdsPerHour: 2, MaxAdsPerDay: 8, MinSecondsBetweenAds: 90}
	w = do(t, r, http.MethodPut, "/api/v1/settings/frequency", want)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/settings/frequency", nil)
	assert.Equal(t, want, data[types.FrequencySettings](t, w))
}

func TestTriggerRoutes(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubProvider{})

	w := do(t, r, http.MethodGet, "/api/v1/users/u1/triggers", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	do(t, r, http.MethodPut, "/api/v1/users/u1/profile", nil)

	w = do(t, r, http.MethodPost, "/api/v1/users/u1/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.TriggerFlags{}, data[types.TriggerFlags](t, w))

	var flags types.TriggerFlags
	for i := 0; i < 5; i++ {
		w = do(t, r, http.MethodPost, "/api/v1/users/u1/comments", nil)
		require.Equal(t, http.StatusOK, w.Code)
		flags = data[types.TriggerFlags](t, w)
	}
	assert.True(t, flags.CommentAd)

	w = do(t, r, http.MethodGet, "/api/v1/users/u1/triggers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, data[types.TriggerFlags](t, w).CommentAd)

	w = do(t, r, http.MethodPost, "/api/v1/users/u1/comments/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, data[types.TriggerFlags](t, w).CommentAd)

	w = do(t, r, http.MethodPost, "/api/v1/users/u1/session/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/users/u1/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"ended": true}, data[map[string]bool](t, w))

	w = do(t, r, http.MethodDelete, "/api/v1/users/u1/session", nil)
	assert.Equal(t, map[string]bool{"ended": false}, data[map[string]bool](t, w))
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.API.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute}
	r := newTestRouter(t, cfg, &stubProvider{})

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/v1/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/v1/health", nil).Code)

	w := do(t, r, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", decode[envelope](t, w).Error)
}

func TestRecovery(t *testing.T) {
	r := newTestRouter(t, testConfig(), &stubProvider{})
	r.engine.GET("/boom", func(*gin.Context) { panic("boom") })

	w := do(t, r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode[envelope](t, w)
	assert.Equal(t, "internal server error", env.Error)
	assert.NotEmpty(t, env.RequestID)
}
