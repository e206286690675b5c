package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fakenews/notifier/internal/modules/notification"
	"github.com/fakenews/notifier/internal/shared/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoutes(t *testing.T) (http.Handler, *notification.Module) {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"notifications": [], "page": 1, "per_page": 10}`))
	}))
	t.Cleanup(backend.Close)

	cfg := config.Load()
	cfg.API.BaseURL = backend.URL
	cfg.Socket.URL = "ws://127.0.0.1:1/socket"
	cfg.Socket.HandshakeTimeout = 200 * time.Millisecond

	m := notification.NewModule(cfg, nil, nil)
	t.Cleanup(m.Shutdown)

	handler := SetupRoutes(RouterConfig{
		NotificationHandler: m.HTTPHandler(),
		Status: func() Status {
			return Status{SignedIn: m.Center().Running(), Degraded: m.Center().Degraded()}
		},
		AllowedOrigins: "http://localhost:3000",
	})
	return handler, m
}

func TestSetupRoutes_HealthCheck(t *testing.T) {
	handler, _ := newTestRoutes(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.False(t, status.SignedIn)
}

func TestSetupRoutes_Metrics(t *testing.T) {
	handler, _ := newTestRoutes(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "notifier_")
}

func TestSetupRoutes_NotificationsRequireSession(t *testing.T) {
	handler, m := newTestRoutes(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, m.Center().Start(context.Background(), "tok"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var status Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.True(t, status.SignedIn)
	assert.True(t, status.Degraded)
}

func TestSetupRoutes_DismissError(t *testing.T) {
	handler, m := newTestRoutes(t)
	require.NoError(t, m.Center().Start(context.Background(), "tok"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notifications/error/dismiss", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, m.Center().Store().LastError())
}

func TestSetupRoutes_CORSPreflight(t *testing.T) {
	handler, _ := newTestRoutes(t)

	req := httptest.NewRequest(http.MethodOptions, "/notifications/read-all", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
