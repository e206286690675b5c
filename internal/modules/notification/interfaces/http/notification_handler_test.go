package http_test

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fakenews/notifier/internal/modules/notification/application"
	"github.com/fakenews/notifier/internal/modules/notification/domain"
	"github.com/fakenews/notifier/internal/modules/notification/infrastructure/websocket"
	httpiface "github.com/fakenews/notifier/internal/modules/notification/interfaces/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationAPIStub struct {
	listFn     func(ctx context.Context, page, perPage int) ([]domain.Notification, error)
	markReadFn func(ctx context.Context, id string) error
	deleteFn   func(ctx context.Context, id string) error
}

func (s *notificationAPIStub) List(ctx context.Context, page, perPage int) ([]domain.Notification, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, page, perPage)
}

func (s *notificationAPIStub) MarkRead(ctx context.Context, id string) error {
	if s.markReadFn == nil {
		return nil
	}
	return s.markReadFn(ctx, id)
}

func (s *notificationAPIStub) MarkAllRead(context.Context) error { return nil }

func (s *notificationAPIStub) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}

func sample(id string, read bool) domain.Notification {
	return domain.Notification{
		ID:        id,
		Content:   "New comment on your article",
		Type:      domain.NotificationTypeComment,
		IsRead:    read,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

// newServer starts a center against an unreachable push endpoint, so it runs
// in REST-only mode.
func newServer(t *testing.T, api domain.NotificationAPI) (*httptest.Server, *application.Center) {
	t.Helper()
	manager := websocket.NewManager(websocket.Config{URL: "ws://127.0.0.1:1/socket", HandshakeTimeout: 200 * time.Millisecond})
	store := application.NewStore(api, nil)
	presenter := application.NewPresenter(application.PresenterConfig{Timeout: time.Minute})
	center := application.NewCenter(manager, store, presenter, 10, nil)
	require.NoError(t, center.Start(context.Background(), "tok"))
	t.Cleanup(center.Stop)

	h := httpiface.NewNotificationHandler(center)
	mux := stdhttp.NewServeMux()
	mux.HandleFunc("GET /notifications", h.ListNotifications)
	mux.HandleFunc("GET /notifications/page", h.LoadPage)
	mux.HandleFunc("GET /notifications/unread-count", h.UnreadCount)
	mux.HandleFunc("POST /notifications/refresh", h.Refresh)
	mux.HandleFunc("POST /notifications/error/dismiss", h.DismissError)
	mux.HandleFunc("PATCH /notifications/read-all", h.MarkAllAsRead)
	mux.HandleFunc("PATCH /notifications/{id}/read", h.MarkAsRead)
	mux.HandleFunc("DELETE /notifications/{id}", h.Delete)
	mux.HandleFunc("GET /popup", h.Popup)
	mux.HandleFunc("POST /popup/dismiss", h.DismissPopup)
	mux.HandleFunc("POST /popup/open", h.OpenPopup)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, center
}

func do(t *testing.T, method, url string) *stdhttp.Response {
	t.Helper()
	req, err := stdhttp.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := stdhttp.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestListNotifications(t *testing.T) {
	api := &notificationAPIStub{listFn: func(context.Context, int, int) ([]domain.Notification, error) {
		return []domain.Notification{sample("1", false), sample("2", true)}, nil
	}}
	srv, _ := newServer(t, api)

	resp := do(t, stdhttp.MethodGet, srv.URL+"/notifications")
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	var body struct {
		Data        []domain.Notification `json:"data"`
		UnreadCount int                   `json:"unread_count"`
		Degraded    bool                  `json:"degraded"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Data, 2)
	assert.Equal(t, 1, body.UnreadCount)
	assert.True(t, body.Degraded)
}

func TestMarkAsRead(t *testing.T) {
	var marked string
	api := &notificationAPIStub{
		listFn: func(context.Context, int, int) ([]domain.Notification, error) {
			return []domain.Notification{sample("1", false)}, nil
		},
		markReadFn: func(_ context.Context, id string) error {
			marked = id
			return nil
		},
	}
	srv, center := newServer(t, api)

	resp := do(t, stdhttp.MethodPatch, srv.URL+"/notifications/1/read")
	assert.Equal(t, stdhttp.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "1", marked)
	assert.Equal(t, 0, center.Store().UnreadCount())

	resp = do(t, stdhttp.MethodPatch, srv.URL+"/notifications/missing/read")
	assert.Equal(t, stdhttp.StatusNotFound, resp.StatusCode)
}

func TestMarkAsReadBackendFailure(t *testing.T) {
	api := &notificationAPIStub{
		listFn: func(context.Context, int, int) ([]domain.Notification, error) {
			return []domain.Notification{sample("1", false)}, nil
		},
		markReadFn: func(context.Context, string) error { return errors.New("backend down") },
	}
	srv, center := newServer(t, api)

	resp := do(t, stdhttp.MethodPatch, srv.URL+"/notifications/1/read")
	require.Equal(t, stdhttp.StatusBadGateway, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["retryable"])
	assert.Equal(t, 1, center.Store().UnreadCount())
}

func TestMarkAllAsReadAndUnreadCount(t *testing.T) {
	api := &notificationAPIStub{listFn: func(context.Context, int, int) ([]domain.Notification, error) {
		return []domain.Notification{sample("1", false), sample("2", false)}, nil
	}}
	srv, _ := newServer(t, api)

	resp := do(t, stdhttp.MethodPatch, srv.URL+"/notifications/read-all")
	assert.Equal(t, stdhttp.StatusNoContent, resp.StatusCode)

	resp = do(t, stdhttp.MethodGet, srv.URL+"/notifications/unread-count")
	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body["count"])
}

func TestDelete(t *testing.T) {
	api := &notificationAPIStub{listFn: func(context.Context, int, int) ([]domain.Notification, error) {
		return []domain.Notification{sample("1", false)}, nil
	}}
	srv, center := newServer(t, api)

	resp := do(t, stdhttp.MethodDelete, srv.URL+"/notifications/1")
	assert.Equal(t, stdhttp.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, center.Store().Len())
}

func TestLoadPage(t *testing.T) {
	api := &notificationAPIStub{listFn: func(_ context.Context, page, _ int) ([]domain.Notification, error) {
		if page == 2 {
			return []domain.Notification{sample("2", false)}, nil
		}
		return []domain.Notification{sample("1", false)}, nil
	}}
	srv, center := newServer(t, api)

	resp := do(t, stdhttp.MethodGet, srv.URL+"/notifications/page?page=2")
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, center.Store().Len())

	resp = do(t, stdhttp.MethodGet, srv.URL+"/notifications/page?page=zero")
	assert.Equal(t, stdhttp.StatusBadRequest, resp.StatusCode)
}

func TestRefreshFailure(t *testing.T) {
	calls := 0
	api := &notificationAPIStub{listFn: func(context.Context, int, int) ([]domain.Notification, error) {
		calls++
		if calls > 1 {
			return nil, domain.ErrUnauthorized
		}
		return nil, nil
	}}
	srv, _ := newServer(t, api)

	resp := do(t, stdhttp.MethodPost, srv.URL+"/notifications/refresh")
	assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
}

func TestDismissError(t *testing.T) {
	calls := 0
	api := &notificationAPIStub{listFn: func(context.Context, int, int) ([]domain.Notification, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("backend down")
		}
		return nil, nil
	}}
	srv, _ := newServer(t, api)

	resp := do(t, stdhttp.MethodPost, srv.URL+"/notifications/refresh")
	require.Equal(t, stdhttp.StatusBadGateway, resp.StatusCode)

	var body map[string]interface{}
	resp = do(t, stdhttp.MethodGet, srv.URL+"/notifications")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "loading notifications page 1: backend down", body["error"])

	resp = do(t, stdhttp.MethodPost, srv.URL+"/notifications/error/dismiss")
	assert.Equal(t, stdhttp.StatusNoContent, resp.StatusCode)

	body = map[string]interface{}{}
	resp = do(t, stdhttp.MethodGet, srv.URL+"/notifications")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body, "error")
}

func TestPopupLifecycle(t *testing.T) {
	srv, center := newServer(t, &notificationAPIStub{})

	resp := do(t, stdhttp.MethodGet, srv.URL+"/popup")
	var state map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, false, state["visible"])

	center.Presenter().Show(sample("x", false))

	resp = do(t, stdhttp.MethodGet, srv.URL+"/popup")
	state = map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, true, state["visible"])
	assert.NotNil(t, state["expires_at"])

	resp = do(t, stdhttp.MethodPost, srv.URL+"/popup/dismiss")
	assert.Equal(t, stdhttp.StatusNoContent, resp.StatusCode)
	assert.False(t, center.Presenter().State().Visible)

	center.Presenter().Show(sample("y", false))
	resp = do(t, stdhttp.MethodPost, srv.URL+"/popup/open")
	assert.Equal(t, stdhttp.StatusNoContent, resp.StatusCode)
	assert.False(t, center.Presenter().State().Visible)
}
