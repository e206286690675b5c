package notification

import (
	"log/slog"

	"github.com/fakenews/notifier/internal/modules/notification/application"
	"github.com/fakenews/notifier/internal/modules/notification/domain"
	"github.com/fakenews/notifier/internal/modules/notification/infrastructure/rest"
	"github.com/fakenews/notifier/internal/modules/notification/infrastructure/websocket"
	notification_http "github.com/fakenews/notifier/internal/modules/notification/interfaces/http"
	"github.com/fakenews/notifier/internal/shared/infrastructure/config"
)

type Module struct {
	center  *application.Center
	handler *notification_http.NotificationHandler
	manager *websocket.Manager
}

// NewModule wires the REST client, push manager, store, presenter and center.
// onNavigate receives the notification opened from the popup (nil when the
// popup was already gone).
func NewModule(cfg config.Config, logger *slog.Logger, onNavigate func(*domain.Notification)) *Module {
	if logger == nil {
		logger = slog.Default()
	}

	manager := websocket.NewManager(websocket.Config{
		URL:              cfg.Socket.URL,
		HandshakeTimeout: cfg.Socket.HandshakeTimeout,
		Logger:           logger,
	})

	api := rest.NewClient(cfg.API.BaseURL, func() string {
		if h := manager.Handle(); h != nil {
			return h.Credential()
		}
		return ""
	}, cfg.API.Timeout)

	store := application.NewStore(api, logger)
	store.OnChange(func(snap application.Snapshot) {
		logger.Debug("feed updated", "items", len(snap.Items), "unread", snap.UnreadCount)
	})
	presenter := application.NewPresenter(application.PresenterConfig{
		Timeout:    cfg.Feed.PopupTimeout,
		OnNavigate: onNavigate,
		OnChange: func(state application.PopupState) {
			if !state.Visible || state.Current == nil {
				logger.Info("popup hidden")
				return
			}
			logger.Info("popup shown",
				"id", state.Current.ID,
				"type", state.Current.Type,
				"content", state.Current.Content,
				"expires_at", state.ExpiresAt,
			)
		},
	})
	center := application.NewCenter(manager, store, presenter, cfg.Feed.PageSize, logger)

	return &Module{
		center:  center,
		handler: notification_http.NewNotificationHandler(center),
		manager: manager,
	}
}

func (m *Module) HTTPHandler() *notification_http.NotificationHandler {
	return m.handler
}

func (m *Module) Center() *application.Center {
	return m.center
}

func (m *Module) Manager() *websocket.Manager {
	return m.manager
}

// Shutdown stops the center and closes the push channel.
func (m *Module) Shutdown() {
	m.center.Stop()
}
