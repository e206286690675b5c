package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/fakenews/notifier/internal/gateway/middleware"
	notification_http "github.com/fakenews/notifier/internal/modules/notification/interfaces/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is what /health reports about the running session.
type Status struct {
	SignedIn bool `json:"signed_in"`
	Degraded bool `json:"degraded"`
}

// RouterConfig holds the handlers and hooks needed for routing
type RouterConfig struct {
	NotificationHandler *notification_http.NotificationHandler
	Status              func() Status
	AllowedOrigins      string
}

// SetupRoutes builds the local control API
func SetupRoutes(config RouterConfig) http.Handler {
	mux := http.NewServeMux()

	// Health Check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(config.Status())
	})

	// Prometheus Metrics Endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	requireSession := middleware.RequireSession(func() bool { return config.Status().SignedIn })
	guard := func(h http.HandlerFunc) http.Handler { return requireSession(h) }

	// Notification Routes
	h := config.NotificationHandler
	mux.Handle("GET /notifications", guard(h.ListNotifications))
	mux.Handle("GET /notifications/page", guard(h.LoadPage))
	mux.Handle("GET /notifications/unread-count", guard(h.UnreadCount))
	mux.Handle("POST /notifications/refresh", guard(h.Refresh))
	mux.Handle("POST /notifications/error/dismiss", guard(h.DismissError))
	mux.Handle("PATCH /notifications/read-all", guard(h.MarkAllAsRead))
	mux.Handle("PATCH /notifications/{id}/read", guard(h.MarkAsRead))
	mux.Handle("DELETE /notifications/{id}", guard(h.Delete))

	// Popup Routes
	mux.Handle("GET /popup", guard(h.Popup))
	mux.Handle("POST /popup/dismiss", guard(h.DismissPopup))
	mux.Handle("POST /popup/open", guard(h.OpenPopup))

	return middleware.Metrics(middleware.CORS(config.AllowedOrigins)(mux))
}
