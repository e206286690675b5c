package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fakenews/notifier/internal/modules/notification/application"
	"github.com/fakenews/notifier/internal/modules/notification/domain"
)

// NotificationHandler exposes the running Center to a local front-end.
type NotificationHandler struct {
	center *application.Center
}

func NewNotificationHandler(center *application.Center) *NotificationHandler {
	return &NotificationHandler{center: center}
}

type feedResponse struct {
	Data        []domain.Notification `json:"data"`
	UnreadCount int                   `json:"unread_count"`
	Degraded    bool                  `json:"degraded"`
	Error       string                `json:"error,omitempty"`
}

type popupResponse struct {
	Visible   bool                 `json:"visible"`
	Current   *domain.Notification `json:"current,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	store := h.center.Store()
	resp := feedResponse{
		Data:        store.Feed(),
		UnreadCount: store.UnreadCount(),
		Degraded:    h.center.Degraded(),
	}
	if err := store.LastError(); err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *NotificationHandler) LoadPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}

	items, err := h.center.LoadMore(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": items})
}

func (h *NotificationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.center.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "invalid notification id", http.StatusBadRequest)
		return
	}

	if err := h.center.Store().MarkRead(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.center.Store().MarkAllRead(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "invalid notification id", http.StatusBadRequest)
		return
	}

	if err := h.center.Store().Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DismissError clears the feed's last error banner.
func (h *NotificationHandler) DismissError(w http.ResponseWriter, r *http.Request) {
	h.center.Store().ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": h.center.Store().UnreadCount()})
}

func (h *NotificationHandler) Popup(w http.ResponseWriter, r *http.Request) {
	state := h.center.Presenter().State()
	resp := popupResponse{Visible: state.Visible, Current: state.Current}
	if state.Visible {
		resp.ExpiresAt = &state.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *NotificationHandler) DismissPopup(w http.ResponseWriter, r *http.Request) {
	h.center.Presenter().Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) OpenPopup(w http.ResponseWriter, r *http.Request) {
	h.center.Presenter().ClickThrough()
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrNotificationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidPagination):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"error":     err.Error(),
		"retryable": domain.IsRetryable(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("notification handler: encode error: %v", err)
	}
}
