package domain

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationTypeComment  NotificationType = "comment"
	NotificationTypeArticle  NotificationType = "article"
	NotificationTypeBookmark NotificationType = "bookmark"
	NotificationTypeAdmin    NotificationType = "admin"
	NotificationTypeSystem   NotificationType = "system"
)

// EventNewNotification is the only inbound event the server pushes.
const EventNewNotification = "new_notification"

type Notification struct {
	ID          string
	Content     string
	Type        NotificationType
	IsRead      bool
	CreatedAt   time.Time
	ReferenceID string
}

// wireNotification mirrors the field names the backend serializes.
type wireNotification struct {
	ID          string           `json:"_id"`
	Content     string           `json:"content"`
	Type        NotificationType `json:"type"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   *wireTime        `json:"created_at"`
	ReferenceID string           `json:"reference_id,omitempty"`
}

func (n Notification) MarshalJSON() ([]byte, error) {
	w := wireNotification{
		ID:          n.ID,
		Content:     n.Content,
		Type:        n.Type,
		IsRead:      n.IsRead,
		ReferenceID: n.ReferenceID,
	}
	if !n.CreatedAt.IsZero() {
		w.CreatedAt = &wireTime{n.CreatedAt}
	}
	return json.Marshal(w)
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = Notification{
		ID:          w.ID,
		Content:     w.Content,
		Type:        w.Type,
		IsRead:      w.IsRead,
		ReferenceID: w.ReferenceID,
	}
	if w.CreatedAt != nil {
		n.CreatedAt = w.CreatedAt.Time
	}
	return nil
}

// wireTime accepts the backend's isoformat() output, which omits the zone
// for naive UTC datetimes.
type wireTime struct {
	time.Time
}

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func (t wireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	var lastErr error
	for _, layout := range wireTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}
