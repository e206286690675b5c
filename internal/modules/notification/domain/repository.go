package domain

import "context"

// NotificationAPI is the backend collaborator that owns persisted
// notifications for the authenticated principal.
type NotificationAPI interface {
	List(ctx context.Context, page, perPage int) ([]Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, notificationID string) error
}
