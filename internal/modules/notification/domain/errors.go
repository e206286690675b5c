package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUnauthorized         = errors.New("credential rejected")
	ErrInvalidPagination    = errors.New("invalid pagination parameters")
	ErrNotInitialized       = errors.New("connection not initialized")
)

// ConnectionError reports a handshake or transport failure on the push
// channel. Callers degrade to REST-only; nothing retries automatically.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("push connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FetchError reports a failed page load.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("loading notifications page %d: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ActionError reports a failed mark-read, mark-all-read or delete.
type ActionError struct {
	Action         string
	NotificationID string
	Err            error
}

func (e *ActionError) Error() string {
	if e.NotificationID == "" {
		return fmt.Sprintf("%s failed: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Action, e.NotificationID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is something a user-triggered retry can
// plausibly fix. A rejected credential is not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrUnauthorized) {
		return false
	}
	var fetchErr *FetchError
	var actionErr *ActionError
	var connErr *ConnectionError
	return errors.As(err, &fetchErr) || errors.As(err, &actionErr) || errors.As(err, &connErr)
}
