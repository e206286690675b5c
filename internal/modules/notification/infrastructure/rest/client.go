package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fakenews/notifier/internal/modules/notification/domain"
	"github.com/fakenews/notifier/internal/shared/infrastructure/metrics"
)

// TokenFunc returns the bearer credential for the current principal.
type TokenFunc func() string

// Client talks to the backend's /notifications endpoints. It never retries;
// every retry is a user action.
type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
}

type listResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Page          int                   `json:"page"`
	PerPage       int                   `json:"per_page"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewClient(baseURL string, token TokenFunc, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: metrics.NewTransport(nil, pathLabel),
		},
	}
}

func (c *Client) List(ctx context.Context, page, perPage int) ([]domain.Notification, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var out listResponse
	if err := c.do(ctx, http.MethodGet, "/notifications/?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if out.Notifications == nil {
		return []domain.Notification{}, nil
	}
	return out.Notifications, nil
}

func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodPost, "/notifications/mark-read/"+url.PathEscape(notificationID), nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/mark-all-read", nil)
}

func (c *Client) Delete(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(notificationID), nil)
}

func (c *Client) do(ctx context.Context, method, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, body)
	}

	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var payload errorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, msg)
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(msg), "pagination") {
			return fmt.Errorf("%w: %s", domain.ErrInvalidPagination, msg)
		}
	}
	return fmt.Errorf("backend returned %d: %s", status, msg)
}

// pathLabel strips notification ids so metric labels stay bounded.
func pathLabel(req *http.Request) string {
	p := req.URL.Path
	switch {
	case strings.HasPrefix(p, "/notifications/mark-read/"):
		return "/notifications/mark-read/{id}"
	case p == "/notifications/mark-all-read", p == "/notifications/":
		return p
	case strings.HasPrefix(p, "/notifications/"):
		return "/notifications/{id}"
	}
	return p
}
