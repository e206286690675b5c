package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/fakenews/notifier/internal/modules/notification/domain"
	"github.com/fakenews/notifier/internal/modules/notification/infrastructure/websocket"
)

// Center runs the notification pipeline for one signed-in principal: it
// loads history into the Store, subscribes to pushes, and feeds each push to
// the Store and then the Presenter.
type Center struct {
	manager   *websocket.Manager
	store     *Store
	presenter *Presenter
	pageSize  int
	logger    *slog.Logger

	mu         sync.Mutex
	started    bool
	credential string
	sub        *websocket.Subscription
	degraded   bool
}

func NewCenter(manager *websocket.Manager, store *Store, presenter *Presenter, pageSize int, logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize < 1 {
		pageSize = 10
	}
	c := &Center{
		manager:   manager,
		store:     store,
		presenter: presenter,
		pageSize:  pageSize,
		logger:    logger.With("component", "center"),
	}
	manager.OnDrop(c.handleDrop)
	return c
}

// Start opens the session for credential. A push handshake failure leaves
// the center running in REST-only mode and is not returned; a failed first
// page load is returned as *domain.FetchError after the push channel is up.
func (c *Center) Start(ctx context.Context, credential string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		if c.credential == credential {
			return nil
		}
		return websocket.ErrPrincipalActive
	}

	if _, err := c.manager.Init(credential); err != nil {
		return err
	}

	sub, err := c.manager.OnEvent(domain.EventNewNotification, c.handlePush)
	if err != nil {
		c.manager.Disconnect()
		return err
	}
	c.sub = sub
	c.started = true
	c.credential = credential

	_, loadErr := c.store.LoadPage(ctx, 1, c.pageSize, true)

	c.degraded = false
	if err := c.manager.Connect(ctx); err != nil {
		c.degraded = true
		c.logger.Warn("push unavailable, continuing with manual refresh", "error", err)
	}
	return loadErr
}

// Refresh reloads the first page and, when the push channel is down, tries
// one reconnect. It is the only retry path.
func (c *Center) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return domain.ErrNotInitialized
	}
	degraded := c.degraded
	c.mu.Unlock()

	if degraded {
		if err := c.manager.Connect(ctx); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
		} else {
			c.mu.Lock()
			c.degraded = false
			c.mu.Unlock()
		}
	}

	_, err := c.store.LoadPage(ctx, 1, c.pageSize, true)
	return err
}

// LoadMore appends the given page to the feed.
func (c *Center) LoadMore(ctx context.Context, page int) ([]domain.Notification, error) {
	return c.store.LoadPage(ctx, page, c.pageSize, false)
}

// Stop releases the subscription, disconnects, then cancels any popup timer
// and empties the store. Safe to call repeatedly; not from a push handler.
func (c *Center) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}
	if c.sub != nil {
		c.sub.Dispose()
		c.sub = nil
	}
	// Disconnect waits for an in-flight push, so nothing reaches the
	// presenter or store after they are cleared below.
	c.manager.Disconnect()
	c.presenter.Close()
	c.store.Reset()
	c.started = false
	c.credential = ""
	c.degraded = false
}

// SwitchPrincipal tears down the current session before starting one for
// credential.
func (c *Center) SwitchPrincipal(ctx context.Context, credential string) error {
	c.Stop()
	return c.Start(ctx, credential)
}

// Degraded reports whether pushes are unavailable.
func (c *Center) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

func (c *Center) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Center) Store() *Store { return c.store }

func (c *Center) Presenter() *Presenter { return c.presenter }

func (c *Center) handlePush(data json.RawMessage) {
	var n domain.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		c.logger.Warn("discarding undecodable notification", "error", err)
		return
	}
	c.store.IngestPush(n)
	c.presenter.Show(n)
}

func (c *Center) handleDrop(err error) {
	c.mu.Lock()
	if c.started {
		c.degraded = true
	}
	c.mu.Unlock()
	c.logger.Warn("push channel dropped, falling back to manual refresh", "error", err)
}
