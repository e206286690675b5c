package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fakenews/notifier/internal/modules/notification/domain"
	"github.com/fakenews/notifier/internal/shared/infrastructure/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"
)

const (
	// Time allowed to write a control message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var (
	ErrEmptyCredential = errors.New("credential is empty")
	ErrPrincipalActive = errors.New("another principal is connected; disconnect first")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Handle identifies the session a Manager was initialised for.
type Handle struct {
	ID         uuid.UUID
	credential string
}

// Credential returns the bearer token the handle was created with.
func (h *Handle) Credential() string { return h.credential }

// Handler receives the raw data of one inbound event.
type Handler func(data json.RawMessage)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
	Logger           *slog.Logger
}

// Manager owns at most one live push transport for one principal.
//
// The zero value is not usable; construct with NewManager and pass the
// instance to whoever needs it.
type Manager struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	connecting singleflight.Group

	mu       sync.Mutex
	handle   *Handle
	conn     *websocket.Conn
	done     chan struct{}
	exited   chan struct{}
	state    State
	handlers map[string][]*Subscription
	onDrop   func(error)
}

func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	dialer := cfg.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		if cfg.HandshakeTimeout > 0 {
			d.HandshakeTimeout = cfg.HandshakeTimeout
		}
		dialer = &d
	}
	return &Manager{
		url:      cfg.URL,
		dialer:   dialer,
		logger:   logger.With("component", "ws"),
		handlers: make(map[string][]*Subscription),
	}
}

// Init records the credential for the session. Calling it again with the
// same credential returns the existing handle; a different credential is
// rejected until Disconnect.
func (m *Manager) Init(credential string) (*Handle, error) {
	if credential == "" {
		return nil, ErrEmptyCredential
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle != nil {
		if m.handle.credential != credential {
			return nil, ErrPrincipalActive
		}
		return m.handle, nil
	}

	m.handle = &Handle{ID: uuid.New(), credential: credential}
	m.state = StateIdle
	return m.handle, nil
}

// OnDrop sets a callback fired when an established transport is lost
// without Disconnect being called.
func (m *Manager) OnDrop(fn func(error)) {
	m.mu.Lock()
	m.onDrop = fn
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Handle() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// Connect performs the handshake. Concurrent callers share one attempt, and
// a failed attempt is returned as *domain.ConnectionError without retrying.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	h := m.handle
	if h == nil {
		m.mu.Unlock()
		return domain.ErrNotInitialized
	}
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	_, err, _ := m.connecting.Do(h.ID.String(), func() (interface{}, error) {
		return nil, m.dial(ctx, h)
	})
	return err
}

func (m *Manager) dial(ctx context.Context, h *Handle) error {
	m.mu.Lock()
	if m.state == StateConnected && m.handle == h {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.credential)

	conn, resp, err := m.dialer.DialContext(ctx, m.url, header)
	if err != nil {
		cause := err
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			cause = fmt.Errorf("%w: handshake status %d", domain.ErrUnauthorized, resp.StatusCode)
		}
		metrics.ConnectAttempts.WithLabelValues("failure").Inc()

		m.mu.Lock()
		if m.handle == h {
			m.state = StateIdle
		}
		m.mu.Unlock()

		m.logger.Warn("push handshake failed", "url", m.url, "error", cause)
		return &domain.ConnectionError{URL: m.url, Err: cause}
	}

	m.mu.Lock()
	if m.handle != h {
		// Disconnected while the handshake was in flight.
		m.mu.Unlock()
		conn.Close()
		metrics.ConnectAttempts.WithLabelValues("abandoned").Inc()
		return &domain.ConnectionError{URL: m.url, Err: domain.ErrNotInitialized}
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	m.conn = conn
	m.done = done
	m.exited = exited
	m.state = StateConnected
	m.mu.Unlock()

	metrics.ConnectAttempts.WithLabelValues("success").Inc()
	m.logger.Info("push channel connected", "url", m.url, "handle", h.ID)

	go m.readPump(conn, done, exited)
	go m.pingPump(conn, done)
	return nil
}

// OnEvent registers handler for event and returns the subscription that
// releases it. Registering a second handler for the same event without
// disposing the first is a caller bug; both stay active.
func (m *Manager) OnEvent(event string, handler Handler) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return nil, domain.ErrNotInitialized
	}
	if existing := len(m.handlers[event]); existing > 0 {
		m.logger.Warn("handler already registered for event", "event", event, "count", existing)
	}

	sub := &Subscription{ID: uuid.New(), event: event, handler: handler, manager: m}
	m.handlers[event] = append(m.handlers[event], sub)
	return sub, nil
}

// OffEvent releases sub. It is equivalent to sub.Dispose().
func (m *Manager) OffEvent(sub *Subscription) {
	if sub != nil {
		sub.Dispose()
	}
}

func (m *Manager) remove(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.handlers[sub.event]
	for i, s := range subs {
		if s == sub {
			m.handlers[sub.event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(m.handlers[sub.event]) == 0 {
		delete(m.handlers, sub.event)
	}
}

// Subscriptions reports how many handlers are registered for event.
func (m *Manager) Subscriptions(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers[event])
}

// Disconnect tears down the transport, forgets the credential and drops
// every handler. It returns only after any handler already running has
// finished, so it must not be called from inside a handler. It is a no-op
// when nothing is connected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.handle == nil && m.conn == nil {
		m.mu.Unlock()
		return
	}
	conn, done, exited := m.conn, m.done, m.exited
	m.conn, m.done, m.exited = nil, nil, nil
	m.handle = nil
	m.state = StateIdle
	m.handlers = make(map[string][]*Subscription)
	m.mu.Unlock()

	if conn != nil {
		close(done)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
		<-exited
		m.logger.Info("push channel disconnected", "url", m.url)
	}
}

func (m *Manager) readPump(conn *websocket.Conn, done, exited chan struct{}) {
	defer close(exited)
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			m.dropped(conn, err)
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			m.logger.Warn("discarding malformed frame", "error", err, "size", len(message))
			continue
		}

		m.mu.Lock()
		if m.conn != conn {
			m.mu.Unlock()
			return
		}
		subs := append([]*Subscription(nil), m.handlers[env.Event]...)
		m.mu.Unlock()

		for _, sub := range subs {
			sub.handler(env.Data)
		}

		select {
		case <-done:
			return
		default:
		}
	}
}

func (m *Manager) pingPump(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// dropped handles a read failure. Failures caused by Disconnect are silent.
func (m *Manager) dropped(conn *websocket.Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	close(m.done)
	m.conn, m.done, m.exited = nil, nil, nil
	m.state = StateClosed
	onDrop := m.onDrop
	m.mu.Unlock()

	conn.Close()
	m.logger.Warn("push channel lost", "url", m.url, "error", err)
	if onDrop != nil {
		onDrop(&domain.ConnectionError{URL: m.url, Err: err})
	}
}

// Subscription is the release handle returned by OnEvent.
type Subscription struct {
	ID      uuid.UUID
	event   string
	handler Handler
	manager *Manager
	once    sync.Once
}

func (s *Subscription) Event() string { return s.event }

// Dispose unregisters the handler. Safe to call more than once and after
// the manager disconnected.
func (s *Subscription) Dispose() {
	s.once.Do(func() {
		s.manager.remove(s)
	})
}
